// Package server exposes the coordinator over HTTP and WebSocket.
package server

import (
	"context"
	"sync"
	"time"

	"lobby/internal/auth"
	"lobby/internal/config"
	"lobby/internal/middleware"
	"lobby/internal/models"
	"lobby/internal/notifications"
	"lobby/internal/observability"
	"lobby/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// httpMetrics returns the process-wide HTTP metrics middleware. Its
// collectors live in the default registry and can only be registered once.
func httpMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New("lobby-api")
	})
	return prom
}

// Deps are the runtime collaborators a Server is built from.
type Deps struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Coordinator *service.Coordinator
	Hub         *notifications.Hub
	Tokens      *auth.TokenIssuer
	Admission   middleware.Admission
}

// Server holds all dependencies and provides handlers.
type Server struct {
	config      *config.Config
	db          *gorm.DB
	redis       *redis.Client
	app         *fiber.App
	coordinator *service.Coordinator
	hub         *notifications.Hub
	tokens      *auth.TokenIssuer
	admission   middleware.Admission
	wsLogger    *observability.WSLogger
}

// NewServer wires a server and hooks hub disconnects into the coordinator.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Admission == nil {
		deps.Admission = middleware.NoopAdmission{}
	}
	s := &Server{
		config:      cfg,
		db:          deps.DB,
		redis:       deps.Redis,
		coordinator: deps.Coordinator,
		hub:         deps.Hub,
		tokens:      deps.Tokens,
		admission:   deps.Admission,
		wsLogger:    observability.NewWSLogger(deps.Hub.Name()),
	}
	s.hub.OnDisconnect(func(connID string) {
		s.coordinator.Disconnect(context.Background(), connID)
	})
	s.app = s.newApp()
	return s
}

// App returns the configured Fiber application.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "lobby",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			observability.GlobalLogger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	app.Use(httpMetrics().Middleware)
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400,
	}))
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/healthz", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	httpMetrics().RegisterAt(app, "/metrics")

	api := app.Group("/api")
	api.Get("/rooms", s.GetRooms)
	api.Get("/users", s.GetUsers)

	settings := api.Group("/settings", middleware.AuthRequired(s.tokens))
	settings.Get("/", s.GetSettings)
	settings.Put("/", middleware.RateLimit(s.redis, 20, time.Minute, middleware.FailOpen, "settings"), s.UpdateSettings)

	app.Get("/ws", s.requireUpgrade, s.WebSocketHandler())
}

// Start listens on the configured port.
func (s *Server) Start() error {
	observability.GlobalLogger.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests, closes every websocket and releases
// the database and Redis connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		observability.GlobalLogger.Error("error shutting down HTTP server", "error", err.Error())
	}
	if err := s.hub.Shutdown(ctx); err != nil {
		observability.GlobalLogger.Error("error shutting down hub", "error", err.Error())
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				observability.GlobalLogger.Error("error closing sql DB", "error", cerr.Error())
			}
		}
	}
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			observability.GlobalLogger.Error("error closing redis", "error", rerr.Error())
		}
	}
	observability.GlobalLogger.Info("server shutdown complete")
	return nil
}
