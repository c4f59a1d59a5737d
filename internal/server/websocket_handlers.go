package server

import (
	"context"

	"lobby/internal/models"
	"lobby/internal/notifications"
	"lobby/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

func (s *Server) requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebSocketHandler accepts a chat connection. Every frame is dispatched to
// the coordinator in read order; the connection needs no token because
// authentication happens over the socket itself.
func (s *Server) WebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		connID := uuid.NewString()
		ctx := observability.WithValue(context.Background(), observability.ConnIDKey, connID)

		client, err := s.hub.Register(connID, conn)
		if err != nil {
			s.wsLogger.LogError(ctx, connID, err, "register")
			_ = conn.WriteJSON(models.ErrorEvent(models.EventErrorMessage,
				models.NewPermissionError(models.CodeRateLimited, "Server is at capacity")))
			_ = conn.Close()
			return
		}

		s.coordinator.Connect(connID)
		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			s.dispatch(ctx, c, message)
		}

		go client.WritePump()
		client.ReadPump()
	})
}
