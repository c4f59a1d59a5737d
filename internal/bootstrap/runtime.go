// Package bootstrap assembles the runtime: storage, caches, the hub and the
// coordinator, seeded and ready to accept connections.
package bootstrap

import (
	"context"
	"fmt"

	"lobby/internal/auth"
	"lobby/internal/cache"
	"lobby/internal/config"
	"lobby/internal/database"
	"lobby/internal/middleware"
	"lobby/internal/moderation"
	"lobby/internal/notifications"
	"lobby/internal/repository"
	"lobby/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime is everything the server needs, wired together.
type Runtime struct {
	DB          *gorm.DB
	Redis       *redis.Client // nil when REDIS_URL is unset or unreachable
	Hub         *notifications.Hub
	Coordinator *service.Coordinator
	Tokens      *auth.TokenIssuer
	Admission   middleware.Admission
}

// InitRuntime connects to the database and Redis, seeds accounts and rooms,
// and restores persisted bans.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; bans and admission fall back to in-process state.
	rdb := cache.NewClient(cfg.RedisURL)

	return NewRuntime(ctx, cfg, db, rdb)
}

// NewRuntime wires the runtime around already-open connections.
func NewRuntime(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Runtime, error) {
	accounts := repository.NewAccountRepository(db)
	hasher := auth.NewBcryptHasher()
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL())

	if err := ensureAdmin(ctx, cfg, accounts, hasher); err != nil {
		return nil, fmt.Errorf("failed to bootstrap admin account: %w", err)
	}
	if cfg.SeedDemoAccounts > 0 && !cfg.IsProduction() {
		if err := seedDemoAccounts(ctx, accounts, hasher, cfg.SeedDemoAccounts); err != nil {
			return nil, fmt.Errorf("failed to seed demo accounts: %w", err)
		}
	}

	rooms, err := LoadRooms(cfg.RoomsFile)
	if err != nil {
		return nil, err
	}

	hub := notifications.NewHub(0)
	coordinator := service.NewCoordinator(service.Dependencies{
		Accounts:  accounts,
		Hasher:    hasher,
		Tokens:    tokens,
		Bans:      moderation.NewBanStore(rdb),
		Deliverer: hub,
	}, service.Options{
		DefaultRoom:     cfg.DefaultRoom,
		HistoryCapacity: cfg.HistoryCapacity,
		HistoryPageSize: cfg.HistoryPageSize,
		MuteDefault:     cfg.MuteDefault(),
		BanKickDelay:    cfg.BanKickDelay(),
	})
	coordinator.SeedRooms(rooms)
	if err := coordinator.RestoreBans(ctx); err != nil {
		return nil, fmt.Errorf("failed to restore bans: %w", err)
	}

	return &Runtime{
		DB:          db,
		Redis:       rdb,
		Hub:         hub,
		Coordinator: coordinator,
		Tokens:      tokens,
		Admission:   middleware.NewAdmission(rdb, cfg.AdmissionLimit, cfg.AdmissionWindow()),
	}, nil
}
