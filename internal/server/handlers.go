package server

import (
	"context"
	"time"

	"lobby/internal/middleware"
	"lobby/internal/models"

	"github.com/gofiber/fiber/v2"
)

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional, so
// its absence does not fail the probe.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unhealthy"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"sessions": len(s.coordinator.OnlineUsers()),
		"time":     time.Now(),
	})
}

// GetRooms lists every room.
func (s *Server) GetRooms(c *fiber.Ctx) error {
	return c.JSON(s.coordinator.Rooms())
}

// GetUsers lists the users currently online.
func (s *Server) GetUsers(c *fiber.Ctx) error {
	return c.JSON(s.coordinator.OnlineUsers())
}

// GetSettings returns the token subject's preferences.
func (s *Server) GetSettings(c *fiber.Ctx) error {
	username, _ := c.Locals(middleware.LocalUsername).(string)
	prefs, err := s.coordinator.Settings(c.UserContext(), username)
	if err != nil {
		return models.RespondWithError(c, 0, err)
	}
	return c.JSON(prefs)
}

// UpdateSettings applies a partial preferences update for the token subject.
func (s *Server) UpdateSettings(c *fiber.Ctx) error {
	username, _ := c.Locals(middleware.LocalUsername).(string)

	var delta models.PreferencesDelta
	if err := c.BodyParser(&delta); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	prefs, err := s.coordinator.UpdateSettingsForUser(c.UserContext(), username, delta)
	if err != nil {
		return models.RespondWithError(c, 0, err)
	}
	return c.JSON(prefs)
}
