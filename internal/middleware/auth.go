package middleware

import (
	"strings"

	"lobby/internal/auth"
	"lobby/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Fiber locals set by AuthRequired.
const (
	LocalUsername = "username"
	LocalRole     = "role"
)

// AuthRequired enforces a valid bearer token issued by tokens and stores
// the subject in c.Locals(LocalUsername).
func AuthRequired(tokens *auth.TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization header required"))
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid authorization header format"))
		}

		claims, err := tokens.Parse(parts[1])
		if err != nil || claims.Username == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		c.Locals(LocalUsername, claims.Username)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}
