package bootstrap

import (
	"context"
	"strings"

	"lobby/internal/auth"
	"lobby/internal/config"
	"lobby/internal/models"
	"lobby/internal/observability"
	"lobby/internal/repository"
	"lobby/internal/validation"
)

// ensureAdmin creates the bootstrap admin account, or promotes it when the
// username already exists. An empty password disables the bootstrap.
func ensureAdmin(ctx context.Context, cfg *config.Config, accounts repository.AccountRepository, hasher auth.PasswordHasher) error {
	username := strings.TrimSpace(cfg.BootstrapAdminUsername)
	if username == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}
	if err := validation.ValidateUsername(username); err != nil {
		return err
	}

	existing, err := accounts.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.IsAdmin() {
			return nil
		}
		if err := accounts.SetRole(ctx, username, models.RoleAdmin); err != nil {
			return err
		}
		observability.GlobalLogger.InfoContext(ctx, "bootstrap admin promoted", "username", username)
		return nil
	}

	hash, err := hasher.Hash(cfg.BootstrapAdminPassword)
	if err != nil {
		return err
	}
	account := &models.Account{
		Username:     username,
		PasswordHash: hash,
		FirstName:    "Admin",
		AvatarColor:  models.DefaultAvatarColor,
		Role:         models.RoleAdmin,
		Preferences:  models.DefaultPreferences(),
	}
	if err := accounts.Create(ctx, account); err != nil {
		// Another instance won the race; promote whatever it created.
		if models.HasCode(err, models.CodeAuthDuplicate) {
			return accounts.SetRole(ctx, username, models.RoleAdmin)
		}
		return err
	}
	observability.GlobalLogger.InfoContext(ctx, "bootstrap admin created", "username", username)
	return nil
}
