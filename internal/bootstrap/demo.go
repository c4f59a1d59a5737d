package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"lobby/internal/auth"
	"lobby/internal/models"
	"lobby/internal/observability"
	"lobby/internal/repository"
	"lobby/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
)

// DemoPassword is shared by every seeded demo account.
const DemoPassword = "demo-password"

// seedDemoAccounts creates n accounts with generated profiles. Names that
// collide with existing accounts are skipped.
func seedDemoAccounts(ctx context.Context, accounts repository.AccountRepository, hasher auth.PasswordHasher, n int) error {
	hash, err := hasher.Hash(DemoPassword)
	if err != nil {
		return err
	}

	faker := gofakeit.New(0)
	created := 0
	for attempts := 0; created < n && attempts < n*10; attempts++ {
		first := faker.FirstName()
		username := fmt.Sprintf("%s%d", strings.ToLower(first), faker.Number(10, 999))
		if validation.ValidateUsername(username) != nil {
			continue
		}
		account := &models.Account{
			Username:     username,
			PasswordHash: hash,
			FirstName:    first,
			LastName:     faker.LastName(),
			Bio:          faker.Sentence(8),
			AvatarColor:  strings.TrimPrefix(strings.ToUpper(faker.HexColor()), "#"),
			Role:         models.RoleUser,
			Preferences:  models.DefaultPreferences(),
		}
		if err := accounts.Create(ctx, account); err != nil {
			if models.HasCode(err, models.CodeAuthDuplicate) {
				continue
			}
			return err
		}
		created++
	}

	observability.GlobalLogger.InfoContext(ctx, "demo accounts seeded", "count", created)
	return nil
}
