// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"

	"lobby/internal/models"
	"lobby/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	// Create inserts the account unless the username is taken, in which case
	// it returns an AUTH_DUPLICATE error and leaves the stored row untouched.
	Create(ctx context.Context, account *models.Account) error
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	// UpdateProfile writes only the fields set in delta and returns the
	// stored profile.
	UpdateProfile(ctx context.Context, username string, delta models.ProfileDelta) (*models.Profile, error)
	// UpdatePreferences applies delta to the stored preferences in one
	// transaction and returns the result.
	UpdatePreferences(ctx context.Context, username string, delta models.PreferencesDelta) (*models.Preferences, error)
	SetRole(ctx context.Context, username string, role models.Role) error
	List(ctx context.Context, limit, offset int) ([]models.Account, error)
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository returns a new AccountRepository implementation.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	defer observability.TrackQuery("create", "accounts")()

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
		Create(account)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewAuthError(models.CodeAuthDuplicate, "User already exists")
	}
	return nil
}

// GetByUsername returns nil, nil when no account exists.
func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	defer observability.TrackQuery("get_by_username", "accounts")()

	var account models.Account
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &account, nil
}

func (r *accountRepository) UpdateProfile(ctx context.Context, username string, delta models.ProfileDelta) (*models.Profile, error) {
	defer observability.TrackQuery("update_profile", "accounts")()

	columns := profileColumns(delta)
	var profile models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(columns) > 0 {
			res := tx.Model(&models.Account{}).Where("username = ?", username).Updates(columns)
			if err := checkUpdated(res, username); err != nil {
				return err
			}
		}
		account, err := findForUpdate(tx, username)
		if err != nil {
			return err
		}
		profile = account.Profile()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *accountRepository) UpdatePreferences(ctx context.Context, username string, delta models.PreferencesDelta) (*models.Preferences, error) {
	defer observability.TrackQuery("update_preferences", "accounts")()

	var prefs models.Preferences
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := findForUpdate(tx, username)
		if err != nil {
			return err
		}
		prefs = account.Preferences.Apply(delta)
		res := tx.Model(&models.Account{}).
			Where("username = ?", username).
			Select("preferences").
			Updates(models.Account{Preferences: prefs})
		return checkUpdated(res, username)
	})
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// findForUpdate loads username inside tx, holding a row lock on Postgres.
// SQLite already serializes writers.
func findForUpdate(tx *gorm.DB, username string) (*models.Account, error) {
	q := tx.Where("username = ?", username)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var account models.Account
	if err := q.First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Account", username)
		}
		return nil, models.NewInternalError(err)
	}
	return &account, nil
}

func profileColumns(d models.ProfileDelta) map[string]any {
	columns := make(map[string]any, 4)
	if d.FirstName != nil {
		columns["first_name"] = *d.FirstName
	}
	if d.LastName != nil {
		columns["last_name"] = *d.LastName
	}
	if d.Bio != nil {
		columns["bio"] = *d.Bio
	}
	if d.AvatarColor != nil {
		columns["avatar_color"] = *d.AvatarColor
	}
	return columns
}

func (r *accountRepository) SetRole(ctx context.Context, username string, role models.Role) error {
	defer observability.TrackQuery("set_role", "accounts")()

	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("username = ?", username).
		Update("role", role)
	return checkUpdated(res, username)
}

func (r *accountRepository) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	defer observability.TrackQuery("list", "accounts")()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var accounts []models.Account
	if err := r.db.WithContext(ctx).Order("username").Limit(limit).Offset(offset).Find(&accounts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return accounts, nil
}

func checkUpdated(res *gorm.DB, username string) error {
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Account", username)
	}
	return nil
}
