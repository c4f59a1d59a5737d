package service

import (
	"context"
	"log/slog"
	"strings"

	"lobby/internal/models"
	"lobby/internal/validation"
)

// ThemeChanged is the payload of a theme-changed event.
type ThemeChanged struct {
	Theme string `json:"theme"`
}

// UpdateProfile edits the caller's own profile.
func (c *Coordinator) UpdateProfile(ctx context.Context, connID string, delta models.ProfileDelta) (*models.Profile, error) {
	c.mu.Lock()
	s, err := c.sessionLocked(connID)
	var username string
	if err == nil {
		username = s.Username
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.updateProfile(ctx, username, delta, username)
}

// updateProfile persists delta for target and then refreshes its live
// session, if any. The store is written first so an offline target is still
// updated. Writes for one username are ordered so the session always ends up
// holding the stored profile.
func (c *Coordinator) updateProfile(ctx context.Context, target string, delta models.ProfileDelta, by string) (*models.Profile, error) {
	delta, err := validateProfileDelta(delta)
	if err != nil {
		return nil, err
	}
	if delta.Empty() {
		return nil, models.NewValidationError("Nothing to update")
	}

	unlock := c.accountWrites.Lock(target)
	defer unlock()

	profile, err := c.accounts.UpdateProfile(ctx, target, delta)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.liveSessionLocked(target); ok {
		s.Profile = *profile
		c.deliver(models.Event{Type: models.EventProfileUpdated, Payload: *profile}, s.ConnID)
		c.broadcastPresenceLocked()
	}

	c.logger.InfoContext(ctx, "profile updated",
		slog.String("username", target),
		slog.String("by", by),
	)
	return profile, nil
}

// validateProfileDelta returns d with its text fields trimmed. The caller's
// strings are left as they were.
func validateProfileDelta(d models.ProfileDelta) (models.ProfileDelta, error) {
	fields := []struct {
		name  string
		value **string
	}{
		{"firstName", &d.FirstName},
		{"lastName", &d.LastName},
		{"bio", &d.Bio},
	}
	for _, f := range fields {
		if *f.value == nil {
			continue
		}
		trimmed := strings.TrimSpace(**f.value)
		if err := validation.ValidateProfileField(f.name, trimmed); err != nil {
			return d, models.NewValidationError(err.Error())
		}
		*f.value = &trimmed
	}
	if d.AvatarColor != nil {
		if err := validation.ValidateAvatarColor(*d.AvatarColor); err != nil {
			return d, models.NewValidationError(err.Error())
		}
	}
	return d, nil
}

// UpdateSettings edits the caller's preferences.
func (c *Coordinator) UpdateSettings(ctx context.Context, connID string, delta models.PreferencesDelta) (*models.Preferences, error) {
	c.mu.Lock()
	s, err := c.sessionLocked(connID)
	var username string
	if err == nil {
		username = s.Username
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.UpdateSettingsForUser(ctx, username, delta)
}

// UpdateSettingsForUser persists a preferences delta for username. A live
// session receives settings-updated, theme-changed when the theme moved, and
// everyone gets a refreshed user list.
func (c *Coordinator) UpdateSettingsForUser(ctx context.Context, username string, delta models.PreferencesDelta) (*models.Preferences, error) {
	if delta.Theme != nil && strings.TrimSpace(*delta.Theme) == "" {
		return nil, models.NewValidationError("theme cannot be empty")
	}

	unlock := c.accountWrites.Lock(username)
	defer unlock()

	prefs, err := c.accounts.UpdatePreferences(ctx, username, delta)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.liveSessionLocked(username); ok {
		oldTheme := s.Preferences.Theme
		s.Preferences = *prefs
		c.deliver(models.Event{Type: models.EventSettingsUpdated, Payload: *prefs}, s.ConnID)
		if prefs.Theme != oldTheme {
			c.deliver(models.Event{Type: models.EventThemeChanged, Payload: ThemeChanged{Theme: prefs.Theme}}, s.ConnID)
		}
		c.broadcastPresenceLocked()
	}
	return prefs, nil
}

// Settings returns username's preferences, preferring the live session.
func (c *Coordinator) Settings(ctx context.Context, username string) (*models.Preferences, error) {
	c.mu.Lock()
	if s, ok := c.liveSessionLocked(username); ok {
		prefs := s.Preferences
		c.mu.Unlock()
		return &prefs, nil
	}
	c.mu.Unlock()

	account, err := c.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return &account.Preferences, nil
}
