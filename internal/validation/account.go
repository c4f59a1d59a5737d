// Package validation holds input checks shared by the transport and the coordinator.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 30
	minPasswordLength = 6
	maxPasswordLength = 128
	maxRoomIDLength   = 64
	maxProfileField   = 200
)

var (
	usernameRegex    = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)
	avatarColorRegex = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)
)

// ValidateUsername checks length and the allowed character set.
func ValidateUsername(username string) error {
	n := len(username)
	if n < minUsernameLength || n > maxUsernameLength {
		return fmt.Errorf("username must be %d to %d characters", minUsernameLength, maxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username may contain only latin letters, digits, dots, hyphens and underscores")
	}
	return nil
}

// ValidatePassword enforces the length bounds for new passwords.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("password must be at most %d bytes", maxPasswordLength)
	}
	return nil
}

// ValidateRoomID rejects empty or oversized room ids.
func ValidateRoomID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("room id is required")
	}
	if len(id) > maxRoomIDLength {
		return fmt.Errorf("room id must be at most %d characters", maxRoomIDLength)
	}
	return nil
}

// ValidateAvatarColor accepts an empty value or six hex digits.
func ValidateAvatarColor(color string) error {
	if color == "" || avatarColorRegex.MatchString(color) {
		return nil
	}
	return fmt.Errorf("avatar color must be six hex digits")
}

// ValidateProfileField bounds free-text profile fields.
func ValidateProfileField(name, value string) error {
	if utf8.RuneCountInString(value) > maxProfileField {
		return fmt.Errorf("%s must be at most %d characters", name, maxProfileField)
	}
	return nil
}
