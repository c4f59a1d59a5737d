// Package models contains data structures for the coordinator's domain.
package models

import (
	"time"
)

// Role is an account's privilege level.
type Role string

// Roles
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// DefaultAvatarColor is assigned when registration leaves the color empty.
const DefaultAvatarColor = "0078D4"

// Account is a persistent user record. Accounts are never deleted.
type Account struct {
	ID           uint        `gorm:"primaryKey" json:"-"`
	Username     string      `gorm:"uniqueIndex;size:30;not null" json:"username"`
	PasswordHash string      `gorm:"not null" json:"-"`
	FirstName    string      `json:"firstName"`
	LastName     string      `json:"lastName"`
	Bio          string      `json:"bio"`
	AvatarColor  string      `gorm:"size:16" json:"avatarColor"`
	Role         Role        `gorm:"size:16;not null;default:user" json:"role"`
	Preferences  Preferences `gorm:"serializer:json;type:text" json:"settings"`
	CreatedAt    time.Time   `json:"joinDate"`
	UpdatedAt    time.Time   `json:"-"`
}

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool { return a.Role == RoleAdmin }

// Profile returns the display-facing part of the account.
func (a *Account) Profile() Profile {
	return Profile{
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Bio:         a.Bio,
		AvatarColor: a.AvatarColor,
	}
}

// Profile holds user-editable display fields.
type Profile struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Bio         string `json:"bio"`
	AvatarColor string `json:"avatarColor"`
}

// DisplayName is the first name when set, otherwise the username.
func (p Profile) DisplayName(username string) string {
	if p.FirstName != "" {
		return p.FirstName
	}
	return username
}

// ProfileDelta is a partial profile update; nil fields are left unchanged.
type ProfileDelta struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	AvatarColor *string `json:"avatarColor,omitempty"`
}

// Apply returns p with the non-nil fields of d applied.
func (p Profile) Apply(d ProfileDelta) Profile {
	if d.FirstName != nil {
		p.FirstName = *d.FirstName
	}
	if d.LastName != nil {
		p.LastName = *d.LastName
	}
	if d.Bio != nil {
		p.Bio = *d.Bio
	}
	if d.AvatarColor != nil {
		p.AvatarColor = *d.AvatarColor
	}
	return p
}

// Empty reports whether the delta changes nothing.
func (d ProfileDelta) Empty() bool {
	return d.FirstName == nil && d.LastName == nil && d.Bio == nil && d.AvatarColor == nil
}

// Preferences are per-account client settings.
type Preferences struct {
	Theme          string `json:"theme"`
	Notifications  bool   `json:"notifications"`
	Sound          bool   `json:"sound"`
	AutoDownload   bool   `json:"autoDownload"`
	MessagePreview bool   `json:"messagePreview"`
	Privacy        string `json:"privacy"`
	Language       string `json:"language"`
}

// DefaultPreferences returns the settings given to new accounts.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:          "light",
		Notifications:  true,
		Sound:          true,
		AutoDownload:   false,
		MessagePreview: true,
		Privacy:        "public",
		Language:       "ru",
	}
}

// PreferencesDelta is a partial settings update; nil fields are left unchanged.
type PreferencesDelta struct {
	Theme          *string `json:"theme,omitempty"`
	Notifications  *bool   `json:"notifications,omitempty"`
	Sound          *bool   `json:"sound,omitempty"`
	AutoDownload   *bool   `json:"autoDownload,omitempty"`
	MessagePreview *bool   `json:"messagePreview,omitempty"`
	Privacy        *string `json:"privacy,omitempty"`
	Language       *string `json:"language,omitempty"`
}

// Apply returns p with the non-nil fields of d applied.
func (p Preferences) Apply(d PreferencesDelta) Preferences {
	if d.Theme != nil {
		p.Theme = *d.Theme
	}
	if d.Notifications != nil {
		p.Notifications = *d.Notifications
	}
	if d.Sound != nil {
		p.Sound = *d.Sound
	}
	if d.AutoDownload != nil {
		p.AutoDownload = *d.AutoDownload
	}
	if d.MessagePreview != nil {
		p.MessagePreview = *d.MessagePreview
	}
	if d.Privacy != nil {
		p.Privacy = *d.Privacy
	}
	if d.Language != nil {
		p.Language = *d.Language
	}
	return p
}

// UserSummary is the public view of an online user.
type UserSummary struct {
	Username    string    `json:"username"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Bio         string    `json:"bio"`
	AvatarColor string    `json:"avatarColor"`
	IsAdmin     bool      `json:"isAdmin"`
	IsMuted     bool      `json:"isMuted"`
	CurrentRoom string    `json:"currentRoom,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}
