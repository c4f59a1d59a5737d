package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"lobby/internal/auth"
	"lobby/internal/models"
	"lobby/internal/observability"
	"lobby/internal/validation"
)

// Session is the live binding of an account to one connection.
type Session struct {
	ConnID      string
	Username    string
	Role        models.Role
	Profile     models.Profile
	Preferences models.Preferences
	CurrentRoom string // empty when in no room
	CurrentPeer string // empty when no private thread is open
	JoinedAt    time.Time
}

// IsAdmin reports whether the session holds the admin role.
func (s *Session) IsAdmin() bool { return s.Role == models.RoleAdmin }

// RegisterInput carries a registration request.
type RegisterInput struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	AvatarColor string `json:"avatarColor"`
	Bio         string `json:"bio"`
}

// Validate checks the input before any state is consulted.
func (in RegisterInput) Validate() error {
	if err := validation.ValidateUsername(in.Username); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidateAvatarColor(in.AvatarColor); err != nil {
		return models.NewValidationError(err.Error())
	}
	for name, v := range map[string]string{"firstName": in.FirstName, "lastName": in.LastName, "bio": in.Bio} {
		if err := validation.ValidateProfileField(name, v); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	return nil
}

// LoginResult is sent to a freshly authenticated session.
type LoginResult struct {
	User        models.UserSummary     `json:"user"`
	Settings    models.Preferences     `json:"settings"`
	Token       string                 `json:"token"`
	Rooms       []models.RoomSummary   `json:"rooms"`
	CurrentRoom models.RoomSnapshot    `json:"currentRoom"`
	Threads     []models.ThreadSummary `json:"privateChats"`
}

// Register creates an account and binds it to connID.
func (c *Coordinator) Register(ctx context.Context, connID string, in RegisterInput) (*LoginResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	err := c.checkCanAuthenticateLocked(connID, in.Username)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	hash, err := c.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	color := in.AvatarColor
	if color == "" {
		color = models.DefaultAvatarColor
	}
	account := &models.Account{
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Bio:          in.Bio,
		AvatarColor:  color,
		Role:         models.RoleUser,
		Preferences:  models.DefaultPreferences(),
	}
	if err := c.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	token, err := c.tokens.Issue(account.Username, string(account.Role))
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkCanAuthenticateLocked(connID, account.Username); err != nil {
		return nil, err
	}
	result := c.bindLocked(connID, account, token, false)

	c.logger.InfoContext(ctx, "account registered",
		slog.String("conn", connID),
		slog.String("username", account.Username),
	)
	return result, nil
}

// Login authenticates an existing account and binds it to connID.
func (c *Coordinator) Login(ctx context.Context, connID, username, password string) (*LoginResult, error) {
	c.mu.Lock()
	err := c.checkCanAuthenticateLocked(connID, username)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	account, err := c.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, models.NewAuthError(models.CodeAuthNotFound, "User not found")
	}
	if err := c.hasher.Verify(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, models.NewAuthError(models.CodeAuthBadPassword, "Wrong password")
		}
		return nil, models.NewInternalError(err)
	}

	token, err := c.tokens.Issue(account.Username, string(account.Role))
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkCanAuthenticateLocked(connID, account.Username); err != nil {
		return nil, err
	}
	result := c.bindLocked(connID, account, token, true)

	c.logger.InfoContext(ctx, "session opened",
		slog.String("conn", connID),
		slog.String("username", account.Username),
	)
	return result, nil
}

// checkCanAuthenticateLocked runs before and after the unlocked store step.
func (c *Coordinator) checkCanAuthenticateLocked(connID, username string) error {
	if _, open := c.conns[connID]; !open {
		return models.NewUnauthorizedError("Connection closed")
	}
	if _, bound := c.sessions[connID]; bound {
		return models.NewAuthError(models.CodeAuthDuplicate, "Already logged in on this connection")
	}
	if c.mod.IsBanned(username) {
		return models.NewAuthError(models.CodeAuthBanned, "User is banned")
	}
	if _, live := c.byUser[username]; live {
		return models.NewAuthError(models.CodeAuthDuplicate, "User is already online")
	}
	return nil
}

func (c *Coordinator) bindLocked(connID string, account *models.Account, token string, withThreads bool) *LoginResult {
	s := &Session{
		ConnID:      connID,
		Username:    account.Username,
		Role:        account.Role,
		Profile:     account.Profile(),
		Preferences: account.Preferences,
		CurrentRoom: c.opts.DefaultRoom,
		JoinedAt:    c.now(),
	}
	c.ensureRoomLocked(c.opts.DefaultRoom, "system")
	c.sessions[connID] = s
	c.byUser[s.Username] = connID
	observability.ActiveSessions.Inc()

	result := &LoginResult{
		User:        c.userSummaryLocked(s),
		Settings:    s.Preferences,
		Token:       token,
		Rooms:       c.roomSummariesLocked(),
		CurrentRoom: c.roomSnapshotLocked(c.rooms[c.opts.DefaultRoom]),
		Threads:     []models.ThreadSummary{},
	}
	if withThreads {
		result.Threads = c.threadSummariesLocked(s.Username)
	}

	c.deliver(models.Event{Type: models.EventRegistered, Payload: result}, connID)
	c.deliver(models.Event{
		Type:    models.EventSystemMessage,
		Payload: c.systemMessage(s.Profile.DisplayName(s.Username)+" joined the chat", c.opts.DefaultRoom),
	}, sessionConnIDs(c.roomMembersLocked(c.opts.DefaultRoom), "")...)
	c.broadcastPresenceLocked()
	return result
}

func (c *Coordinator) userSummaryLocked(s *Session) models.UserSummary {
	return models.UserSummary{
		Username:    s.Username,
		FirstName:   s.Profile.FirstName,
		LastName:    s.Profile.LastName,
		Bio:         s.Profile.Bio,
		AvatarColor: s.Profile.AvatarColor,
		IsAdmin:     s.IsAdmin(),
		IsMuted:     c.mod.IsMuted(s.Username),
		CurrentRoom: s.CurrentRoom,
		JoinedAt:    s.JoinedAt,
	}
}

func (c *Coordinator) onlineUsersLocked() []models.UserSummary {
	out := make([]models.UserSummary, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, c.userSummaryLocked(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
