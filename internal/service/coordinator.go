// Package service implements the messaging coordinator: sessions, rooms,
// private threads, moderation, and event fan-out.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lobby/internal/auth"
	"lobby/internal/history"
	"lobby/internal/models"
	"lobby/internal/moderation"
	"lobby/internal/observability"
	"lobby/internal/repository"
)

// Deliverer pushes events to live connections. Implementations must not
// block and must not call back into the Coordinator.
type Deliverer interface {
	Deliver(event models.Event, connIDs ...string)
	Kick(connID string, delay time.Duration)
}

// TokenIssuer signs API tokens for authenticated users.
type TokenIssuer interface {
	Issue(username, role string) (string, error)
}

// Scheduler runs fn after delay and returns a function that cancels it.
type Scheduler func(delay time.Duration, fn func()) (stop func() bool)

func timerScheduler(delay time.Duration, fn func()) func() bool {
	return time.AfterFunc(delay, fn).Stop
}

// Options tune coordinator behavior.
type Options struct {
	DefaultRoom     string
	HistoryCapacity int
	HistoryPageSize int
	MuteDefault     time.Duration
	BanKickDelay    time.Duration
}

func (o *Options) applyDefaults() {
	if o.DefaultRoom == "" {
		o.DefaultRoom = "general"
	}
	if o.HistoryCapacity <= 0 {
		o.HistoryCapacity = history.DefaultCapacity
	}
	if o.HistoryPageSize <= 0 {
		o.HistoryPageSize = 50
	}
	if o.MuteDefault <= 0 {
		o.MuteDefault = 300 * time.Second
	}
	if o.BanKickDelay <= 0 {
		o.BanKickDelay = time.Second
	}
}

// Dependencies are the coordinator's external collaborators. Scheduler and
// Now default to real timers and time.Now.
type Dependencies struct {
	Accounts  repository.AccountRepository
	Hasher    auth.PasswordHasher
	Tokens    TokenIssuer
	Bans      moderation.BanStore
	Deliverer Deliverer
	Scheduler Scheduler
	Now       func() time.Time
}

// Coordinator owns all in-memory chat state behind a single mutex. Every
// exported method runs to completion under that lock without waiting on
// external I/O; store and hashing calls happen outside it and are
// re-validated on re-entry.
type Coordinator struct {
	opts     Options
	accounts repository.AccountRepository
	hasher   auth.PasswordHasher
	tokens   TokenIssuer
	bans     moderation.BanStore
	out      Deliverer
	schedule Scheduler
	now      func() time.Time
	logger   *observability.Logger

	// Per-username store write ordering. Both are taken before mu.
	banWrites     keyedMutex
	accountWrites keyedMutex

	mu         sync.Mutex
	conns      map[string]struct{}
	sessions   map[string]*Session // by connection id
	byUser     map[string]string   // username -> connection id
	rooms      map[string]*models.Room
	roomOrder  []string
	roomLog    *history.Store[models.Message]
	privateLog *history.Store[models.PrivateMessage]
	mod        *moderation.State
	muteTimers map[string]func() bool
	lastID     int64
	privateSeq int64
}

// NewCoordinator wires a coordinator. Call SeedRooms and RestoreBans before
// accepting connections.
func NewCoordinator(deps Dependencies, opts Options) *Coordinator {
	opts.applyDefaults()
	if deps.Scheduler == nil {
		deps.Scheduler = timerScheduler
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Bans == nil {
		deps.Bans = moderation.NewMemoryBanStore()
	}

	c := &Coordinator{
		opts:       opts,
		accounts:   deps.Accounts,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		bans:       deps.Bans,
		out:        deps.Deliverer,
		schedule:   deps.Scheduler,
		now:        deps.Now,
		logger:     observability.GlobalLogger,
		conns:      make(map[string]struct{}),
		sessions:   make(map[string]*Session),
		byUser:     make(map[string]string),
		rooms:      make(map[string]*models.Room),
		roomLog:    history.NewStore[models.Message](opts.HistoryCapacity),
		privateLog: history.NewStore[models.PrivateMessage](opts.HistoryCapacity),
		mod:        moderation.NewState(),
		muteTimers: make(map[string]func() bool),
	}
	c.ensureRoomLocked(opts.DefaultRoom, "system")
	return c
}

// Connect registers an open, unauthenticated connection.
func (c *Coordinator) Connect(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[connID] = struct{}{}
}

// Disconnect tears down the connection's session. It is idempotent; later
// events from connID see no session.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.conns, connID)
	s, ok := c.sessions[connID]
	if !ok {
		return
	}
	delete(c.sessions, connID)
	if c.byUser[s.Username] == connID {
		delete(c.byUser, s.Username)
	}
	s.CurrentRoom = ""
	s.CurrentPeer = ""
	observability.ActiveSessions.Dec()

	c.deliver(models.Event{
		Type:    models.EventSystemMessage,
		Payload: c.systemMessage(s.Profile.DisplayName(s.Username)+" left the chat", ""),
	}, c.allConnIDsLocked()...)
	c.broadcastPresenceLocked()

	c.logger.InfoContext(ctx, "session closed",
		slog.String("conn", connID),
		slog.String("username", s.Username),
	)
}

// RestoreBans loads persisted bans into moderation state.
func (c *Coordinator) RestoreBans(ctx context.Context) error {
	bans, err := c.bans.Load(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mod.Restore(bans)
	return nil
}

// Rooms lists every room in creation order.
func (c *Coordinator) Rooms() []models.RoomSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomSummariesLocked()
}

// OnlineUsers lists every authenticated session.
func (c *Coordinator) OnlineUsers() []models.UserSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onlineUsersLocked()
}

// IsOnline reports whether username has a live session.
func (c *Coordinator) IsOnline(username string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byUser[username]
	return ok
}

func (c *Coordinator) deliver(event models.Event, connIDs ...string) {
	if c.out == nil || len(connIDs) == 0 {
		return
	}
	c.out.Deliver(event, connIDs...)
}

func (c *Coordinator) nextIDLocked() int64 {
	c.lastID++
	return c.lastID
}

func (c *Coordinator) systemMessage(text, roomID string) models.SystemMessage {
	return models.SystemMessage{Text: text, RoomID: roomID, Timestamp: c.now().UnixMilli()}
}

// sessionLocked returns the authenticated session for connID.
func (c *Coordinator) sessionLocked(connID string) (*Session, error) {
	s, ok := c.sessions[connID]
	if !ok {
		return nil, models.NewUnauthorizedError("Not logged in")
	}
	return s, nil
}

// checkSendLocked applies the moderation gates shared by sends and joins.
func (c *Coordinator) checkSendLocked(s *Session) error {
	if c.mod.IsBanned(s.Username) {
		return models.NewPermissionError(models.CodePermissionBanned, "You are banned")
	}
	if c.mod.IsMuted(s.Username) {
		return models.NewPermissionError(models.CodePermissionMuted, "You are muted")
	}
	return nil
}
