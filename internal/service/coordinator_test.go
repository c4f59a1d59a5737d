package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"lobby/internal/auth"
	"lobby/internal/models"
	"lobby/internal/moderation"
	"lobby/internal/repository"
	"lobby/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	c        *Coordinator
	out      *testutil.RecordingDeliverer
	sched    *testutil.ManualScheduler
	accounts repository.AccountRepository
	hasher   auth.PasswordHasher
	bans     moderation.BanStore
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		out:      testutil.NewRecordingDeliverer(),
		sched:    &testutil.ManualScheduler{},
		accounts: repository.NewAccountRepository(testutil.NewSQLiteDB(t)),
		hasher:   &auth.BcryptHasher{Cost: bcrypt.MinCost},
		bans:     moderation.NewMemoryBanStore(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.c = NewCoordinator(Dependencies{
		Accounts:  f.accounts,
		Hasher:    f.hasher,
		Tokens:    auth.NewTokenIssuer("test-secret", time.Hour),
		Bans:      f.bans,
		Deliverer: f.out,
		Scheduler: f.sched.Schedule,
		Now:       func() time.Time { return f.now },
	}, Options{})
	return f
}

// register opens connection "conn-<username>" and registers username on it.
func (f *fixture) register(t *testing.T, username string) string {
	t.Helper()
	connID := "conn-" + username
	f.c.Connect(connID)
	_, err := f.c.Register(context.Background(), connID, RegisterInput{
		Username:  username,
		Password:  "secret123",
		FirstName: username,
	})
	require.NoError(t, err)
	return connID
}

// admin seeds an admin account and logs it in.
func (f *fixture) admin(t *testing.T, username string) string {
	t.Helper()
	hash, err := f.hasher.Hash("adminpass")
	require.NoError(t, err)
	require.NoError(t, f.accounts.Create(context.Background(), &models.Account{
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Preferences:  models.DefaultPreferences(),
	}))
	connID := "conn-" + username
	f.c.Connect(connID)
	_, err = f.c.Login(context.Background(), connID, username, "adminpass")
	require.NoError(t, err)
	return connID
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, models.AsAppError(err).Code, err.Error())
}

func TestRegister_BindsSessionToDefaultRoom(t *testing.T) {
	f := newFixture(t)
	f.c.Connect("c1")

	res, err := f.c.Register(context.Background(), "c1", RegisterInput{
		Username:  "alice",
		Password:  "secret123",
		FirstName: "Alice",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", res.User.Username)
	assert.Equal(t, "general", res.User.CurrentRoom)
	assert.Equal(t, models.DefaultAvatarColor, res.User.AvatarColor)
	assert.NotEmpty(t, res.Token)
	assert.Empty(t, res.Threads)
	assert.Equal(t, []string{"alice"}, res.CurrentRoom.Users)
	assert.True(t, f.c.IsOnline("alice"))

	require.Len(t, f.out.Events("c1", models.EventRegistered), 1)
	notices := f.out.Events("c1", models.EventSystemMessage)
	require.Len(t, notices, 1)
	assert.Equal(t, "Alice joined the chat", notices[0].Payload.(models.SystemMessage).Text)
	assert.NotEmpty(t, f.out.Events("c1", models.EventUserList))

	stored, err := f.accounts.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NoError(t, f.hasher.Verify(stored.PasswordHash, "secret123"))
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	f.c.Connect("c1")

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"short username", RegisterInput{Username: "ab", Password: "secret123"}},
		{"bad characters", RegisterInput{Username: "bad name", Password: "secret123"}},
		{"short password", RegisterInput{Username: "alice", Password: "12345"}},
		{"bad color", RegisterInput{Username: "alice", Password: "secret123", AvatarColor: "blue"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.c.Register(context.Background(), "c1", tt.in)
			requireCode(t, err, models.CodeValidation)
		})
	}

	acct, err := f.accounts.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, acct, "rejected registrations must not touch the store")
}

func TestRegister_ConcurrentDuplicate(t *testing.T) {
	f := newFixture(t)
	const attempts = 8

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		connID := fmt.Sprintf("c%d", i)
		f.c.Connect(connID)
		wg.Add(1)
		go func(i int, connID string) {
			defer wg.Done()
			_, errs[i] = f.c.Register(context.Background(), connID, RegisterInput{Username: "alice", Password: "secret123"})
		}(i, connID)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		requireCode(t, err, models.CodeAuthDuplicate)
	}
	assert.Equal(t, 1, successes)
	assert.Len(t, f.c.OnlineUsers(), 1)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	f.c.Disconnect(context.Background(), "conn-alice")

	f.c.Connect("c2")
	_, err := f.c.Login(context.Background(), "c2", "nobody", "secret123")
	requireCode(t, err, models.CodeAuthNotFound)

	_, err = f.c.Login(context.Background(), "c2", "alice", "wrong-password")
	requireCode(t, err, models.CodeAuthBadPassword)

	res, err := f.c.Login(context.Background(), "c2", "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.User.Username)

	_, err = f.c.Login(context.Background(), "c2", "alice", "secret123")
	requireCode(t, err, models.CodeAuthDuplicate)

	f.c.Connect("c3")
	_, err = f.c.Login(context.Background(), "c3", "alice", "secret123")
	requireCode(t, err, models.CodeAuthDuplicate)
}

func TestLogin_Banned(t *testing.T) {
	f := newFixture(t)
	f.register(t, "mallory")
	f.c.Disconnect(context.Background(), "conn-mallory")
	require.NoError(t, f.bans.Save(context.Background(), moderation.Ban{Username: "mallory"}))
	require.NoError(t, f.c.RestoreBans(context.Background()))

	f.c.Connect("c2")
	_, err := f.c.Login(context.Background(), "c2", "mallory", "secret123")
	requireCode(t, err, models.CodeAuthBanned)

	_, err = f.c.Register(context.Background(), "c2", RegisterInput{Username: "mallory", Password: "secret123"})
	requireCode(t, err, models.CodeAuthBanned)
}

func TestLogin_ConnectionClosedDuringHash(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	f.c.Disconnect(context.Background(), "conn-alice")

	f.c.Connect("c2")
	slow := &hookHasher{PasswordHasher: f.hasher, onVerify: func() {
		f.c.Disconnect(context.Background(), "c2")
	}}
	f.c.hasher = slow

	_, err := f.c.Login(context.Background(), "c2", "alice", "secret123")
	requireCode(t, err, models.CodeUnauthenticated)
	assert.False(t, f.c.IsOnline("alice"))
}

type hookHasher struct {
	auth.PasswordHasher
	onVerify func()
}

func (h *hookHasher) Verify(hash, password string) error {
	h.onVerify()
	return h.PasswordHasher.Verify(hash, password)
}

func TestDisconnect_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	f.out.Reset()

	f.c.Disconnect(context.Background(), alice)
	f.c.Disconnect(context.Background(), alice)

	left := f.out.Events(bob, models.EventSystemMessage)
	require.Len(t, left, 1)
	assert.Equal(t, "alice left the chat", left[0].Payload.(models.SystemMessage).Text)
	assert.False(t, f.c.IsOnline("alice"))

	lists := f.out.Events(bob, models.EventUserList)
	require.NotEmpty(t, lists)
	users := lists[len(lists)-1].Payload.([]models.UserSummary)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)

	_, err := f.c.SendRoomMessage(context.Background(), alice, models.MessageInput{Text: "still here?"})
	requireCode(t, err, models.CodeUnauthenticated)
}

func TestUnauthenticatedEvents(t *testing.T) {
	f := newFixture(t)
	f.c.Connect("anon")
	ctx := context.Background()

	_, err := f.c.JoinRoom(ctx, "anon", "random")
	requireCode(t, err, models.CodeUnauthenticated)
	_, err = f.c.StartPrivateChat(ctx, "anon", "bob")
	requireCode(t, err, models.CodeUnauthenticated)
	err = f.c.Typing(ctx, "anon")
	requireCode(t, err, models.CodeUnauthenticated)
	err = f.c.AdminAction(ctx, "anon", UnbanCommand{Target: "bob"})
	requireCode(t, err, models.CodeUnauthenticated)
}
