package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"lobby/internal/models"
	"lobby/internal/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAction_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.register(t, "bob")

	commands := []AdminCommand{
		MuteCommand{Target: "bob"},
		UnmuteCommand{Target: "bob"},
		BanCommand{Target: "bob"},
		UnbanCommand{Target: "bob"},
		CreatePrivateRoomCommand{Name: "secret"},
		UpdateProfileCommand{Target: "bob"},
		DeleteMessageCommand{MessageID: 1},
	}
	for _, cmd := range commands {
		t.Run(cmd.Action(), func(t *testing.T) {
			err := f.c.AdminAction(context.Background(), alice, cmd)
			requireCode(t, err, models.CodeNotAdmin)
		})
	}
	assert.False(t, f.c.mod.IsMuted("bob"))
	assert.False(t, f.c.mod.IsBanned("bob"))
}

func TestMute_ExpiresAfterAdvertisedDuration(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t, "root")
	alice := f.register(t, "alice")
	ctx := context.Background()

	require.NoError(t, f.c.AdminAction(ctx, admin, MuteCommand{Target: "alice", Duration: 300 * time.Second, Reason: "spam"}))

	results := f.out.Events(alice, models.EventAdminActionResult)
	require.Len(t, results, 1)
	assert.Equal(t, AdminActionResult{Action: "muted", Duration: 300, Reason: "spam", By: "root"}, results[0].Payload)
	assert.Equal(t, []time.Duration{300 * time.Second}, f.sched.Pending())

	_, err := f.c.SendRoomMessage(ctx, alice, models.MessageInput{Text: "let me talk"})
	requireCode(t, err, models.CodePermissionMuted)

	f.sched.FireAll(false)

	results = f.out.Events(alice, models.EventAdminActionResult)
	require.Len(t, results, 2)
	assert.Equal(t, AdminActionResult{Action: "unmuted", Reason: "expired"}, results[1].Payload)
	_, err = f.c.SendRoomMessage(ctx, alice, models.MessageInput{Text: "thanks"})
	require.NoError(t, err)
}

func TestMute_StaleExpiryIsIgnored(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t, "root")
	alice := f.register(t, "alice")
	ctx := context.Background()

	require.NoError(t, f.c.AdminAction(ctx, admin, MuteCommand{Target: "alice", Duration: time.Minute}))
	m, ok := f.c.mod.MuteOf("alice")
	require.True(t, ok)
	require.NoError(t, f.c.AdminAction(ctx, admin, MuteCommand{Target: "alice", Duration: time.Hour}))
	assert.Equal(t, []time.Duration{time.Hour}, f.sched.Pending())

	f.c.expireMute("alice", m.Seq)
	assert.True(t, f.c.mod.IsMuted("alice"))

	// Fire the stopped timer too, as if it raced its cancellation.
	f.sched.FireAll(true)
	assert.False(t, f.c.mod.IsMuted("alice"))
	assert.Len(t, expiredNotices(f, alice), 1)
}

func TestMute_ManualUnmuteCancelsExpiry(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t, "root")
	alice := f.register(t, "alice")
	ctx := context.Background()

	require.NoError(t, f.c.AdminAction(ctx, admin, MuteCommand{Target: "alice", Duration: time.Minute}))
	require.NoError(t, f.c.AdminAction(ctx, admin, UnmuteCommand{Target: "alice"}))
	assert.Empty(t, f.sched.Pending())

	f.sched.FireAll(true)
	assert.False(t, f.c.mod.IsMuted("alice"))
	assert.Empty(t, expiredNotices(f, alice))
}

func expiredNotices(f *fixture, connID string) []models.Event {
	var out []models.Event
	for _, ev := range f.out.Events(connID, models.EventAdminActionResult) {
		if ev.Payload.(AdminActionResult).Reason == "expired" {
			out = append(out, ev)
		}
	}
	return out
}

func TestMute_DefaultsAndUnmute(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t, "root")
	alice := f.register(t, "alice")
	ctx := context.Background()

	require.NoError(t, f.c.AdminAction(ctx, admin, MuteCommand{Target: "alice"}))
	m, ok := f.c.mod.MuteOf("alice")
	require.True(t, ok)
	assert.Equal(t, 300*time.Second, m.Duration)
	assert.Equal(t, defaultModerationReason, m.Reason)

	users := f.c.OnlineUsers()
	for _, u := range users {
		assert.Equal(t, u.Username == "alice", u.IsMuted)
	}

	require.NoError(t, f.c.AdminAction(ctx, admin, UnmuteCommand{Target: "alice"}))
	assert.Empty(t, f.sched.Pending())
	err := f.c.AdminAction(ctx, admin, UnmuteCommand{Target: "alice"})
	requireCode(t, err, models.CodeNotFound)

	results := f.out.Events(alice, models.EventAdminActionResult)
	require.Len(t, results, 2)
	assert.Equal(t, "unmuted", results[1].Payload.(AdminActionResult).Action)

	err = f.c.AdminAction(ctx, admin, MuteCommand{Target: "root"})
	requireCode(t, err, models.CodeValidation)
	err = f.c.AdminAction(ctx, admin, MuteCommand{Target: "alice", Duration: -time.Second})
	requireCode(t, err, models.CodeValidation)
}

func TestBan_NotifiesKicksAndPersists(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t, "root")
	mallory := f.register(t, "mallory")
	ctx := context.Background()

	require.NoError(t, f.c.AdminAction(ctx, admin, BanCommand{Target: "mallory", Reason: "abuse"}))

	results := f.out.Events(mallory, models.EventAdminActionResult)
	require.Len(t, results, 1)
	assert.Equal(t, AdminActionResult{Action: "banned", Reason: "abuse", By: "root"}, results[0].Payload)
	delay, kicked := f.out.Kicked(mallory)
	require.True(t, kicked)
	assert.Equal(t, time.Second, delay)

	_, err := f.c.SendRoomMessage(ctx, mallory, models.MessageInput{Text: "before the kick"})
	requireCode(t, err, models.CodePermissionBanned)

	bans, err := f.bans.Load(ctx)
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.Equal(t, "root", bans[0].BannedBy)

	f.c.Disconnect(ctx, mallory)
	f.c.Connect("retry")
	_, err = f.c.Login(ctx, "retry", "mallory", "secret123")
	requireCode(t, err, models.CodeAuthBanned)

	require.NoError(t, f.c.AdminAction(ctx, admin, UnbanCommand{Target: "mallory"}))
	bans, err = f.bans.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, bans)
	_, err = f.c.Login(ctx, "retry", "mallory", "secret123")
	require.NoError(t, err)

	err = f.c.AdminAction(ctx, admin, UnbanCommand{Target: "mallory"})
	requireCode(t, err, models.CodeNotFound)
}

// gatedBanStore holds the first Save until release is closed.
type gatedBanStore struct {
	moderation.BanStore
	saving  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedBanStore) Save(ctx context.Context, ban moderation.Ban) error {
	s.once.Do(func() { close(s.saving) })
	<-s.release
	return s.BanStore.Save(ctx, ban)
}

func TestBanThenUnban_SlowSaveDoesNotResurrectBan(t *testing.T) {
	f := newFixture(t)
	store := &gatedBanStore{BanStore: f.bans, saving: make(chan struct{}), release: make(chan struct{})}
	f.c.bans = store
	admin := f.admin(t, "root")
	f.register(t, "bob")
	ctx := context.Background()

	banned := make(chan error, 1)
	go func() { banned <- f.c.AdminAction(ctx, admin, BanCommand{Target: "bob"}) }()
	<-store.saving

	unbanned := make(chan error, 1)
	go func() { unbanned <- f.c.AdminAction(ctx, admin, UnbanCommand{Target: "bob"}) }()
	require.Eventually(t, func() bool {
		f.c.mu.Lock()
		defer f.c.mu.Unlock()
		return !f.c.mod.IsBanned("bob")
	}, time.Second, time.Millisecond)

	close(store.release)
	require.NoError(t, <-banned)
	require.NoError(t, <-unbanned)

	bans, err := f.bans.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, bans, "stored bans must match the in-memory set after both writes land")
}

func TestCreatePrivateRoom(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t, "root")
	alice := f.register(t, "alice")
	ctx := context.Background()

	err := f.c.AdminAction(ctx, admin, CreatePrivateRoomCommand{Name: "  "})
	requireCode(t, err, models.CodeValidation)

	require.NoError(t, f.c.AdminAction(ctx, admin, CreatePrivateRoomCommand{Name: "Staff", AllowedUsers: []string{"alice"}}))
	require.NoError(t, f.c.AdminAction(ctx, admin, CreatePrivateRoomCommand{Name: "Ops"}))

	assert.Equal(t, []string{alice, admin}, f.out.Recipients(models.EventNewRoomCreated))
	created := f.out.Events(alice, models.EventNewRoomCreated)
	require.Len(t, created, 2)
	first := created[0].Payload.(models.RoomSummary)
	assert.Equal(t, "private-1", first.ID)
	assert.Equal(t, "Private room", first.Description)
	assert.True(t, first.IsPrivate)
	assert.Equal(t, "private-2", created[1].Payload.(models.RoomSummary).ID)

	_, err = f.c.JoinRoom(ctx, alice, "private-1")
	require.NoError(t, err)
	_, err = f.c.JoinRoom(ctx, alice, "private-2")
	requireCode(t, err, models.CodePermissionNoAccess)
	_, err = f.c.JoinRoom(ctx, admin, "private-2")
	require.NoError(t, err)
}

func TestAdminUpdateProfile(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t, "root")
	alice := f.register(t, "alice")
	f.register(t, "bob")
	f.c.Disconnect(context.Background(), "conn-bob")
	ctx := context.Background()

	name := "Alicia"
	require.NoError(t, f.c.AdminAction(ctx, admin, UpdateProfileCommand{Target: "alice", Delta: models.ProfileDelta{FirstName: &name}}))
	updates := f.out.Events(alice, models.EventProfileUpdated)
	require.Len(t, updates, 1)
	assert.Equal(t, "Alicia", updates[0].Payload.(models.Profile).FirstName)

	bio := "offline edit"
	require.NoError(t, f.c.AdminAction(ctx, admin, UpdateProfileCommand{Target: "bob", Delta: models.ProfileDelta{Bio: &bio}}))
	stored, err := f.accounts.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "offline edit", stored.Bio)

	err = f.c.AdminAction(ctx, admin, UpdateProfileCommand{Target: "ghost", Delta: models.ProfileDelta{Bio: &bio}})
	requireCode(t, err, models.CodeNotFound)
}
