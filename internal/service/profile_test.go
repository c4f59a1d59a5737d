package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"lobby/internal/models"
	"lobby/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	ctx := context.Background()
	f.out.Reset()

	first, color := "  Alice  ", "FF8800"
	profile, err := f.c.UpdateProfile(ctx, alice, models.ProfileDelta{FirstName: &first, AvatarColor: &color})
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.FirstName)
	assert.Equal(t, "FF8800", profile.AvatarColor)
	assert.Equal(t, "  Alice  ", first, "the caller's delta is not rewritten")

	require.Len(t, f.out.Events(alice, models.EventProfileUpdated), 1)
	assert.Empty(t, f.out.Events(bob, models.EventProfileUpdated))
	lists := f.out.Events(bob, models.EventUserList)
	require.NotEmpty(t, lists)
	for _, u := range lists[len(lists)-1].Payload.([]models.UserSummary) {
		if u.Username == "alice" {
			assert.Equal(t, "FF8800", u.AvatarColor)
		}
	}

	stored, err := f.accounts.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored.FirstName)

	bad := "not-a-color"
	_, err = f.c.UpdateProfile(ctx, alice, models.ProfileDelta{AvatarColor: &bad})
	requireCode(t, err, models.CodeValidation)
	_, err = f.c.UpdateProfile(ctx, alice, models.ProfileDelta{})
	requireCode(t, err, models.CodeValidation)
}

// stallingAccounts holds the first UpdateProfile until release is closed.
type stallingAccounts struct {
	repository.AccountRepository
	writing chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *stallingAccounts) UpdateProfile(ctx context.Context, username string, delta models.ProfileDelta) (*models.Profile, error) {
	stall := false
	r.once.Do(func() {
		stall = true
		close(r.writing)
	})
	if stall {
		<-r.release
	}
	return r.AccountRepository.UpdateProfile(ctx, username, delta)
}

func TestUpdateProfile_ConcurrentEditsKeepBothFields(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	admin := f.admin(t, "root")
	accounts := &stallingAccounts{
		AccountRepository: f.accounts,
		writing:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	f.c.accounts = accounts
	ctx := context.Background()

	first, bio := "Alicia", "edited by root"
	self := make(chan error, 1)
	go func() {
		_, err := f.c.UpdateProfile(ctx, alice, models.ProfileDelta{FirstName: &first})
		self <- err
	}()
	<-accounts.writing

	byAdmin := make(chan error, 1)
	go func() {
		byAdmin <- f.c.AdminAction(ctx, admin, UpdateProfileCommand{Target: "alice", Delta: models.ProfileDelta{Bio: &bio}})
	}()
	time.Sleep(20 * time.Millisecond)
	close(accounts.release)
	require.NoError(t, <-self)
	require.NoError(t, <-byAdmin)

	stored, err := f.accounts.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", stored.FirstName)
	assert.Equal(t, "edited by root", stored.Bio)

	f.c.mu.Lock()
	live := f.c.sessions[alice].Profile
	f.c.mu.Unlock()
	assert.Equal(t, stored.Profile(), live, "the live session matches the stored row")
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	ctx := context.Background()
	f.out.Reset()

	dark, sound := "dark", false
	prefs, err := f.c.UpdateSettings(ctx, alice, models.PreferencesDelta{Theme: &dark, Sound: &sound})
	require.NoError(t, err)
	assert.Equal(t, "dark", prefs.Theme)
	assert.False(t, prefs.Sound)
	assert.True(t, prefs.Notifications)

	require.Len(t, f.out.Events(alice, models.EventSettingsUpdated), 1)
	themes := f.out.Events(alice, models.EventThemeChanged)
	require.Len(t, themes, 1)
	assert.Equal(t, ThemeChanged{Theme: "dark"}, themes[0].Payload)
	assert.NotEmpty(t, f.out.Events(bob, models.EventUserList), "settings changes refresh presence")
	assert.Empty(t, f.out.Events(bob, models.EventSettingsUpdated))

	_, err = f.c.UpdateSettings(ctx, alice, models.PreferencesDelta{Theme: &dark})
	require.NoError(t, err)
	assert.Len(t, f.out.Events(alice, models.EventThemeChanged), 1, "unchanged theme is not re-announced")

	f.c.Disconnect(ctx, alice)
	stored, err := f.c.Settings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "dark", stored.Theme)

	_, err = f.c.Settings(ctx, "ghost")
	requireCode(t, err, models.CodeNotFound)
}

func TestTyping(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")
	_, err := f.c.JoinRoom(context.Background(), carol, "random")
	require.NoError(t, err)

	require.NoError(t, f.c.Typing(context.Background(), alice))
	require.NoError(t, f.c.StopTyping(context.Background(), alice))

	assert.Equal(t, []string{bob}, f.out.Recipients(models.EventUserTyping))
	assert.Equal(t, []string{bob}, f.out.Recipients(models.EventUserStopTyping))
	notice := f.out.Events(bob, models.EventUserTyping)[0].Payload.(TypingNotice)
	assert.Equal(t, TypingNotice{Username: "alice", FirstName: "alice", RoomID: "general"}, notice)
}
