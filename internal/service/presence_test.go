package service

import (
	"context"
	"testing"

	"lobby/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usernamesOf(users []models.UserSummary) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

func lastRoomUsers(t *testing.T, f *fixture, connID string) RoomUsers {
	t.Helper()
	events := f.out.Events(connID, models.EventRoomUsers)
	require.NotEmpty(t, events)
	return events[len(events)-1].Payload.(RoomUsers)
}

func TestPresence_RoomUsersGoToEachRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")
	f.out.Reset()

	_, err := f.c.JoinRoom(ctx, bob, "random")
	require.NoError(t, err)

	general := lastRoomUsers(t, f, alice)
	assert.Equal(t, "general", general.RoomID)
	assert.Equal(t, []string{"alice", "carol"}, usernamesOf(general.Users))
	assert.Equal(t, general, lastRoomUsers(t, f, carol))

	random := lastRoomUsers(t, f, bob)
	assert.Equal(t, "random", random.RoomID)
	assert.Equal(t, []string{"bob"}, usernamesOf(random.Users))

	lists := f.out.Events(alice, models.EventUserList)
	require.Len(t, lists, 1)
	online := lists[0].Payload.([]models.UserSummary)
	assert.Equal(t, []string{"alice", "bob", "carol"}, usernamesOf(online))
	assert.Equal(t, "random", online[1].CurrentRoom)
}

func TestPresence_DisconnectRefreshesLists(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	f.out.Reset()

	f.c.Disconnect(context.Background(), bob)

	lists := f.out.Events(alice, models.EventUserList)
	require.Len(t, lists, 1)
	assert.Equal(t, []string{"alice"}, usernamesOf(lists[0].Payload.([]models.UserSummary)))
	assert.Equal(t, []string{"alice"}, usernamesOf(lastRoomUsers(t, f, alice).Users))
	assert.Empty(t, f.out.Events(bob, models.EventUserList))
}
