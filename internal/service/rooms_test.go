package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"lobby/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countRooms(rooms []models.RoomSummary, id string) int {
	n := 0
	for _, r := range rooms {
		if r.ID == id {
			n++
		}
	}
	return n
}

func TestJoinRoom_UnknownRoomCreatedOnce(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")

	snap, err := f.c.JoinRoom(context.Background(), alice, "lounge")
	require.NoError(t, err)
	assert.Equal(t, "lounge", snap.Room.ID)
	assert.False(t, snap.Room.IsPrivate)
	assert.Equal(t, "alice", snap.Room.CreatedBy)
	assert.Equal(t, []string{"alice"}, snap.Users)

	_, err = f.c.JoinRoom(context.Background(), alice, "lounge")
	require.NoError(t, err)
	assert.Equal(t, 1, countRooms(f.c.Rooms(), "lounge"))
}

func TestJoinRoom_ConcurrentCreatorsShareOneRoom(t *testing.T) {
	f := newFixture(t)
	conns := make([]string, 6)
	for i := range conns {
		conns[i] = f.register(t, fmt.Sprintf("user%d", i))
	}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn string) {
			defer wg.Done()
			_, err := f.c.JoinRoom(context.Background(), conn, "lounge")
			assert.NoError(t, err)
		}(conn)
	}
	wg.Wait()

	rooms := f.c.Rooms()
	require.Equal(t, 1, countRooms(rooms, "lounge"))
	for _, r := range rooms {
		if r.ID == "lounge" {
			assert.Equal(t, len(conns), r.UserCount)
		}
	}
}

func TestJoinRoom_Notices(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	_, err := f.c.JoinRoom(context.Background(), bob, "random")
	require.NoError(t, err)
	f.out.Reset()

	_, err = f.c.JoinRoom(context.Background(), alice, "random")
	require.NoError(t, err)

	notices := f.out.Events(bob, models.EventSystemMessage)
	require.Len(t, notices, 1)
	assert.Equal(t, "alice entered the room", notices[0].Payload.(models.SystemMessage).Text)
	assert.Empty(t, f.out.Events(alice, models.EventSystemMessage))
	require.Len(t, f.out.Events(alice, models.EventRoomJoined), 1)

	roomUsers := f.out.Events(bob, models.EventRoomUsers)
	require.NotEmpty(t, roomUsers)
	last := roomUsers[len(roomUsers)-1].Payload.(RoomUsers)
	assert.Equal(t, "random", last.RoomID)
	assert.Len(t, last.Users, 2)

	f.out.Reset()
	_, err = f.c.JoinRoom(context.Background(), alice, "random")
	require.NoError(t, err)
	assert.Empty(t, f.out.Events(bob, models.EventSystemMessage), "rejoining the same room is silent")
}

func TestJoinRoom_Rejections(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t, "root")
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	require.NoError(t, f.c.AdminAction(context.Background(), admin, CreatePrivateRoomCommand{
		Name:         "Staff",
		AllowedUsers: []string{"bob"},
	}))

	_, err := f.c.JoinRoom(context.Background(), alice, "private-1")
	requireCode(t, err, models.CodePermissionNoAccess)
	_, err = f.c.JoinRoom(context.Background(), bob, "private-1")
	require.NoError(t, err)
	_, err = f.c.JoinRoom(context.Background(), admin, "private-1")
	require.NoError(t, err)

	_, err = f.c.JoinRoom(context.Background(), alice, "")
	requireCode(t, err, models.CodeValidation)

	require.NoError(t, f.c.AdminAction(context.Background(), admin, MuteCommand{Target: "alice"}))
	_, err = f.c.JoinRoom(context.Background(), alice, "random")
	requireCode(t, err, models.CodePermissionMuted)
	assert.Equal(t, 0, countRooms(f.c.Rooms(), "random"), "rejected joins must not create rooms")
}

func TestSeedRooms(t *testing.T) {
	f := newFixture(t)
	f.c.SeedRooms([]models.Room{
		{ID: "general", Name: "General", Description: "Talk about anything"},
		{ID: "media"},
		{ID: "staff", IsPrivate: true},
		{ID: "general", Name: "Dup"},
	})

	rooms := f.c.Rooms()
	require.Len(t, rooms, 3)
	assert.Equal(t, "Dup", rooms[0].Name)
	assert.Equal(t, "Talk about anything", rooms[0].Description)
	assert.Equal(t, "Room media", rooms[1].Name)
	assert.Equal(t, "system", rooms[2].CreatedBy)
	assert.True(t, rooms[2].IsPrivate)
}
