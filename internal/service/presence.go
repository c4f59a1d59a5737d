package service

import (
	"context"
	"sort"

	"lobby/internal/models"
)

// RoomUsers is the payload of a room-users event.
type RoomUsers struct {
	RoomID string               `json:"roomId"`
	Users  []models.UserSummary `json:"users"`
}

// TypingNotice is the payload of user-typing and user-stop-typing.
type TypingNotice struct {
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	RoomID    string `json:"roomId"`
}

// broadcastPresenceLocked sends the online user list to every session and
// each room's member list to that room's members.
func (c *Coordinator) broadcastPresenceLocked() {
	if len(c.sessions) == 0 {
		return
	}
	c.deliver(models.Event{Type: models.EventUserList, Payload: c.onlineUsersLocked()}, c.allConnIDsLocked()...)

	byRoom := make(map[string][]*Session)
	for _, s := range c.sessions {
		if s.CurrentRoom != "" {
			byRoom[s.CurrentRoom] = append(byRoom[s.CurrentRoom], s)
		}
	}
	roomIDs := make([]string, 0, len(byRoom))
	for id := range byRoom {
		roomIDs = append(roomIDs, id)
	}
	sort.Strings(roomIDs)

	for _, id := range roomIDs {
		members := byRoom[id]
		sort.Slice(members, func(i, j int) bool { return members[i].Username < members[j].Username })
		users := make([]models.UserSummary, 0, len(members))
		for _, m := range members {
			users = append(users, c.userSummaryLocked(m))
		}
		c.deliver(models.Event{
			Type:    models.EventRoomUsers,
			Payload: RoomUsers{RoomID: id, Users: users},
		}, sessionConnIDs(members, "")...)
	}
}

// Typing tells the other members of the sender's room that it is typing.
func (c *Coordinator) Typing(ctx context.Context, connID string) error {
	return c.typing(connID, models.EventUserTyping)
}

// StopTyping clears a previous Typing notice.
func (c *Coordinator) StopTyping(ctx context.Context, connID string) error {
	return c.typing(connID, models.EventUserStopTyping)
}

func (c *Coordinator) typing(connID, eventType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessionLocked(connID)
	if err != nil {
		return err
	}
	if s.CurrentRoom == "" {
		return nil
	}
	c.deliver(models.Event{
		Type: eventType,
		Payload: TypingNotice{
			Username:  s.Username,
			FirstName: s.Profile.FirstName,
			RoomID:    s.CurrentRoom,
		},
	}, sessionConnIDs(c.roomMembersLocked(s.CurrentRoom), connID)...)
	return nil
}
