package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lobby/internal/models"
	"lobby/internal/validation"
)

// SeedRooms registers rooms that do not exist yet. Seeded rooms without an
// owner are attributed to "system".
func (c *Coordinator) SeedRooms(rooms []models.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range rooms {
		if r.ID == "" {
			continue
		}
		if existing, ok := c.rooms[r.ID]; ok {
			// The default room exists from construction with a placeholder name.
			if r.Name != "" {
				existing.Name = r.Name
			}
			if r.Description != "" {
				existing.Description = r.Description
			}
			continue
		}
		room := r
		if room.CreatedBy == "" {
			room.CreatedBy = "system"
		}
		if room.Name == "" {
			room.Name = "Room " + room.ID
		}
		if room.AllowedUsers == nil {
			room.AllowedUsers = make(map[string]struct{})
		}
		if room.IsPrivate {
			room.AllowedUsers[room.CreatedBy] = struct{}{}
		}
		room.CreatedAt = c.now()
		c.addRoomLocked(&room)
	}
}

// JoinRoom moves the session into roomID, creating a public room owned by
// the requester when the id is unknown. All checks run before any state
// changes.
func (c *Coordinator) JoinRoom(ctx context.Context, connID, roomID string) (*models.RoomSnapshot, error) {
	roomID = strings.TrimSpace(roomID)
	if err := validation.ValidateRoomID(roomID); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessionLocked(connID)
	if err != nil {
		return nil, err
	}
	if err := c.checkSendLocked(s); err != nil {
		return nil, err
	}
	if room, ok := c.rooms[roomID]; ok && !room.CanAccess(s.Username) {
		return nil, models.NewPermissionError(models.CodePermissionNoAccess, "You do not have access to this room")
	}

	previous := s.CurrentRoom
	room := c.ensureRoomLocked(roomID, s.Username)
	s.CurrentRoom = roomID

	snapshot := c.roomSnapshotLocked(room)
	c.deliver(models.Event{Type: models.EventRoomJoined, Payload: snapshot}, connID)
	if previous != roomID {
		c.deliver(models.Event{
			Type:    models.EventSystemMessage,
			Payload: c.systemMessage(s.Profile.DisplayName(s.Username)+" entered the room", roomID),
		}, sessionConnIDs(c.roomMembersLocked(roomID), connID)...)
		c.broadcastPresenceLocked()
	}

	c.logger.DebugContext(ctx, "room joined",
		slog.String("username", s.Username),
		slog.String("room", roomID),
		slog.String("previous", previous),
	)
	return &snapshot, nil
}

// createPrivateRoomLocked allocates a private-<n> room whose allow-list
// always contains the creator.
func (c *Coordinator) createPrivateRoomLocked(creator string, cmd CreatePrivateRoomCommand) (*models.Room, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, models.NewValidationError("Room name is required")
	}
	if err := validation.ValidateProfileField("room name", name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var id string
	for {
		c.privateSeq++
		id = fmt.Sprintf("private-%d", c.privateSeq)
		if _, taken := c.rooms[id]; !taken {
			break
		}
	}

	allowed := map[string]struct{}{creator: {}}
	for _, u := range cmd.AllowedUsers {
		if u = strings.TrimSpace(u); u != "" {
			allowed[u] = struct{}{}
		}
	}
	description := cmd.Description
	if description == "" {
		description = "Private room"
	}

	room := &models.Room{
		ID:           id,
		Name:         name,
		Description:  description,
		IsPrivate:    true,
		AllowedUsers: allowed,
		CreatedBy:    creator,
		CreatedAt:    c.now(),
	}
	c.addRoomLocked(room)
	return room, nil
}

func (c *Coordinator) ensureRoomLocked(roomID, owner string) *models.Room {
	if room, ok := c.rooms[roomID]; ok {
		return room
	}
	room := &models.Room{
		ID:           roomID,
		Name:         "Room " + roomID,
		Description:  "New room",
		AllowedUsers: make(map[string]struct{}),
		CreatedBy:    owner,
		CreatedAt:    c.now(),
	}
	c.addRoomLocked(room)
	return room
}

func (c *Coordinator) addRoomLocked(room *models.Room) {
	c.rooms[room.ID] = room
	c.roomOrder = append(c.roomOrder, room.ID)
}

func (c *Coordinator) roomSummaryLocked(room *models.Room) models.RoomSummary {
	return models.RoomSummary{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		IsPrivate:   room.IsPrivate,
		CreatedBy:   room.CreatedBy,
		UserCount:   len(c.roomMembersLocked(room.ID)),
	}
}

func (c *Coordinator) roomSummariesLocked() []models.RoomSummary {
	out := make([]models.RoomSummary, 0, len(c.roomOrder))
	for _, id := range c.roomOrder {
		out = append(out, c.roomSummaryLocked(c.rooms[id]))
	}
	return out
}

func (c *Coordinator) roomSnapshotLocked(room *models.Room) models.RoomSnapshot {
	members := c.roomMembersLocked(room.ID)
	users := make([]string, 0, len(members))
	for _, m := range members {
		users = append(users, m.Username)
	}
	return models.RoomSnapshot{
		Room:     c.roomSummaryLocked(room),
		Messages: c.roomLog.Last(room.ID, c.opts.HistoryPageSize),
		Users:    users,
	}
}
