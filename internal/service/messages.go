package service

import (
	"context"
	"log/slog"
	"strings"

	"lobby/internal/models"
	"lobby/internal/observability"
)

// Mention is the payload delivered to a user named in a room message.
type Mention struct {
	From     string         `json:"from"`
	FromName string         `json:"fromName"`
	Room     string         `json:"room"`
	RoomID   string         `json:"roomId"`
	Message  models.Message `json:"message"`
}

// MessageDeleted is the payload of a message-deleted event.
type MessageDeleted struct {
	MessageID int64  `json:"messageId"`
	RoomID    string `json:"roomId"`
}

// SendRoomMessage appends a message to the sender's current room and fans it
// out. A rejected send leaves history untouched.
func (c *Coordinator) SendRoomMessage(ctx context.Context, connID string, in models.MessageInput) (*models.Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
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
	room, ok := c.rooms[s.CurrentRoom]
	if !ok {
		return nil, models.NewValidationError("Join a room first")
	}

	msg := models.Message{
		ID:            c.nextIDLocked(),
		Author:        s.Username,
		AuthorName:    s.Profile.DisplayName(s.Username),
		AuthorColor:   s.Profile.AvatarColor,
		AuthorIsAdmin: s.IsAdmin(),
		Text:          in.Text,
		Attachment:    in.Attachment,
		Emoji:         in.Emoji,
		RoomID:        room.ID,
		CreatedAt:     c.now(),
	}
	c.roomLog.Append(room.ID, msg)
	observability.MessageThroughput.WithLabelValues(room.ID, messageType(msg)).Inc()

	c.deliver(models.Event{Type: models.EventNewMessage, Payload: msg}, c.roomRecipientsLocked(room.ID, s)...)
	c.notifyMentionsLocked(s, room, msg)

	c.logger.DebugContext(ctx, "room message",
		slog.String("username", s.Username),
		slog.String("room", room.ID),
		slog.Int64("message_id", msg.ID),
	)
	return &msg, nil
}

func (c *Coordinator) notifyMentionsLocked(author *Session, room *models.Room, msg models.Message) {
	names := DetectMentions(msg.Text)
	for _, name := range names {
		if name == author.Username {
			continue
		}
		target, ok := c.liveSessionLocked(name)
		if !ok || !target.Preferences.Notifications {
			continue
		}
		c.deliver(models.Event{
			Type: models.EventMention,
			Payload: Mention{
				From:     author.Username,
				FromName: msg.AuthorName,
				Room:     room.Name,
				RoomID:   room.ID,
				Message:  msg,
			},
		}, target.ConnID)
	}
}

// EditMessage replaces the text of a message in the editor's current room.
// Only the author or an admin may edit.
func (c *Coordinator) EditMessage(ctx context.Context, connID string, messageID int64, newText string) (*models.Message, error) {
	if strings.TrimSpace(newText) == "" {
		return nil, models.NewValidationError("message text is required")
	}
	if len([]rune(newText)) > models.MaxMessageLength {
		return nil, models.NewValidationError("message is too long")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessionLocked(connID)
	if err != nil {
		return nil, err
	}
	roomID := s.CurrentRoom
	byID := func(m models.Message) bool { return m.ID == messageID }

	existing, ok := c.roomLog.Find(roomID, byID)
	if !ok {
		return nil, models.NewNotFoundError("Message", messageID)
	}
	if existing.Author != s.Username && !s.IsAdmin() {
		return nil, models.NewPermissionError(models.CodeNotAuthor, "You can only edit your own messages")
	}

	updated, _ := c.roomLog.Update(roomID, byID, func(m *models.Message) {
		m.Text = newText
		m.IsEdited = true
	})
	c.deliver(models.Event{Type: models.EventMessageEdited, Payload: updated},
		sessionConnIDs(c.roomMembersLocked(roomID), "")...)

	c.logger.DebugContext(ctx, "message edited",
		slog.String("username", s.Username),
		slog.String("room", roomID),
		slog.Int64("message_id", messageID),
	)
	return &updated, nil
}

// DeleteMessage removes a room message. Admin only. An empty roomID means the
// requester's current room.
func (c *Coordinator) DeleteMessage(ctx context.Context, connID, roomID string, messageID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessionLocked(connID)
	if err != nil {
		return err
	}
	if !s.IsAdmin() {
		return models.NewPermissionError(models.CodeNotAdmin, "Admin privileges required")
	}
	return c.deleteMessageLocked(ctx, s, roomID, messageID)
}

func (c *Coordinator) deleteMessageLocked(ctx context.Context, by *Session, roomID string, messageID int64) error {
	if roomID == "" {
		roomID = by.CurrentRoom
	}
	if _, ok := c.roomLog.Remove(roomID, func(m models.Message) bool { return m.ID == messageID }); !ok {
		return models.NewNotFoundError("Message", messageID)
	}
	c.deliver(models.Event{
		Type:    models.EventMessageDeleted,
		Payload: MessageDeleted{MessageID: messageID, RoomID: roomID},
	}, sessionConnIDs(c.roomMembersLocked(roomID), "")...)

	c.logger.InfoContext(ctx, "message deleted",
		slog.String("by", by.Username),
		slog.String("room", roomID),
		slog.Int64("message_id", messageID),
	)
	return nil
}

func messageType(m models.Message) string {
	switch {
	case m.Attachment != nil && m.Attachment.IsAudio:
		return "audio"
	case m.Attachment != nil:
		return "file"
	default:
		return "text"
	}
}
