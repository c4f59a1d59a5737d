package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"lobby/internal/models"
)

// PrivateChatNotice tells a user that someone opened a thread with them.
type PrivateChatNotice struct {
	From     string `json:"from"`
	FromName string `json:"fromName"`
}

// StartPrivateChat points the requester's private channel at target and
// returns the thread so far. Only the requester's peer changes.
func (c *Coordinator) StartPrivateChat(ctx context.Context, connID, target string) (*models.ThreadSnapshot, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, models.NewValidationError("Target username is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessionLocked(connID)
	if err != nil {
		return nil, err
	}
	if target == s.Username {
		return nil, models.NewValidationError("Cannot start a private chat with yourself")
	}
	peer, ok := c.liveSessionLocked(target)
	if !ok {
		return nil, models.NewNotFoundError("User", target)
	}

	s.CurrentPeer = peer.Username
	key := models.PairKey(s.Username, peer.Username)
	c.privateLog.UpdateAll(key,
		func(m models.PrivateMessage) bool { return m.To == s.Username && !m.Read },
		func(m *models.PrivateMessage) { m.Read = true },
	)

	snapshot := models.ThreadSnapshot{
		With:     c.userSummaryLocked(peer),
		Messages: c.privateLog.Last(key, c.opts.HistoryPageSize),
	}
	c.deliver(models.Event{Type: models.EventPrivateChatStarted, Payload: snapshot}, connID)
	c.deliver(models.Event{
		Type:    models.EventPrivateChatNotice,
		Payload: PrivateChatNotice{From: s.Username, FromName: s.Profile.DisplayName(s.Username)},
	}, peer.ConnID)

	c.logger.DebugContext(ctx, "private chat opened",
		slog.String("username", s.Username),
		slog.String("peer", peer.Username),
	)
	return &snapshot, nil
}

// SendPrivateMessage appends to the thread between the sender and its
// current peer.
func (c *Coordinator) SendPrivateMessage(ctx context.Context, connID string, in models.MessageInput) (*models.PrivateMessage, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessionLocked(connID)
	if err != nil {
		return nil, err
	}
	if s.CurrentPeer == "" {
		return nil, models.NewValidationError("Open a private chat first")
	}
	if err := c.checkSendLocked(s); err != nil {
		return nil, err
	}
	peer, ok := c.liveSessionLocked(s.CurrentPeer)
	if !ok {
		return nil, models.NewNotFoundError("User", s.CurrentPeer)
	}

	msg := models.PrivateMessage{
		ID:         c.nextIDLocked(),
		From:       s.Username,
		FromName:   s.Profile.DisplayName(s.Username),
		To:         peer.Username,
		Text:       in.Text,
		Attachment: in.Attachment,
		CreatedAt:  c.now(),
	}
	// A peer already looking at this thread reads it on arrival.
	if peer.CurrentPeer == s.Username {
		msg.Read = true
	}
	c.privateLog.Append(models.PairKey(s.Username, peer.Username), msg)

	c.deliver(models.Event{Type: models.EventPrivateMessageSent, Payload: msg}, connID)
	if peer.Preferences.Notifications {
		c.deliver(models.Event{Type: models.EventNewPrivateMessage, Payload: msg}, peer.ConnID)
	}

	c.logger.DebugContext(ctx, "private message",
		slog.String("from", s.Username),
		slog.String("to", peer.Username),
		slog.Int64("message_id", msg.ID),
	)
	return &msg, nil
}

// threadSummariesLocked lists every thread username takes part in, newest
// first.
func (c *Coordinator) threadSummariesLocked(username string) []models.ThreadSummary {
	out := []models.ThreadSummary{}
	for _, key := range c.privateLog.Keys() {
		peer, ok := peerFromKey(key, username)
		if !ok {
			continue
		}
		last := c.privateLog.Last(key, 1)
		if len(last) == 0 {
			continue
		}
		m := last[0]
		out = append(out, models.ThreadSummary{
			With:        peer,
			LastMessage: preview(m),
			Time:        m.CreatedAt,
			Unread:      m.From != username && !m.Read,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].With < out[j].With
		}
		return out[i].Time.After(out[j].Time)
	})
	return out
}

// peerFromKey returns the other participant of a pair key.
func peerFromKey(key, username string) (string, bool) {
	a, b, ok := strings.Cut(key, models.PairSeparator)
	switch {
	case !ok:
		return "", false
	case a == username:
		return b, true
	case b == username:
		return a, true
	default:
		return "", false
	}
}

func preview(m models.PrivateMessage) string {
	if m.Text != "" {
		return m.Text
	}
	if m.Attachment != nil {
		if m.Attachment.IsAudio {
			return "Voice message"
		}
		return "File: " + m.Attachment.Name
	}
	return ""
}
