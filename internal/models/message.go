package models

import (
	"sort"
	"strings"
	"time"
)

// MaxMessageLength bounds the text of a single message.
const MaxMessageLength = 10000

// Attachment describes an uploaded file. Storage and transcoding happen
// elsewhere; the coordinator only relays the descriptor.
type Attachment struct {
	URL      string  `json:"url"`
	Name     string  `json:"name"`
	MimeType string  `json:"type"`
	Size     int64   `json:"size"`
	IsAudio  bool    `json:"isAudio"`
	Duration float64 `json:"duration,omitempty"`
}

// Message is a room message.
type Message struct {
	ID            int64       `json:"id"`
	Author        string      `json:"username"`
	AuthorName    string      `json:"firstName"`
	AuthorColor   string      `json:"avatarColor"`
	AuthorIsAdmin bool        `json:"isAdmin"`
	Text          string      `json:"text"`
	Attachment    *Attachment `json:"file,omitempty"`
	Emoji         string      `json:"emoji,omitempty"`
	IsEdited      bool        `json:"isEdited"`
	RoomID        string      `json:"roomId"`
	CreatedAt     time.Time   `json:"timestamp"`
}

// PrivateMessage is a message within a dyadic thread.
type PrivateMessage struct {
	ID         int64       `json:"id"`
	From       string      `json:"from"`
	FromName   string      `json:"fromName"`
	To         string      `json:"to"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"file,omitempty"`
	Read       bool        `json:"read"`
	CreatedAt  time.Time   `json:"timestamp"`
}

// MessageInput is the client-supplied content of a room or private message.
type MessageInput struct {
	Text       string      `json:"text"`
	Attachment *Attachment `json:"file,omitempty"`
	Emoji      string      `json:"emoji,omitempty"`
}

// Validate checks that the input carries content of acceptable size.
func (in MessageInput) Validate() error {
	if strings.TrimSpace(in.Text) == "" && in.Attachment == nil {
		return NewValidationError("message must contain text or an attachment")
	}
	if len([]rune(in.Text)) > MaxMessageLength {
		return NewValidationError("message is too long")
	}
	if in.Attachment != nil && in.Attachment.URL == "" {
		return NewValidationError("attachment url is required")
	}
	return nil
}

// PairSeparator joins the two usernames of a pair key. Usernames cannot
// contain it.
const PairSeparator = ":"

// PairKey returns the canonical key of the thread between a and b.
func PairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + PairSeparator + pair[1]
}

// ThreadSummary describes one private thread from a participant's side.
type ThreadSummary struct {
	With        string    `json:"with"`
	LastMessage string    `json:"lastMessage"`
	Time        time.Time `json:"time"`
	Unread      bool      `json:"unread"`
}

// ThreadSnapshot is returned when a private chat is opened.
type ThreadSnapshot struct {
	With     UserSummary      `json:"with"`
	Messages []PrivateMessage `json:"messages"`
}
