package models

import (
	"sort"
	"time"
)

// Room is a named channel. Membership is not stored here; it is derived from
// the sessions whose current room equals ID.
type Room struct {
	ID           string              `json:"id" yaml:"id"`
	Name         string              `json:"name" yaml:"name"`
	Description  string              `json:"description" yaml:"description"`
	IsPrivate    bool                `json:"isPrivate" yaml:"private"`
	AllowedUsers map[string]struct{} `json:"-" yaml:"-"`
	CreatedBy    string              `json:"createdBy" yaml:"createdBy"`
	CreatedAt    time.Time           `json:"createdAt" yaml:"-"`
}

// CanAccess reports whether username may enter the room.
func (r *Room) CanAccess(username string) bool {
	if !r.IsPrivate || r.CreatedBy == username {
		return true
	}
	_, ok := r.AllowedUsers[username]
	return ok
}

// Allowed returns the allow-list in sorted order.
func (r *Room) Allowed() []string {
	out := make([]string, 0, len(r.AllowedUsers))
	for u := range r.AllowedUsers {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// RoomSummary is the list view of a room.
type RoomSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
	CreatedBy   string `json:"createdBy"`
	UserCount   int    `json:"userCount"`
}

// RoomSnapshot is returned to a session that joins a room.
type RoomSnapshot struct {
	Room     RoomSummary `json:"room"`
	Messages []Message   `json:"messages"`
	Users    []string    `json:"users"`
}
