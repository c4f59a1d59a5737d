package service

import (
	"sort"
)

// roomMembersLocked returns the sessions currently in roomID, ordered by
// username.
func (c *Coordinator) roomMembersLocked(roomID string) []*Session {
	if roomID == "" {
		return nil
	}
	var out []*Session
	for _, s := range c.sessions {
		if s.CurrentRoom == roomID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// roomRecipientsLocked returns the members of roomID that want notifications,
// plus sender regardless of its own preference.
func (c *Coordinator) roomRecipientsLocked(roomID string, sender *Session) []string {
	members := c.roomMembersLocked(roomID)
	out := make([]string, 0, len(members)+1)
	senderIncluded := false
	for _, m := range members {
		if m.ConnID == sender.ConnID {
			senderIncluded = true
			out = append(out, m.ConnID)
			continue
		}
		if m.Preferences.Notifications {
			out = append(out, m.ConnID)
		}
	}
	if !senderIncluded {
		out = append(out, sender.ConnID)
	}
	return out
}

func (c *Coordinator) allConnIDsLocked() []string {
	out := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// sessionConnIDs maps sessions to connection ids, skipping exclude.
func sessionConnIDs(sessions []*Session, exclude string) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if s.ConnID != exclude {
			out = append(out, s.ConnID)
		}
	}
	return out
}

// liveSessionLocked returns the session bound to username, if any.
func (c *Coordinator) liveSessionLocked(username string) (*Session, bool) {
	connID, ok := c.byUser[username]
	if !ok {
		return nil, false
	}
	s, ok := c.sessions[connID]
	return s, ok
}
