// Package moderation tracks mutes and bans.
package moderation

import (
	"sort"
	"time"
)

// Mute silences a user until it expires or is lifted.
type Mute struct {
	Username  string        `json:"username"`
	Reason    string        `json:"reason"`
	MutedBy   string        `json:"mutedBy"`
	Duration  time.Duration `json:"duration"`
	ExpiresAt time.Time     `json:"expiresAt"`
	// Seq identifies this mute so a stale expiry cannot lift a newer one.
	Seq uint64 `json:"-"`
}

// Ban blocks a username from logging in, registering, and sending.
type Ban struct {
	Username string    `json:"username"`
	Reason   string    `json:"reason"`
	BannedBy string    `json:"bannedBy"`
	BannedAt time.Time `json:"bannedAt"`
}

// State holds the current mute and ban sets. It is not safe for concurrent
// use.
type State struct {
	mutes map[string]Mute
	bans  map[string]Ban
	seq   uint64
}

// NewState returns empty moderation state.
func NewState() *State {
	return &State{
		mutes: make(map[string]Mute),
		bans:  make(map[string]Ban),
	}
}

// Mute records a mute for target, replacing any existing one.
func (s *State) Mute(target, by string, duration time.Duration, reason string, now time.Time) Mute {
	s.seq++
	m := Mute{
		Username:  target,
		Reason:    reason,
		MutedBy:   by,
		Duration:  duration,
		ExpiresAt: now.Add(duration),
		Seq:       s.seq,
	}
	s.mutes[target] = m
	return m
}

// Unmute lifts target's mute and returns it.
func (s *State) Unmute(target string) (Mute, bool) {
	m, ok := s.mutes[target]
	if ok {
		delete(s.mutes, target)
	}
	return m, ok
}

// Expire lifts target's mute only if it is still the mute identified by seq.
func (s *State) Expire(target string, seq uint64) bool {
	m, ok := s.mutes[target]
	if !ok || m.Seq != seq {
		return false
	}
	delete(s.mutes, target)
	return true
}

// IsMuted reports whether username is muted.
func (s *State) IsMuted(username string) bool {
	_, ok := s.mutes[username]
	return ok
}

// MuteOf returns the active mute for username.
func (s *State) MuteOf(username string) (Mute, bool) {
	m, ok := s.mutes[username]
	return m, ok
}

// Ban adds target to the ban set.
func (s *State) Ban(target, by, reason string, now time.Time) Ban {
	b := Ban{Username: target, Reason: reason, BannedBy: by, BannedAt: now}
	s.bans[target] = b
	return b
}

// Unban removes target from the ban set.
func (s *State) Unban(target string) bool {
	_, ok := s.bans[target]
	delete(s.bans, target)
	return ok
}

// BanOf returns the active ban for username.
func (s *State) BanOf(username string) (Ban, bool) {
	b, ok := s.bans[username]
	return b, ok
}

// IsBanned reports whether username is banned.
func (s *State) IsBanned(username string) bool {
	_, ok := s.bans[username]
	return ok
}

// Restore replaces the ban set with bans loaded from a BanStore.
func (s *State) Restore(bans []Ban) {
	s.bans = make(map[string]Ban, len(bans))
	for _, b := range bans {
		s.bans[b.Username] = b
	}
}

// Bans returns the ban set sorted by username.
func (s *State) Bans() []Ban {
	out := make([]Ban, 0, len(s.bans))
	for _, b := range s.bans {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
