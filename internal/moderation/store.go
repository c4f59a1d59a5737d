package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// BansKey is the Redis hash holding persisted bans, keyed by username.
const BansKey = "lobby:bans"

// BanStore persists the ban set across restarts.
type BanStore interface {
	Save(ctx context.Context, ban Ban) error
	Delete(ctx context.Context, username string) error
	Load(ctx context.Context) ([]Ban, error)
}

// RedisBanStore keeps bans in a Redis hash.
type RedisBanStore struct {
	rdb *redis.Client
}

// NewRedisBanStore returns a BanStore backed by rdb.
func NewRedisBanStore(rdb *redis.Client) *RedisBanStore {
	return &RedisBanStore{rdb: rdb}
}

// Save writes ban under its username.
func (s *RedisBanStore) Save(ctx context.Context, ban Ban) error {
	data, err := json.Marshal(ban)
	if err != nil {
		return fmt.Errorf("marshal ban: %w", err)
	}
	if err := s.rdb.HSet(ctx, BansKey, ban.Username, data).Err(); err != nil {
		return fmt.Errorf("save ban %s: %w", ban.Username, err)
	}
	return nil
}

// Delete removes the ban for username.
func (s *RedisBanStore) Delete(ctx context.Context, username string) error {
	if err := s.rdb.HDel(ctx, BansKey, username).Err(); err != nil {
		return fmt.Errorf("delete ban %s: %w", username, err)
	}
	return nil
}

// Load returns every persisted ban. An undecodable entry still bans its username.
func (s *RedisBanStore) Load(ctx context.Context) ([]Ban, error) {
	raw, err := s.rdb.HGetAll(ctx, BansKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load bans: %w", err)
	}
	bans := make([]Ban, 0, len(raw))
	for username, data := range raw {
		var b Ban
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			b = Ban{Username: username}
		}
		b.Username = username
		bans = append(bans, b)
	}
	sort.Slice(bans, func(i, j int) bool { return bans[i].Username < bans[j].Username })
	return bans, nil
}

// MemoryBanStore is the BanStore used when Redis is not configured. Bans do
// not survive a restart.
type MemoryBanStore struct {
	mu   sync.Mutex
	bans map[string]Ban
}

// NewMemoryBanStore returns an empty in-process store.
func NewMemoryBanStore() *MemoryBanStore {
	return &MemoryBanStore{bans: make(map[string]Ban)}
}

// Save stores ban.
func (s *MemoryBanStore) Save(_ context.Context, ban Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[ban.Username] = ban
	return nil
}

// Delete removes username.
func (s *MemoryBanStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bans, username)
	return nil
}

// Load returns all stored bans sorted by username.
func (s *MemoryBanStore) Load(_ context.Context) ([]Ban, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Ban, 0, len(s.bans))
	for _, b := range s.bans {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// NewBanStore picks the Redis store when rdb is available.
func NewBanStore(rdb *redis.Client) BanStore {
	if rdb == nil {
		return NewMemoryBanStore()
	}
	return NewRedisBanStore(rdb)
}
