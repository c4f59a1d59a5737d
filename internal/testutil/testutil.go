// Package testutil provides shared test doubles and fixtures for coordinator tests.
package testutil

import (
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"lobby/internal/database"
	"lobby/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a migrated SQLite database in a temp directory.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lobby.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: database.NewGormLogger(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// Delivery is one recorded outbound event.
type Delivery struct {
	ConnID string
	Event  models.Event
}

// RecordingDeliverer captures deliveries and kicks in memory.
type RecordingDeliverer struct {
	mu         sync.Mutex
	deliveries []Delivery
	kicks      map[string]time.Duration
}

// NewRecordingDeliverer creates an empty recorder.
func NewRecordingDeliverer() *RecordingDeliverer {
	return &RecordingDeliverer{kicks: make(map[string]time.Duration)}
}

// Deliver records event for every connection id.
func (d *RecordingDeliverer) Deliver(event models.Event, connIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range connIDs {
		d.deliveries = append(d.deliveries, Delivery{ConnID: id, Event: event})
	}
}

// Kick records a scheduled disconnect.
func (d *RecordingDeliverer) Kick(connID string, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kicks[connID] = delay
}

// Events returns the events delivered to connID with the given type, in order.
func (d *RecordingDeliverer) Events(connID, eventType string) []models.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.Event
	for _, del := range d.deliveries {
		if del.ConnID == connID && del.Event.Type == eventType {
			out = append(out, del.Event)
		}
	}
	return out
}

// Recipients returns the sorted connection ids that received eventType.
func (d *RecordingDeliverer) Recipients(eventType string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := make(map[string]struct{})
	for _, del := range d.deliveries {
		if del.Event.Type == eventType {
			seen[del.ConnID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Kicked returns the delay recorded for connID and whether a kick happened.
func (d *RecordingDeliverer) Kicked(connID string) (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delay, ok := d.kicks[connID]
	return delay, ok
}

// Reset drops every recorded delivery.
func (d *RecordingDeliverer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = nil
	d.kicks = make(map[string]time.Duration)
}

// ManualScheduler holds scheduled callbacks until the test fires them.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*scheduledTask
}

type scheduledTask struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// Schedule registers fn and returns a stop function.
func (s *ManualScheduler) Schedule(delay time.Duration, fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &scheduledTask{delay: delay, fn: fn}
	s.tasks = append(s.tasks, task)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if task.stopped || task.fired {
			return false
		}
		task.stopped = true
		return true
	}
}

// Pending returns the delays of tasks that are neither stopped nor fired.
func (s *ManualScheduler) Pending() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, task := range s.tasks {
		if !task.stopped && !task.fired {
			out = append(out, task.delay)
		}
	}
	return out
}

// FireAll runs every task that has been scheduled, including stopped ones
// when includeStopped is set, to simulate a timer racing its cancellation.
func (s *ManualScheduler) FireAll(includeStopped bool) {
	s.mu.Lock()
	var due []func()
	for _, task := range s.tasks {
		if task.fired || (task.stopped && !includeStopped) {
			continue
		}
		task.fired = true
		due = append(due, task.fn)
	}
	s.mu.Unlock()

	for _, fn := range due {
		fn()
	}
}
