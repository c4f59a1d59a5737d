package history

// DefaultCapacity is the per-key log size used when none is configured.
const DefaultCapacity = 500

// Store maps channel keys to rings of equal capacity. Rings are created on
// first append.
type Store[T any] struct {
	capacity int
	logs     map[string]*Ring[T]
}

// NewStore creates a store whose rings hold capacity entries each.
func NewStore[T any](capacity int) *Store[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store[T]{capacity: capacity, logs: make(map[string]*Ring[T])}
}

// Append adds v to the log for key and reports whether an entry was evicted.
func (s *Store[T]) Append(key string, v T) bool {
	ring, ok := s.logs[key]
	if !ok {
		ring = NewRing[T](s.capacity)
		s.logs[key] = ring
	}
	return ring.Append(v)
}

// Last returns up to n newest entries for key, oldest first.
func (s *Store[T]) Last(key string, n int) []T {
	if ring, ok := s.logs[key]; ok {
		return ring.Last(n)
	}
	return []T{}
}

// Len returns the number of entries stored for key.
func (s *Store[T]) Len(key string) int {
	if ring, ok := s.logs[key]; ok {
		return ring.Len()
	}
	return 0
}

// Find returns the newest entry under key matching match.
func (s *Store[T]) Find(key string, match func(T) bool) (T, bool) {
	if ring, ok := s.logs[key]; ok {
		return ring.Find(match)
	}
	var zero T
	return zero, false
}

// Update edits the newest entry under key matching match in place.
func (s *Store[T]) Update(key string, match func(T) bool, fn func(*T)) (T, bool) {
	if ring, ok := s.logs[key]; ok {
		return ring.Update(match, fn)
	}
	var zero T
	return zero, false
}

// UpdateAll edits every entry under key matching match.
func (s *Store[T]) UpdateAll(key string, match func(T) bool, fn func(*T)) int {
	if ring, ok := s.logs[key]; ok {
		return ring.UpdateAll(match, fn)
	}
	return 0
}

// Remove deletes the newest entry under key matching match.
func (s *Store[T]) Remove(key string, match func(T) bool) (T, bool) {
	if ring, ok := s.logs[key]; ok {
		return ring.Remove(match)
	}
	var zero T
	return zero, false
}

// Keys returns every key holding a log, in no particular order.
func (s *Store[T]) Keys() []string {
	keys := make([]string, 0, len(s.logs))
	for k := range s.logs {
		keys = append(keys, k)
	}
	return keys
}
