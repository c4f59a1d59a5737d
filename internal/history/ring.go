// Package history keeps bounded per-channel message logs in memory.
//
// Neither Ring nor Store is safe for concurrent use; the coordinator guards
// them with its own lock.
package history

// Ring is a fixed-capacity FIFO log. Appending to a full ring evicts the
// oldest entry.
type Ring[T any] struct {
	buf  []T
	head int // index of the oldest entry
	size int
}

// NewRing returns an empty ring holding at most capacity entries.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Len returns the number of stored entries.
func (r *Ring[T]) Len() int { return r.size }

// Append adds v as the newest entry and reports whether an entry was evicted.
func (r *Ring[T]) Append(v T) bool {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = v
		r.size++
		return false
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return true
}

func (r *Ring[T]) at(i int) *T {
	return &r.buf[(r.head+i)%len(r.buf)]
}

// Last returns up to n newest entries, oldest first. n <= 0 returns all.
func (r *Ring[T]) Last(n int) []T {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]T, 0, n)
	for i := r.size - n; i < r.size; i++ {
		out = append(out, *r.at(i))
	}
	return out
}

// Find returns the newest entry matching match.
func (r *Ring[T]) Find(match func(T) bool) (T, bool) {
	for i := r.size - 1; i >= 0; i-- {
		if v := r.at(i); match(*v) {
			return *v, true
		}
	}
	var zero T
	return zero, false
}

// Update applies fn to the newest entry matching match and returns the
// updated value.
func (r *Ring[T]) Update(match func(T) bool, fn func(*T)) (T, bool) {
	for i := r.size - 1; i >= 0; i-- {
		if v := r.at(i); match(*v) {
			fn(v)
			return *v, true
		}
	}
	var zero T
	return zero, false
}

// UpdateAll applies fn to every entry matching match and returns the count.
func (r *Ring[T]) UpdateAll(match func(T) bool, fn func(*T)) int {
	n := 0
	for i := 0; i < r.size; i++ {
		if v := r.at(i); match(*v) {
			fn(v)
			n++
		}
	}
	return n
}

// Remove deletes the newest entry matching match, keeping order.
func (r *Ring[T]) Remove(match func(T) bool) (T, bool) {
	idx := -1
	for i := r.size - 1; i >= 0; i-- {
		if match(*r.at(i)) {
			idx = i
			break
		}
	}
	var zero T
	if idx < 0 {
		return zero, false
	}
	removed := *r.at(idx)
	for i := idx; i < r.size-1; i++ {
		*r.at(i) = *r.at(i + 1)
	}
	*r.at(r.size - 1) = zero
	r.size--
	return removed, true
}
