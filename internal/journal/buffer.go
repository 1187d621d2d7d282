package journal

import "sync"

// growAt is the fill ratio, in percent, at which the ring doubles.
const growAt = 70

// Buffer is the journal's input queue: a mutex-guarded FIFO ring that
// doubles when it is 70% full, up to limit items. Send never blocks, so
// session observers can call it while holding their own locks; events
// arriving at the limit are counted and dropped.
type Buffer[T any] struct {
	mu     sync.Mutex
	ring   []T
	start  int // index of the oldest item
	n      int // items queued
	limit  int
	closed bool

	received int64
	drained  int64
	dropped  int64
	resizes  int
}

// BufferStats is a snapshot of a Buffer's counters.
type BufferStats struct {
	Count         int
	Capacity      int
	TotalReceived int64
	TotalSent     int64
	TotalDropped  int64
	ResizeCount   int
}

// NewBuffer creates a buffer starting at initial slots and holding at most
// limit items. Both are raised to at least 1, and limit to at least
// initial.
func NewBuffer[T any](initial, limit int) *Buffer[T] {
	initial = max(initial, 1)
	return &Buffer[T]{
		ring:  make([]T, initial),
		limit: max(limit, initial),
	}
}

// Send queues item. It returns false when the buffer is closed or at its
// limit.
func (b *Buffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.closed:
		return false
	case b.n >= b.limit:
		b.dropped++
		return false
	}

	if (b.n+1)*100 >= len(b.ring)*growAt || b.n == len(b.ring) {
		b.resize()
	}

	b.ring[(b.start+b.n)%len(b.ring)] = item
	b.n++
	b.received++
	return true
}

// DrainTo dequeues up to max items, or everything when max <= 0, oldest
// first. It returns nil when the buffer is empty.
func (b *Buffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.n == 0 {
		return nil
	}
	take := b.n
	if max > 0 && max < take {
		take = max
	}

	out := make([]T, take)
	var zero T
	for i := range out {
		out[i] = b.ring[b.start]
		b.ring[b.start] = zero
		b.start = (b.start + 1) % len(b.ring)
	}
	b.n -= take
	b.drained += int64(take)
	return out
}

// Close rejects further sends. Queued items can still be drained.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Len returns the number of queued items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Stats returns the buffer counters.
func (b *Buffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         b.n,
		Capacity:      len(b.ring),
		TotalReceived: b.received,
		TotalSent:     b.drained,
		TotalDropped:  b.dropped,
		ResizeCount:   b.resizes,
	}
}

// resize doubles the ring, capped at limit, and unwraps it so the oldest
// item is at index 0. Called with b.mu held.
func (b *Buffer[T]) resize() {
	size := min(len(b.ring)*2, b.limit)
	if size <= len(b.ring) {
		return
	}

	ring := make([]T, size)
	for i := 0; i < b.n; i++ {
		ring[i] = b.ring[(b.start+i)%len(b.ring)]
	}
	b.ring = ring
	b.start = 0
	b.resizes++
}
