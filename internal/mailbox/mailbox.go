// Package mailbox implements a single-slot, overwrite-on-publish exchange
// between one producer goroutine and one consumer.
//
// Philosophy: "Drop frames, never queue. Latency > Completeness."
//
// Design:
//   - Non-blocking Publish (the producer never waits for the consumer)
//   - Non-blocking ConsumeLatest (the consumer never waits for the producer)
//   - One mutex, held only for a pointer swap
//   - Displaced values go to a discard hook outside the lock
package mailbox

import (
	"sync"
	"sync/atomic"
)

// Mailbox holds at most one pending value.
//
// The zero value is not usable; construct with New.
type Mailbox[T any] struct {
	mu      sync.Mutex // Protects slot, full, closed
	slot    T
	full    bool
	closed  bool
	discard func(T)

	published uint64 // Atomic: successful Publish calls
	consumed  uint64 // Atomic: values taken by ConsumeLatest
	dropped   uint64 // Atomic: values displaced before consumption
}

// Stats is a snapshot of mailbox counters.
type Stats struct {
	// Published counts values accepted by Publish.
	Published uint64
	// Consumed counts values handed out by ConsumeLatest.
	Consumed uint64
	// Dropped counts values overwritten or drained before anyone consumed them.
	// Non-zero is normal when decode outpaces display.
	Dropped uint64
	// Pending is true if a value is waiting in the slot.
	Pending bool
}

// Option configures a Mailbox.
type Option[T any] func(*Mailbox[T])

// WithDiscard registers a hook that receives every value the mailbox drops
// (overwritten, drained, or published after Close). It runs on the goroutine
// that caused the drop, after the lock is released.
func WithDiscard[T any](fn func(T)) Option[T] {
	return func(m *Mailbox[T]) {
		m.discard = fn
	}
}

// New creates an empty mailbox.
func New[T any](opts ...Option[T]) *Mailbox[T] {
	m := &Mailbox[T]{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Publish stores v, replacing any value that was not consumed yet.
//
// Semantics:
//   - Non-blocking: always returns immediately
//   - Overwrite policy: newest wins, the displaced value is discarded
//   - After Close: v itself is discarded
//
// Latency: O(1) - Lock + swap + unlock
func (m *Mailbox[T]) Publish(v T) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		m.drop(v)
		return
	}

	old, hadOld := m.slot, m.full
	m.slot = v
	m.full = true
	m.mu.Unlock()

	atomic.AddUint64(&m.published, 1)

	if hadOld {
		m.drop(old)
	}
}

// ConsumeLatest takes ownership of the pending value and empties the slot.
// Returns ok=false when nothing is pending.
func (m *Mailbox[T]) ConsumeLatest() (v T, ok bool) {
	m.mu.Lock()

	if !m.full {
		m.mu.Unlock()
		return v, false
	}

	v = m.slot
	var zero T
	m.slot = zero
	m.full = false
	m.mu.Unlock()

	atomic.AddUint64(&m.consumed, 1)

	return v, true
}

// Drain discards the pending value, if any.
func (m *Mailbox[T]) Drain() {
	m.mu.Lock()
	old, hadOld := m.slot, m.full
	var zero T
	m.slot = zero
	m.full = false
	m.mu.Unlock()

	if hadOld {
		m.drop(old)
	}
}

// Close drains the slot and makes every later Publish a discard.
// Idempotent.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.Drain()
}

// Stats returns a snapshot of the counters.
func (m *Mailbox[T]) Stats() Stats {
	m.mu.Lock()
	pending := m.full
	m.mu.Unlock()

	return Stats{
		Published: atomic.LoadUint64(&m.published),
		Consumed:  atomic.LoadUint64(&m.consumed),
		Dropped:   atomic.LoadUint64(&m.dropped),
		Pending:   pending,
	}
}

func (m *Mailbox[T]) drop(v T) {
	atomic.AddUint64(&m.dropped, 1)
	if m.discard != nil {
		m.discard(v)
	}
}
