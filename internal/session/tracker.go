// Package session resolves overlapping asynchronous loads so that only the
// most recently requested result is ever committed.
package session

import (
	"context"
	"sync"
	"time"
)

// Ticket identifies one load started by Begin.
type Ticket struct {
	Generation uint64
	Key        string
}

// Tracker keeps the latest committed value of type T and the generation of
// the load currently in flight.
type Tracker[T any] struct {
	mu sync.Mutex

	generation uint64
	cancel     context.CancelFunc

	value        T
	committed    uint64
	committedKey string
	hasValue     bool
	updatedAt    time.Time
	now          func() time.Time
}

// NewTracker builds an empty tracker.
func NewTracker[T any]() *Tracker[T] {
	return &Tracker[T]{now: time.Now}
}

// Begin starts a new load for key. The previous load's context is cancelled
// and its ticket can no longer resolve.
func (t *Tracker[T]) Begin(parent context.Context, key string) (Ticket, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	t.generation++
	t.cancel = cancel
	return Ticket{Generation: t.generation, Key: key}, ctx
}

// Resolve commits value when ticket is still the latest load. A stale ticket
// returns false and the value is dropped.
func (t *Tracker[T]) Resolve(ticket Ticket, value T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket.Generation != t.generation {
		return false
	}
	t.value = value
	t.committed = ticket.Generation
	t.committedKey = ticket.Key
	t.hasValue = true
	t.updatedAt = t.now()
	t.release()
	return true
}

// Abandon ends a load without committing when ticket is still the latest.
func (t *Tracker[T]) Abandon(ticket Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket.Generation != t.generation {
		return false
	}
	t.release()
	return true
}

// Current reports whether ticket is still the latest load.
func (t *Tracker[T]) Current(ticket Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ticket.Generation == t.generation
}

// Snapshot is the committed state of a tracker.
type Snapshot[T any] struct {
	Value      T
	Generation uint64
	Key        string
	Pending    bool
	HasValue   bool
	UpdatedAt  time.Time
}

// Latest returns the committed value and whether a newer load is running.
func (t *Tracker[T]) Latest() Snapshot[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot[T]{
		Value:      t.value,
		Generation: t.committed,
		Key:        t.committedKey,
		Pending:    t.cancel != nil,
		HasValue:   t.hasValue,
		UpdatedAt:  t.updatedAt,
	}
}

// Close cancels any load in flight. Outstanding tickets can no longer resolve.
func (t *Tracker[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	t.release()
}

func (t *Tracker[T]) release() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
