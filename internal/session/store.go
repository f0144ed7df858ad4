package session

import (
	"sync"
	"time"
)

type entry[T any] struct {
	tracker  *Tracker[T]
	lastSeen time.Time
}

// Store keeps one tracker per viewer session and evicts idle sessions.
type Store[T any] struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]*entry[T]
	now   func() time.Time
}

// NewStore builds a store that forgets sessions idle for longer than ttl.
func NewStore[T any](ttl time.Duration) *Store[T] {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store[T]{
		ttl:   ttl,
		items: make(map[string]*entry[T]),
		now:   time.Now,
	}
}

// Acquire returns the tracker for id, creating it when absent.
func (s *Store[T]) Acquire(id string) *Tracker[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictLocked(now)
	e, ok := s.items[id]
	if !ok {
		tr := NewTracker[T]()
		tr.now = s.now
		e = &entry[T]{tracker: tr}
		s.items[id] = e
	}
	e.lastSeen = now
	return e.tracker
}

// Get returns the tracker for id without creating one.
func (s *Store[T]) Get(id string) (*Tracker[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e, ok := s.items[id]
	if !ok {
		return nil, false
	}
	if now.Sub(e.lastSeen) > s.ttl {
		e.tracker.Close()
		delete(s.items, id)
		return nil, false
	}
	e.lastSeen = now
	return e.tracker, true
}

// Delete closes and forgets the session.
func (s *Store[T]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[id]; ok {
		e.tracker.Close()
		delete(s.items, id)
	}
}

// Len returns the number of live sessions.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Evict drops sessions idle for longer than the ttl and returns how many went.
func (s *Store[T]) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictLocked(s.now())
}

func (s *Store[T]) evictLocked(now time.Time) int {
	removed := 0
	for id, e := range s.items {
		if now.Sub(e.lastSeen) > s.ttl {
			e.tracker.Close()
			delete(s.items, id)
			removed++
		}
	}
	return removed
}
