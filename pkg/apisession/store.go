// Package apisession keeps per-client state for browser tabs. Clients identify
// themselves with an opaque session ID (a UUID generated client-side or
// handed out by the server).
package apisession

import (
	"sync"
	"time"

	"storymap/pkg/clock"
)

// cleanupInterval is how often Get() triggers lazy eviction of expired entries.
const cleanupInterval = 100

type entry[T any] struct {
	value      *T
	lastAccess time.Time
	pinned     int
}

// Store is a typed, thread-safe session registry. Each session ID maps to
// one instance of T, created on first access via newFn. Evicted values are
// handed to closeFn outside the lock.
type Store[T any] struct {
	mu       sync.Mutex
	entries  map[string]*entry[T]
	ttl      time.Duration
	clock    clock.Clock
	newFn    func(id string) *T
	closeFn  func(id string, v *T)
	getCalls int
}

// New creates a Store that evicts sessions inactive longer than ttl.
// closeFn may be nil.
func New[T any](ttl time.Duration, newFn func(id string) *T, closeFn func(id string, v *T)) *Store[T] {
	return NewWithClock(ttl, newFn, closeFn, clock.Real{})
}

// NewWithClock is New with an explicit clock.
func NewWithClock[T any](ttl time.Duration, newFn func(id string) *T, closeFn func(id string, v *T), clk clock.Clock) *Store[T] {
	return &Store[T]{
		entries: make(map[string]*entry[T]),
		ttl:     ttl,
		clock:   clk,
		newFn:   newFn,
		closeFn: closeFn,
	}
}

// Get returns the state for the given session, creating it if needed.
// Each call refreshes the session's last-access timestamp.
func (s *Store[T]) Get(id string) *T {
	s.mu.Lock()
	s.getCalls++
	var evicted map[string]*T
	if s.getCalls%cleanupInterval == 0 {
		evicted = s.cleanupLocked()
	}

	e, ok := s.entries[id]
	if !ok {
		e = &entry[T]{value: s.newFn(id)}
		s.entries[id] = e
	}
	e.lastAccess = s.clock.Now()
	v := e.value
	s.mu.Unlock()

	s.close(evicted)
	return v
}

// Lookup returns an existing session without creating one.
func (s *Store[T]) Lookup(id string) (*T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	e.lastAccess = s.clock.Now()
	return e.value, true
}

// Pin keeps a session alive regardless of its TTL until the returned func is
// called. Open websocket connections pin their session.
func (s *Store[T]) Pin(id string) (*T, func()) {
	v := s.Get(id)
	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		e.pinned++
	}
	s.mu.Unlock()

	var once sync.Once
	return v, func() {
		once.Do(func() {
			s.mu.Lock()
			if e, ok := s.entries[id]; ok && e.pinned > 0 {
				e.pinned--
				e.lastAccess = s.clock.Now()
			}
			s.mu.Unlock()
		})
	}
}

// Delete removes and closes a session.
func (s *Store[T]) Delete(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if ok {
		s.close(map[string]*T{id: e.value})
	}
}

// Cleanup evicts all unpinned sessions inactive longer than the TTL.
func (s *Store[T]) Cleanup() {
	s.mu.Lock()
	evicted := s.cleanupLocked()
	s.mu.Unlock()
	s.close(evicted)
}

// CloseAll closes every session, pinned or not.
func (s *Store[T]) CloseAll() {
	s.mu.Lock()
	all := make(map[string]*T, len(s.entries))
	for id, e := range s.entries {
		all[id] = e.value
	}
	s.entries = make(map[string]*entry[T])
	s.mu.Unlock()
	s.close(all)
}

func (s *Store[T]) cleanupLocked() map[string]*T {
	cutoff := s.clock.Now().Add(-s.ttl)
	var evicted map[string]*T
	for id, e := range s.entries {
		if e.pinned == 0 && e.lastAccess.Before(cutoff) {
			if evicted == nil {
				evicted = make(map[string]*T)
			}
			evicted[id] = e.value
			delete(s.entries, id)
		}
	}
	return evicted
}

func (s *Store[T]) close(vs map[string]*T) {
	if s.closeFn == nil {
		return
	}
	for id, v := range vs {
		s.closeFn(id, v)
	}
}

// Len returns the number of active sessions.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RunJanitor evicts expired sessions every interval until stop is closed.
func (s *Store[T]) RunJanitor(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.Cleanup()
		}
	}
}
