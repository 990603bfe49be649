// Package tracker counts outbound calls per provider for the stats endpoint.
package tracker

import (
	"sync"
	"time"
)

// Stats is the usage of one provider (geocoder or speech engine).
type Stats struct {
	Success     int64
	Failures    int64
	Empty       int64
	CacheHits   int64
	CacheMisses int64
	// Characters is the amount of text sent to a speech engine.
	Characters int64
	LastError  string
	LastUsed   time.Time
}

// HitRate is the cache hit percentage, 0 without cache lookups.
func (s Stats) HitRate() int64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return s.CacheHits * 100 / total
}

// Tracker is safe for concurrent use. All methods are no-ops on a nil
// Tracker so providers can run without one.
type Tracker struct {
	mu    sync.Mutex
	stats map[string]*Stats
	now   func() time.Time
}

func New() *Tracker {
	return &Tracker{stats: make(map[string]*Stats), now: time.Now}
}

func (t *Tracker) update(provider string, fn func(s *Stats)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stats[provider]
	if !ok {
		s = &Stats{}
		t.stats[provider] = s
	}
	fn(s)
}

// Success records a completed call.
func (t *Tracker) Success(provider string) {
	t.update(provider, func(s *Stats) {
		s.Success++
		s.LastUsed = t.now()
	})
}

// Failure records a failed call and keeps its message.
func (t *Tracker) Failure(provider string, err error) {
	t.update(provider, func(s *Stats) {
		s.Failures++
		s.LastUsed = t.now()
		if err != nil {
			s.LastError = err.Error()
		}
	})
}

// Empty records a call that succeeded without a usable answer, like a
// geocoder query with no match.
func (t *Tracker) Empty(provider string) {
	t.update(provider, func(s *Stats) { s.Empty++ })
}

func (t *Tracker) CacheHit(provider string) {
	t.update(provider, func(s *Stats) { s.CacheHits++ })
}

func (t *Tracker) CacheMiss(provider string) {
	t.update(provider, func(s *Stats) { s.CacheMisses++ })
}

// Synthesized adds narrated text to a speech engine's total.
func (t *Tracker) Synthesized(provider string, chars int) {
	t.update(provider, func(s *Stats) { s.Characters += int64(chars) })
}

// Snapshot returns a copy of all counters.
func (t *Tracker) Snapshot() map[string]Stats {
	out := make(map[string]Stats)
	if t == nil {
		return out
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range t.stats {
		out[k] = *v
	}
	return out
}
