package api

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"storymap/pkg/tracker"
)

// SessionCounter reports live browser sessions.
type SessionCounter interface {
	Len() int
}

type StatsHandler struct {
	tracker  *tracker.Tracker
	sessions SessionCounter
	started  time.Time

	mu     sync.Mutex
	maxMem uint64
}

func NewStatsHandler(t *tracker.Tracker, sessions SessionCounter) *StatsHandler {
	return &StatsHandler{
		tracker:  t,
		sessions: sessions,
		started:  time.Now(),
	}
}

type ProviderStatsDTO struct {
	CacheHits   int64  `json:"cache_hits"`
	CacheMisses int64  `json:"cache_misses"`
	Success     int64  `json:"success"`
	Empty       int64  `json:"empty"`
	Failures    int64  `json:"errors"`
	HitRate     int64  `json:"hit_rate"`
	Characters  int64  `json:"characters,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	LastUsed    string `json:"last_used,omitempty"`
}

type ServerStats struct {
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Goroutines  int    `json:"goroutines"`
	UptimeSec   int64  `json:"uptime_sec"`
}

type StatsResponse struct {
	Server    ServerStats                 `json:"server"`
	Sessions  int                         `json:"sessions"`
	Providers map[string]ProviderStatsDTO `json:"providers"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Server:    h.serverStats(),
		Providers: make(map[string]ProviderStatsDTO),
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Len()
	}

	for provider, s := range h.tracker.Snapshot() {
		dto := ProviderStatsDTO{
			CacheHits:   s.CacheHits,
			CacheMisses: s.CacheMisses,
			Success:     s.Success,
			Empty:       s.Empty,
			Failures:    s.Failures,
			HitRate:     s.HitRate(),
			Characters:  s.Characters,
			LastError:   s.LastError,
		}
		if !s.LastUsed.IsZero() {
			dto.LastUsed = s.LastUsed.UTC().Format(time.RFC3339)
		}
		resp.Providers[provider] = dto
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) serverStats() ServerStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.mu.Lock()
	if m.Sys > h.maxMem {
		h.maxMem = m.Sys
	}
	maxMem := h.maxMem
	h.mu.Unlock()

	return ServerStats{
		MemoryMB:    bToMb(m.Sys),
		MemoryMaxMB: bToMb(maxMem),
		Goroutines:  runtime.NumGoroutine(),
		UptimeSec:   int64(time.Since(h.started).Seconds()),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
