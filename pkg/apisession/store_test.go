package apisession

import (
	"sync"
	"testing"
	"time"

	"storymap/pkg/clock"
)

type testState struct {
	ID      string
	Counter int
	closed  bool
}

func newTestStore(ttl time.Duration) (*Store[testState], *clock.Fake, *[]string) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	var closed []string
	s := NewWithClock(ttl,
		func(id string) *testState { return &testState{ID: id} },
		func(id string, v *testState) {
			v.closed = true
			closed = append(closed, id)
		},
		clk)
	return s, clk, &closed
}

func TestGetOrCreate(t *testing.T) {
	s, _, _ := newTestStore(time.Minute)

	a := s.Get("a")
	if a == nil {
		t.Fatal("Get returned nil")
	}
	if a.ID != "a" {
		t.Errorf("expected ID a, got %q", a.ID)
	}
	a.Counter = 42

	// Same ID returns the same pointer.
	a2 := s.Get("a")
	if a2 != a {
		t.Error("expected same pointer for same session ID")
	}

	// Different ID returns a fresh instance.
	b := s.Get("b")
	if b == a {
		t.Error("different session IDs should return different pointers")
	}
	if b.Counter != 0 {
		t.Errorf("new session should have Counter=0, got %d", b.Counter)
	}
	if s.Len() != 2 {
		t.Errorf("expected Len()=2, got %d", s.Len())
	}
}

func TestLookupDoesNotCreate(t *testing.T) {
	s, _, _ := newTestStore(time.Minute)
	if _, ok := s.Lookup("x"); ok {
		t.Error("Lookup created a session")
	}
	s.Get("x")
	if _, ok := s.Lookup("x"); !ok {
		t.Error("Lookup missed an existing session")
	}
}

func TestTTLExpiry(t *testing.T) {
	s, clk, closed := newTestStore(time.Minute)

	v := s.Get("ephemeral")
	clk.Advance(2 * time.Minute)
	s.Cleanup()

	if s.Len() != 0 {
		t.Errorf("expected 0 after TTL expiry, got %d", s.Len())
	}
	if !v.closed || len(*closed) != 1 {
		t.Errorf("expired session was not closed: %v", *closed)
	}
}

func TestCleanupKeepsActive(t *testing.T) {
	s, clk, _ := newTestStore(time.Minute)

	s.Get("keep")
	clk.Advance(40 * time.Second)
	s.Get("keep")
	clk.Advance(40 * time.Second)

	s.Cleanup()
	if s.Len() != 1 {
		t.Errorf("refreshed session should survive cleanup, got Len()=%d", s.Len())
	}
}

func TestPinnedSurvives(t *testing.T) {
	s, clk, closed := newTestStore(time.Minute)

	_, unpin := s.Pin("ws")
	clk.Advance(time.Hour)
	s.Cleanup()
	if s.Len() != 1 {
		t.Fatalf("pinned session was evicted")
	}

	unpin()
	unpin() // idempotent
	clk.Advance(30 * time.Second)
	s.Cleanup()
	if s.Len() != 1 {
		t.Errorf("unpin should refresh the access time")
	}
	clk.Advance(time.Minute)
	s.Cleanup()
	if s.Len() != 0 || len(*closed) != 1 {
		t.Errorf("expected eviction after unpin, Len=%d closed=%v", s.Len(), *closed)
	}
}

func TestDeleteAndCloseAll(t *testing.T) {
	s, _, closed := newTestStore(time.Minute)
	s.Get("a")
	s.Get("b")
	s.Get("c")

	s.Delete("a")
	s.Delete("missing")
	if s.Len() != 2 || len(*closed) != 1 {
		t.Fatalf("Delete: Len=%d closed=%v", s.Len(), *closed)
	}

	s.CloseAll()
	if s.Len() != 0 || len(*closed) != 3 {
		t.Errorf("CloseAll: Len=%d closed=%v", s.Len(), *closed)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New(time.Minute, func(id string) *testState { return &testState{ID: id} }, nil)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Get("session")
		}()
	}
	wg.Wait()

	if s.Len() != 1 {
		t.Errorf("expected 1 session, got %d", s.Len())
	}
}

func TestLazyCleanup(t *testing.T) {
	s, clk, _ := newTestStore(10 * time.Second)

	s.Get("old")
	clk.Advance(30 * time.Second)

	// The cleanupInterval-th Get call evicts.
	for i := 1; i < cleanupInterval; i++ {
		s.Get("trigger")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 (only 'trigger'), got %d", s.Len())
	}
}
