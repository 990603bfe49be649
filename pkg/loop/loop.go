// Package loop runs callbacks one at a time on a single goroutine.
// UI messages, timer callbacks and network completions for one session all
// interleave here, so the state they touch needs no locking.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned by Do when the loop is no longer running.
var ErrStopped = errors.New("loop stopped")

// Dispatcher schedules work. Post queues f on the loop. Go runs f off the loop;
// f is expected to Post its result back.
type Dispatcher interface {
	Post(f func())
	Go(f func())
}

// Loop is a single-goroutine executor.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
	log   *slog.Logger
}

// New creates a loop with the given queue capacity.
func New(capacity int, logger *slog.Logger) *Loop {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue: make(chan func(), capacity),
		done:  make(chan struct{}),
		log:   logger,
	}
}

// Run processes callbacks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.done:
			return
		case f := <-l.queue:
			l.exec(f)
		}
	}
}

func (l *Loop) exec(f func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("Loop: callback panicked", "panic", r)
		}
	}()
	f()
}

// Post queues f. Posts after Stop are dropped.
func (l *Loop) Post(f func()) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.queue <- f:
	case <-l.done:
	}
}

// Go runs f on its own goroutine.
func (l *Loop) Go(f func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		f()
	}()
}

// Do posts f and waits for it to finish.
func (l *Loop) Do(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		f()
	})
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends Run. Pending callbacks are discarded.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Wait blocks until goroutines started with Go have returned.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// Inline runs everything immediately on the caller's goroutine. Tests use it
// to drive state machines deterministically.
type Inline struct{}

func (Inline) Post(f func()) { f() }
func (Inline) Go(f func())   { f() }
