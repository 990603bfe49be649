package request

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ProviderBackoff spaces out requests to a provider that keeps failing.
// Each failure doubles the cooldown up to maxDelay; each success takes one
// failure back. A Retry-After hint from the provider wins when it is longer.
type ProviderBackoff struct {
	mu        sync.Mutex
	providers map[string]*backoffState
	baseDelay time.Duration
	maxDelay  time.Duration
	now       func() time.Time
}

type backoffState struct {
	failures    int
	nextAllowed time.Time
}

func NewProviderBackoff(baseDelay, maxDelay time.Duration) *ProviderBackoff {
	return &ProviderBackoff{
		providers: make(map[string]*backoffState),
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		now:       time.Now,
	}
}

// Wait blocks until the provider's cooldown is over or ctx ends.
func (b *ProviderBackoff) Wait(ctx context.Context, provider string) error {
	b.mu.Lock()
	state, ok := b.providers[provider]
	var until time.Duration
	if ok {
		until = state.nextAllowed.Sub(b.now())
	}
	b.mu.Unlock()

	if until <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(until)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordFailure extends the cooldown. retryAfter may be zero.
func (b *ProviderBackoff) RecordFailure(provider string, retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.providers[provider]
	if !ok {
		state = &backoffState{}
		b.providers[provider] = state
	}
	state.failures++
	delay := b.delay(state.failures)
	if retryAfter > delay {
		delay = retryAfter
	}
	state.nextAllowed = b.now().Add(delay)
}

// RecordSuccess takes back one failure and clears the cooldown at zero.
func (b *ProviderBackoff) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.providers[provider]
	if !ok {
		return
	}
	if state.failures > 0 {
		state.failures--
	}
	if state.failures == 0 {
		delete(b.providers, provider)
	}
}

// delay is baseDelay * 2^(failures-1), capped, plus up to 10% jitter.
func (b *ProviderBackoff) delay(failures int) time.Duration {
	d := b.baseDelay
	for i := 1; i < failures && d < b.maxDelay; i++ {
		d *= 2
	}
	if d > b.maxDelay {
		d = b.maxDelay
	}
	return d + time.Duration(rand.Float64()*0.1*float64(d))
}

// State returns the failure count and the end of the cooldown.
func (b *ProviderBackoff) State(provider string) (failures int, nextAllowed time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state, ok := b.providers[provider]; ok {
		return state.failures, state.nextAllowed
	}
	return 0, time.Time{}
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
