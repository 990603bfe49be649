// Package probe runs the startup checks of the server and keeps their outcome
// for the health endpoint.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds a check that sets no Timeout.
const DefaultTimeout = 5 * time.Second

// CheckFunc returns nil when the checked resource is usable.
type CheckFunc func(ctx context.Context) error

// Probe is one startup check. A failing Critical probe stops the server.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool
	Timeout  time.Duration
}

// Result is the outcome of one probe.
type Result struct {
	Name     string        `json:"name"`
	Critical bool          `json:"critical"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`

	err error
}

// OK reports whether the check passed.
func (r Result) OK() bool { return r.err == nil }

// Report holds the results in probe order.
type Report struct {
	At      time.Time `json:"at"`
	Results []Result  `json:"results"`
}

// Run executes all probes concurrently, each under its own timeout.
func Run(ctx context.Context, probes []Probe) *Report {
	rep := &Report{At: time.Now(), Results: make([]Result, len(probes))}

	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep.Results[i] = runOne(ctx, p)
		}()
	}
	wg.Wait()
	return rep
}

func runOne(ctx context.Context, p Probe) Result {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- p.Check(cctx) }()

	var err error
	select {
	case err = <-done:
	case <-cctx.Done():
		err = fmt.Errorf("timed out after %v", timeout)
	}

	r := Result{Name: p.Name, Critical: p.Critical, Duration: time.Since(start), err: err}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Err joins the failures of critical probes.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Critical && res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Name, res.err))
		}
	}
	return errors.Join(errs...)
}

// Healthy reports whether every probe passed.
func (r *Report) Healthy() bool {
	for _, res := range r.Results {
		if !res.OK() {
			return false
		}
	}
	return true
}

// Log writes a summary line per probe.
func (r *Report) Log(log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	log.Info("Startup Checks Summary")
	for _, res := range r.Results {
		status := "PASS"
		if !res.OK() {
			status = "FAIL"
		}
		msg := fmt.Sprintf("[%s] %-20s (%v)", status, res.Name, res.Duration.Round(time.Millisecond))
		switch {
		case res.OK():
			log.Info(msg)
		case res.Critical:
			log.Error(msg, "error", res.err)
		default:
			log.Warn(msg, "error", res.err)
		}
	}
}
