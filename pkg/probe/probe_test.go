package probe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	probes := []Probe{
		{Name: "Database", Check: func(context.Context) error { return nil }, Critical: true},
		{Name: "Geocoding", Check: func(context.Context) error { return errors.New("no gazetteer data") }},
		{
			Name:    "Slow",
			Timeout: 20 * time.Millisecond,
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}

	rep := Run(context.Background(), probes)
	require.Len(t, rep.Results, 3)

	assert.Equal(t, "Database", rep.Results[0].Name)
	assert.True(t, rep.Results[0].OK())
	assert.False(t, rep.Results[1].OK())
	assert.Equal(t, "no gazetteer data", rep.Results[1].Error)
	assert.False(t, rep.Results[2].OK())

	assert.False(t, rep.Healthy())
	assert.NoError(t, rep.Err(), "only non-critical probes failed")
}

func TestRunIgnoresStuckCheck(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	rep := Run(context.Background(), []Probe{{
		Name:    "Stuck",
		Timeout: 20 * time.Millisecond,
		Check:   func(context.Context) error { <-block; return nil },
	}})
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, rep.Results[0].Error, "timed out")
}

func TestReportErr(t *testing.T) {
	rep := Run(context.Background(), []Probe{
		{Name: "Audio directory", Check: func(context.Context) error { return errors.New("read-only") }, Critical: true},
		{Name: "Uploads directory", Check: func(context.Context) error { return errors.New("missing") }, Critical: true},
		{Name: "TTS engine", Check: func(context.Context) error { return errors.New("no key") }},
	})

	err := rep.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Audio directory: read-only")
	assert.Contains(t, err.Error(), "Uploads directory: missing")
	assert.NotContains(t, err.Error(), "TTS engine")
}

func TestReportLog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	rep := Run(context.Background(), []Probe{
		{Name: "Database", Check: func(context.Context) error { return nil }},
		{Name: "TTS engine", Check: func(context.Context) error { return errors.New("no key") }},
	})
	rep.Log(log)

	out := buf.String()
	assert.Contains(t, out, "[PASS] Database")
	assert.Contains(t, out, "[FAIL] TTS engine")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}
