package audio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type dummyStreamer struct {
	samples [][2]float64
	pos     int
}

func (s *dummyStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n = copy(samples, s.samples[s.pos:])
	s.pos += n
	return n, true
}

func (s *dummyStreamer) Err() error { return nil }

func constant(n int, v float64) *dummyStreamer {
	data := make([][2]float64, n)
	for i := range data {
		data[i] = [2]float64{v, v}
	}
	return &dummyStreamer{samples: data}
}

func sine(n int, freq, rate float64) *dummyStreamer {
	data := make([][2]float64, n)
	for i := range data {
		v := math.Sin(2 * math.Pi * freq * float64(i) / rate)
		data[i] = [2]float64{v, v}
	}
	return &dummyStreamer{samples: data}
}

func peak(s [][2]float64) float64 {
	m := 0.0
	for _, v := range s {
		m = math.Max(m, math.Abs(v[0]))
	}
	return m
}

func TestBandpassBlocksDC(t *testing.T) {
	f := NewBandpass(constant(4800, 1), 48000, 300, 3400)
	out := make([][2]float64, 4800)
	n, ok := f.Stream(out)
	assert.Equal(t, 4800, n)
	assert.True(t, ok)
	assert.Less(t, math.Abs(out[4799][0]), 0.01, "DC should settle to zero")
	assert.False(t, math.IsNaN(out[4799][0]))
}

func TestBandpassKeepsVoiceBand(t *testing.T) {
	const rate = 48000
	pass := make([][2]float64, rate/10)
	NewBandpass(sine(len(pass), 1000, rate), rate, 300, 3400).Stream(pass)
	stop := make([][2]float64, rate/10)
	NewBandpass(sine(len(stop), 12000, rate), rate, 300, 3400).Stream(stop)

	// skip the settling head
	assert.Greater(t, peak(pass[2400:]), 0.8)
	assert.Less(t, peak(stop[2400:]), 0.2)
}

func TestGainRamps(t *testing.T) {
	const rate = 1000
	g := NewGain(constant(200, 1), 1)
	g.FadeIn(rate, 100*time.Millisecond)
	assert.Equal(t, 0.0, g.Level())

	out := make([][2]float64, 50)
	g.Stream(out)
	assert.InDelta(t, 0.5, g.Level(), 0.02)
	assert.Less(t, out[0][0], out[49][0])

	g.Stream(out)
	assert.InDelta(t, 1.0, g.Level(), 1e-9)

	g.RampTo(0.25, rate, 0)
	g.Stream(out[:1])
	assert.Equal(t, 0.25, out[0][0])
}

func TestGainClamps(t *testing.T) {
	g := NewGain(constant(1, 1), 3)
	assert.Equal(t, 1.0, g.Level())
	g.RampTo(-1, 1000, 0)
	assert.Equal(t, 0.0, g.Level())
}
