package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep/v2"
)

// butterworthQ gives a flat passband.
const butterworthQ = 1 / math.Sqrt2

// biquad is a second order IIR filter with coefficients normalized by a0.
type biquad struct {
	src                beep.Streamer
	b0, b1, b2, a1, a2 float64
	// per channel history
	x1, x2, y1, y2 [2]float64
}

func newBiquad(src beep.Streamer, b0, b1, b2, a0, a1, a2 float64) *biquad {
	return &biquad{src: src, b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// rbj returns cos(omega) and alpha for the audio-EQ cookbook formulas.
func rbj(sampleRate, cutoff, q float64) (cs, alpha float64) {
	omega := 2 * math.Pi * cutoff / sampleRate
	return math.Cos(omega), math.Sin(omega) / (2 * q)
}

// NewLowPass removes content above cutoff Hz.
func NewLowPass(src beep.Streamer, sampleRate, cutoff, q float64) beep.Streamer {
	cs, alpha := rbj(sampleRate, cutoff, q)
	return newBiquad(src, (1-cs)/2, 1-cs, (1-cs)/2, 1+alpha, -2*cs, 1-alpha)
}

// NewHighPass removes content below cutoff Hz.
func NewHighPass(src beep.Streamer, sampleRate, cutoff, q float64) beep.Streamer {
	cs, alpha := rbj(sampleRate, cutoff, q)
	return newBiquad(src, (1+cs)/2, -(1 + cs), (1+cs)/2, 1+alpha, -2*cs, 1-alpha)
}

func (f *biquad) Stream(samples [][2]float64) (int, bool) {
	n, ok := f.src.Stream(samples)
	for i := 0; i < n; i++ {
		for c := 0; c < 2; c++ {
			x := samples[i][c]
			y := f.b0*x + f.b1*f.x1[c] + f.b2*f.x2[c] - f.a1*f.y1[c] - f.a2*f.y2[c]
			f.x2[c], f.x1[c] = f.x1[c], x
			f.y2[c], f.y1[c] = f.y1[c], y
			samples[i][c] = y
		}
	}
	return n, ok
}

func (f *biquad) Err() error { return f.src.Err() }

// NewBandpass keeps the band between lowCutoff and highCutoff, the narrow
// range of an old radio or telephone.
func NewBandpass(src beep.Streamer, sampleRate, lowCutoff, highCutoff float64) beep.Streamer {
	return NewLowPass(NewHighPass(src, sampleRate, lowCutoff, butterworthQ), sampleRate, highCutoff, butterworthQ)
}

// Gain scales a stream and ramps linearly to a new level instead of
// jumping, which would click. It is not synchronized: change it while
// holding the output lock the speaker holds during Stream.
type Gain struct {
	src    beep.Streamer
	level  float64
	target float64
	step   float64
}

// NewGain starts at level.
func NewGain(src beep.Streamer, level float64) *Gain {
	l := clamp01(level)
	return &Gain{src: src, level: l, target: l}
}

// FadeIn restarts from silence and reaches the current target after d.
func (g *Gain) FadeIn(sampleRate beep.SampleRate, d time.Duration) {
	g.level = 0
	g.RampTo(g.target, sampleRate, d)
}

// RampTo moves to target over d. A non-positive d jumps.
func (g *Gain) RampTo(target float64, sampleRate beep.SampleRate, d time.Duration) {
	g.target = clamp01(target)
	n := sampleRate.N(d)
	if n <= 0 {
		g.level = g.target
		g.step = 0
		return
	}
	g.step = math.Abs(g.target-g.level) / float64(n)
}

// Level is the gain currently applied.
func (g *Gain) Level() float64 { return g.level }

func (g *Gain) Stream(samples [][2]float64) (int, bool) {
	n, ok := g.src.Stream(samples)
	for i := 0; i < n; i++ {
		g.advance()
		samples[i][0] *= g.level
		samples[i][1] *= g.level
	}
	return n, ok
}

func (g *Gain) advance() {
	switch {
	case g.level == g.target:
	case g.step == 0:
		g.level = g.target
	case g.level < g.target:
		g.level = math.Min(g.level+g.step, g.target)
	default:
		g.level = math.Max(g.level-g.step, g.target)
	}
}

func (g *Gain) Err() error { return g.src.Err() }

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
