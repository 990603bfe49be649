// Package audio plays narration files on the local sound device.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"storymap/pkg/config"
)

// SampleRate is the rate the output device is opened at.
const SampleRate = beep.SampleRate(48000)

// Output is the sound device. The default is the beep speaker.
type Output interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

type speakerOutput struct{}

func (speakerOutput) Init(rate beep.SampleRate, bufferSize int) error {
	return speaker.Init(rate, bufferSize)
}
func (speakerOutput) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (speakerOutput) Clear()                  { speaker.Clear() }
func (speakerOutput) Lock()                   { speaker.Lock() }
func (speakerOutput) Unlock()                 { speaker.Unlock() }

// Resolver maps an audio URL to a local file.
type Resolver func(src string) (string, error)

// DirResolver serves URLs under prefix from dir, e.g. "/audio/s1/E001.mp3"
// from dir/s1/E001.mp3.
func DirResolver(prefix, dir string) Resolver {
	prefix = "/" + strings.Trim(prefix, "/") + "/"
	return func(src string) (string, error) {
		if !strings.HasPrefix(src, prefix) {
			return "", fmt.Errorf("audio source %q is outside %s", src, prefix)
		}
		rel := path.Clean("/" + strings.TrimPrefix(src, prefix))
		if rel == "/" {
			return "", fmt.Errorf("audio source %q names no file", src)
		}
		return filepath.Join(dir, filepath.FromSlash(rel)), nil
	}
}

// Player plays one narration file at a time through a single output.
// Completion callbacks run on their own goroutine, never on the speaker's.
type Player struct {
	mu      sync.Mutex
	out     Output
	resolve Resolver
	cfg     config.PlayerConfig
	ready   bool

	volume float64
	gen    uint64
	track  beep.StreamSeekCloser
	format beep.Format
	gain   *Gain
	source string
}

// NewPlayer creates a player on the system speaker.
func NewPlayer(cfg config.PlayerConfig, resolve Resolver) *Player {
	return NewPlayerWithOutput(cfg, resolve, speakerOutput{})
}

// NewPlayerWithOutput creates a player on a custom output.
func NewPlayerWithOutput(cfg config.PlayerConfig, resolve Resolver, out Output) *Player {
	vol := cfg.Volume
	if vol <= 0 || vol > 1 {
		vol = 1
	}
	return &Player{out: out, resolve: resolve, cfg: cfg, volume: vol}
}

// Play starts src and calls exactly one of onEnded or onError when it
// finishes, unless it is stopped or replaced first.
func (p *Player) Play(src string, onEnded func(), onError func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.gen++
	gen := p.gen

	file := src
	if p.resolve != nil {
		f, err := p.resolve(src)
		if err != nil {
			return err
		}
		file = f
	}

	track, format, err := DecodeMedia(file)
	if err != nil {
		return err
	}
	if err := p.ensureOutput(); err != nil {
		track.Close()
		return err
	}

	var s beep.Streamer = beep.Resample(3, format.SampleRate, SampleRate, track)
	if p.cfg.Vintage {
		s = NewBandpass(s, float64(SampleRate), p.cfg.LowCutoff, p.cfg.HighCutoff)
	}
	gain := NewGain(s, p.volume)
	if fade := time.Duration(p.cfg.FadeIn); fade > 0 {
		gain.FadeIn(SampleRate, fade)
	}

	p.track = track
	p.format = format
	p.gain = gain
	p.source = src

	p.out.Play(beep.Seq(gain, beep.Callback(func() {
		go p.finished(gen, onEnded, onError)
	})))
	slog.Debug("Audio: playing", "src", src, "file", file)
	return nil
}

func (p *Player) finished(gen uint64, onEnded func(), onError func(error)) {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	var err error
	if p.track != nil {
		err = p.track.Err()
		p.track.Close()
		p.track = nil
	}
	p.gain = nil
	p.source = ""
	p.mu.Unlock()

	if err != nil {
		slog.Warn("Audio: playback failed", "error", err)
		if onError != nil {
			onError(err)
		}
		return
	}
	if onEnded != nil {
		onEnded()
	}
}

// Stop halts playback. Pending callbacks of the stopped source are dropped.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.track == nil {
		return
	}
	p.out.Clear()
	p.track.Close()
	p.track = nil
	p.gain = nil
	p.source = ""
}

func (p *Player) ensureOutput() error {
	if p.ready {
		return nil
	}
	if err := p.out.Init(SampleRate, SampleRate.N(time.Second/10)); err != nil {
		slog.Error("Failed to initialize speaker", "error", err)
		return err
	}
	p.ready = true
	return nil
}

// SetVolume sets playback volume (0.0 to 1.0).
func (p *Player) SetVolume(vol float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	p.volume = vol
	if p.gain != nil {
		p.out.Lock()
		p.gain.RampTo(vol, SampleRate, 50*time.Millisecond)
		p.out.Unlock()
	}
}

// Volume returns the current volume level.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Source returns the URL being played, or "".
func (p *Player) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Position returns the playback position of the current source.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil || p.format.SampleRate == 0 {
		return 0
	}
	p.out.Lock()
	defer p.out.Unlock()
	return p.format.SampleRate.D(p.track.Position())
}

// DecodeMedia opens an mp3 or wav file.
func DecodeMedia(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		s, format, err := wav.Decode(f)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("failed to decode wav: %w", err)
		}
		return s, format, nil
	}

	s, format, err := mp3.Decode(f)
	if err == nil {
		return s, format, nil
	}

	// Decoders close the file on failure. Some providers write wav data
	// behind an .mp3 name, so reopen and try wav.
	f.Close()
	f, ferr := os.Open(path)
	if ferr != nil {
		return nil, beep.Format{}, ferr
	}
	s, format, werr := wav.Decode(f)
	if werr != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("failed to decode audio file: %w", errors.Join(err, werr))
	}
	return s, format, nil
}

// Duration is the play length of an mp3 or wav file.
func Duration(path string) (time.Duration, error) {
	s, format, err := DecodeMedia(path)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return format.SampleRate.D(s.Len()), nil
}
