// Package cinema drives narrated auto-advancing playback of a story.
//
// Entering an event starts its audio; audio completion, an audio error, or a
// missing track schedules the next event. Advancing past the last event exits
// through the host.
package cinema

import (
	"log/slog"
	"time"

	"storymap/pkg/clock"
	"storymap/pkg/model"
)

// DefaultAdvanceDelay is how long an event without audio stays on screen.
const DefaultAdvanceDelay = 2 * time.Second

// Player plays one audio source at a time. A single player is reused for a
// whole session; only its source changes. onEnded and onError may be called
// from any goroutine; the controller's caller is expected to route them onto
// its loop.
type Player interface {
	Play(src string, onEnded func(), onError func(error)) error
	Stop()
}

// Host is the orchestrator side of cinema mode.
type Host interface {
	Events() []model.Event
	// ShowEvent navigates to index and returns the index actually shown,
	// which may lie further ahead when the host skips events.
	ShowEvent(index int) int
	// CinemaEnded leaves cinema mode after the last event.
	CinemaEnded()
}

// Phase is the controller state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseShowing   Phase = "showing"
	PhaseAdvancing Phase = "advancing"
)

// State is a snapshot for presenters.
type State struct {
	Phase   Phase  `json:"phase"`
	Index   int    `json:"index"`
	Audio   bool   `json:"audio"`
	Pending bool   `json:"pending"`
	Source  string `json:"source,omitempty"`
}

// Controller is not safe for concurrent use.
type Controller struct {
	host   Host
	player Player
	clock  clock.Clock
	post   func(func())
	delay  time.Duration

	phase   Phase
	index   int
	source  string
	playing bool
	timer   clock.Timer
	gen     uint64
	log     *slog.Logger
}

// New creates an idle controller. post routes player callbacks onto the
// caller's loop; nil runs them inline.
func New(host Host, player Player, clk clock.Clock, post func(func()), delay time.Duration) *Controller {
	if delay <= 0 {
		delay = DefaultAdvanceDelay
	}
	if post == nil {
		post = func(f func()) { f() }
	}
	return &Controller{
		host:   host,
		player: player,
		clock:  clk,
		post:   post,
		delay:  delay,
		phase:  PhaseIdle,
		log:    slog.With("component", "cinema"),
	}
}

// Active reports whether cinema playback is running.
func (c *Controller) Active() bool {
	return c.phase != PhaseIdle
}

// State returns the current snapshot.
func (c *Controller) State() State {
	return State{
		Phase:   c.phase,
		Index:   c.index,
		Audio:   c.playing,
		Pending: c.timer != nil,
		Source:  c.source,
	}
}

// Start begins playback at index.
func (c *Controller) Start(index int) {
	if index < 0 {
		index = 0
	}
	c.log.Info("Cinema: starting", "index", index)
	c.show(index)
}

// Exit stops audio and timers. It does not notify the host.
func (c *Controller) Exit() {
	if c.phase == PhaseIdle {
		return
	}
	c.halt()
	c.phase = PhaseIdle
	c.log.Info("Cinema: stopped", "index", c.index)
}

// Skip advances immediately, e.g. on a manual "next" during playback.
func (c *Controller) Skip() {
	if c.phase == PhaseIdle {
		return
	}
	c.advance()
}

func (c *Controller) halt() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.playing {
		c.player.Stop()
		c.playing = false
	}
	c.source = ""
}

func (c *Controller) show(index int) {
	c.halt()
	evs := c.host.Events()
	if index >= len(evs) {
		c.phase = PhaseIdle
		c.log.Info("Cinema: finished")
		c.host.CinemaEnded()
		return
	}

	c.phase = PhaseShowing
	c.index = index
	gen := c.gen
	shown := c.host.ShowEvent(index)
	if c.gen != gen || c.phase != PhaseShowing {
		// host exited or restarted playback
		return
	}
	if shown > index && shown < len(evs) {
		index = shown
		c.index = shown
	}

	src := ""
	if !evs[index].IsBookend() {
		src = evs[index].Content.AudioURL
	}
	if src == "" || c.player == nil {
		c.scheduleAdvance()
		return
	}

	onEnded := func() {
		c.post(func() {
			if gen != c.gen {
				return
			}
			c.playing = false
			c.advance()
		})
	}
	onError := func(err error) {
		c.post(func() {
			if gen != c.gen {
				return
			}
			c.log.Warn("Cinema: audio failed", "index", index, "src", src, "error", err)
			c.playing = false
			c.scheduleAdvance()
		})
	}
	if err := c.player.Play(src, onEnded, onError); err != nil {
		c.log.Warn("Cinema: audio failed to start", "index", index, "src", src, "error", err)
		c.scheduleAdvance()
		return
	}
	c.playing = true
	c.source = src
}

func (c *Controller) scheduleAdvance() {
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.delay, func() {
		if gen != c.gen {
			return
		}
		c.timer = nil
		c.advance()
	})
}

func (c *Controller) advance() {
	c.phase = PhaseAdvancing
	c.show(c.index + 1)
}
