// Package camera keeps the live map widget in step with the orchestrator's
// desired camera without echoing programmatic moves back as user moves.
package camera

import (
	"log/slog"
	"math"
	"time"

	"storymap/pkg/clock"
	"storymap/pkg/logging"
	"storymap/pkg/model"
)

// Widget is the live map view.
type Widget interface {
	// Camera returns the widget's current viewport.
	Camera() model.Camera
	// EaseTo starts an animated transition.
	EaseTo(cam model.Camera, d time.Duration)
	// JumpTo moves without animation.
	JumpTo(cam model.Camera)
}

// Defaults.
const (
	DefaultEase          = 800 * time.Millisecond
	DefaultSettleMargin  = 100 * time.Millisecond
	CenterTolerance      = 1e-4
	ZoomTolerance        = 0.01
	orientationTolerance = 1e-6
)

// Config tunes the synchronizer.
type Config struct {
	Ease         time.Duration
	SettleMargin time.Duration
}

// Synchronizer pushes desired cameras to the widget and reports user moves.
// It is not safe for concurrent use; all calls must come from one loop.
type Synchronizer struct {
	widget   Widget
	clock    clock.Clock
	onMove   func(model.Camera)
	ease     time.Duration
	settle   time.Duration
	syncing  bool
	timer    clock.Timer
	gen      uint64
	log      *slog.Logger
	moves    int
	dropped  int
	reported int
}

// New creates a synchronizer. onUserMove receives the widget camera after a
// user-driven move settles.
func New(w Widget, clk clock.Clock, cfg Config, onUserMove func(model.Camera)) *Synchronizer {
	if cfg.Ease <= 0 {
		cfg.Ease = DefaultEase
	}
	if cfg.SettleMargin < 0 {
		cfg.SettleMargin = 0
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Synchronizer{
		widget: w,
		clock:  clk,
		onMove: onUserMove,
		ease:   cfg.Ease,
		settle: cfg.SettleMargin,
		log:    slog.With("component", "camera"),
	}
}

// Changed reports whether next differs from cur beyond tolerance.
func Changed(cur, next model.Camera) bool {
	return math.Abs(cur.Lng()-next.Lng()) > CenterTolerance ||
		math.Abs(cur.Lat()-next.Lat()) > CenterTolerance ||
		math.Abs(cur.Zoom-next.Zoom) > ZoomTolerance
}

// OnExternalCameraChange eases the widget to next with the default duration.
func (s *Synchronizer) OnExternalCameraChange(next model.Camera) bool {
	return s.MoveTo(next, s.ease)
}

// MoveTo eases the widget to next over d. It returns false when the widget is
// already there. Any earlier programmatic move is superseded.
func (s *Synchronizer) MoveTo(next model.Camera, d time.Duration) bool {
	next = next.Flat()
	cur := s.widget.Camera()
	if !Changed(cur, next) {
		logging.Trace(s.log, "Camera: change below tolerance", "lng", next.Lng(), "lat", next.Lat(), "zoom", next.Zoom)
		return false
	}

	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.syncing = true
	s.moves++

	s.widget.EaseTo(next, d)
	s.timer = s.clock.AfterFunc(d+s.settle, func() {
		if s.gen != gen {
			return
		}
		s.syncing = false
		s.timer = nil
	})
	logging.Trace(s.log, "Camera: easing", "lng", next.Lng(), "lat", next.Lat(), "zoom", next.Zoom, "duration", d)
	return true
}

// OnMapMoveEnd handles the widget's move-end event. Programmatic moves are
// dropped; user moves are reported as the new desired camera.
func (s *Synchronizer) OnMapMoveEnd() {
	if s.syncing {
		s.dropped++
		return
	}
	cam := s.widget.Camera().Flat()
	s.reported++
	if s.onMove != nil {
		s.onMove(cam)
	}
}

// OnRotateOrPitch snaps the widget back to a flat, north-up view.
func (s *Synchronizer) OnRotateOrPitch() {
	cam := s.widget.Camera()
	if math.Abs(cam.Pitch) <= orientationTolerance && math.Abs(cam.Bearing) <= orientationTolerance {
		return
	}
	s.widget.JumpTo(cam.Flat())
}

// Live returns the widget's current camera.
func (s *Synchronizer) Live() model.Camera {
	return s.widget.Camera()
}

// Syncing reports whether a programmatic move is in flight.
func (s *Synchronizer) Syncing() bool {
	return s.syncing
}

// Cancel clears any in-flight suppression, e.g. when the session resets.
func (s *Synchronizer) Cancel() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.syncing = false
}

// Stats is a snapshot of synchronizer counters.
type Stats struct {
	Moves    int `json:"moves"`
	Dropped  int `json:"dropped"`
	Reported int `json:"reported"`
}

// Stats returns counters for diagnostics.
func (s *Synchronizer) Stats() Stats {
	return Stats{Moves: s.moves, Dropped: s.dropped, Reported: s.reported}
}
