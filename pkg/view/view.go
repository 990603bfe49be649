// Package view owns the state of one open map view: the current story and its
// events, the active event, the desired camera and the picker overlay. It feeds
// the camera synchronizer, renderer, picker and cinema controller and is the
// only writer of that state.
//
// An Orchestrator is not safe for concurrent use. Every method, timer callback
// and completion must run on the session loop.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storymap/pkg/camera"
	"storymap/pkg/cinema"
	"storymap/pkg/clock"
	"storymap/pkg/events"
	"storymap/pkg/geo"
	"storymap/pkg/geocode"
	"storymap/pkg/loop"
	"storymap/pkg/model"
	"storymap/pkg/picker"
	"storymap/pkg/render"
)

// ErrNoStory is returned by operations that need a loaded story.
var ErrNoStory = errors.New("no story loaded")

// ErrReadOnly is returned when editing is not allowed.
var ErrReadOnly = errors.New("story is read-only")

// Library loads and saves stories.
type Library interface {
	Stories(ctx context.Context) ([]model.Story, error)
	Story(ctx context.Context, id string) (*model.Story, error)
	Events(ctx context.Context, id string) ([]model.Event, error)
	SaveEvents(ctx context.Context, id string, evs []model.Event) (*model.Story, error)
	ReadOnly(id string) bool
}

// Notice is a user-facing message.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Presenter receives state changes.
type Presenter interface {
	Present(s Snapshot)
	Draw(o *render.Overlay, d render.Diff)
	Notify(n Notice)
}

// Snapshot is the externally visible state.
type Snapshot struct {
	Mode     render.Mode        `json:"mode"`
	StoryID  string             `json:"storyId,omitempty"`
	Story    *model.Story       `json:"story,omitempty"`
	Events   []model.Event      `json:"events"`
	Active   int                `json:"active"`
	Camera   model.Camera       `json:"camera"`
	Marker   *model.Coordinates `json:"marker,omitempty"`
	Picking  picker.State       `json:"picking"`
	Cinema   cinema.State       `json:"cinema"`
	Loading  bool               `json:"loading"`
	Dirty    bool               `json:"dirty"`
	ReadOnly bool               `json:"readOnly"`
}

// Config tunes timings.
type Config struct {
	Camera       camera.Config
	AdvanceDelay time.Duration
}

// Deps are the collaborators of an orchestrator.
type Deps struct {
	Library    Library
	Geocoder   geocode.Geocoder
	Widget     camera.Widget
	Player     cinema.Player
	Presenter  Presenter
	Clock      clock.Clock
	Dispatcher loop.Dispatcher
}

// Orchestrator is the top-level controller of a view.
type Orchestrator struct {
	ctx  context.Context
	lib  Library
	pres Presenter
	clk  clock.Clock
	disp loop.Dispatcher
	cfg  Config

	sync     *camera.Synchronizer
	picker   *picker.Picker
	cinema   *cinema.Controller
	renderer *render.Renderer

	mode     render.Mode
	storyID  string
	story    *model.Story
	events   []model.Event
	active   int
	desired  model.Camera
	marker   *model.Coordinates
	home     *render.Overlay
	loading  bool
	dirty    bool
	loadGen  uint64
	saveGen  uint64
	editSeq  uint64
	zoomStep clock.Timer
	zoomGen  uint64

	log *slog.Logger
}

// New builds an orchestrator in home mode with nothing loaded.
func New(ctx context.Context, d Deps, cfg Config) *Orchestrator {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Dispatcher == nil {
		d.Dispatcher = loop.Inline{}
	}
	o := &Orchestrator{
		ctx:      ctx,
		lib:      d.Library,
		pres:     d.Presenter,
		clk:      d.Clock,
		disp:     d.Dispatcher,
		cfg:      cfg,
		renderer: render.NewRenderer(),
		mode:     render.ModeHome,
		active:   -1,
		desired:  model.DefaultCamera,
		log:      slog.With("component", "view"),
	}
	o.sync = camera.New(d.Widget, d.Clock, cfg.Camera, o.onUserMove)
	o.picker = picker.New(ctx, pickerHost{o}, d.Geocoder, d.Clock, d.Dispatcher)
	o.cinema = cinema.New(cinemaHost{o}, d.Player, d.Clock, d.Dispatcher.Post, cfg.AdvanceDelay)
	return o
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	s := Snapshot{
		Mode:     o.mode,
		StoryID:  o.storyID,
		Events:   events.Clone(o.events),
		Active:   o.active,
		Camera:   o.desired,
		Picking:  o.picker.State(),
		Cinema:   o.cinema.State(),
		Loading:  o.loading,
		Dirty:    o.dirty,
		ReadOnly: o.storyID != "" && o.lib.ReadOnly(o.storyID),
	}
	if s.Events == nil {
		s.Events = []model.Event{}
	}
	if o.story != nil {
		st := *o.story
		s.Story = &st
	}
	if o.marker != nil {
		m := o.marker.Clone()
		s.Marker = &m
	}
	return s
}

// CameraStats exposes synchronizer counters.
func (o *Orchestrator) CameraStats() camera.Stats {
	return o.sync.Stats()
}

// reset clears all per-story state. Nothing survives a story switch.
func (o *Orchestrator) reset() {
	o.loadGen++
	o.saveGen++
	o.cancelZoomStep()
	o.cinema.Exit()
	o.marker = nil
	o.picker.Reset()
	o.events = nil
	o.active = -1
	o.story = nil
	o.storyID = ""
	o.home = nil
	o.dirty = false
	o.loading = false
}

// OpenHome switches to the multi-story overview and loads it in the background.
func (o *Orchestrator) OpenHome() {
	o.reset()
	o.mode = render.ModeHome
	o.loading = true
	gen := o.loadGen
	o.publish()

	o.disp.Go(func() {
		overlay, points, err := o.loadHome()
		o.disp.Post(func() {
			if gen != o.loadGen {
				o.log.Debug("View: dropping stale home load")
				return
			}
			o.loading = false
			if err != nil {
				// passive view, degrade quietly
				o.log.Warn("View: home overview failed", "error", err)
				overlay = render.BuildHome(nil)
			}
			o.home = overlay
			o.setCamera(geo.OverviewCamera(points))
			o.publish()
		})
	})
}

func (o *Orchestrator) loadHome() (*render.Overlay, []geo.Point, error) {
	stories, err := o.lib.Stories(o.ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list stories: %w", err)
	}
	var all []render.StoryEvents
	var points []geo.Point
	for _, st := range stories {
		evs, err := o.lib.Events(o.ctx, st.ID)
		if err != nil {
			o.log.Warn("View: skipping story in overview", "story", st.ID, "error", err)
			continue
		}
		all = append(all, render.StoryEvents{StoryID: st.ID, Name: st.Name, Events: evs})
		points = append(points, geo.LocatedPoints(evs)...)
	}
	return render.BuildHome(all), points, nil
}

// Open shows a story in mode. Switching to a different story resets all state;
// switching mode on the same story keeps the loaded events.
func (o *Orchestrator) Open(storyID string, mode render.Mode) error {
	if mode == render.ModeHome {
		o.OpenHome()
		return nil
	}
	if mode == render.ModeEdit && o.lib.ReadOnly(storyID) {
		return ErrReadOnly
	}

	if storyID == o.storyID && o.story != nil && !o.loading {
		o.switchMode(mode)
		return nil
	}

	o.reset()
	o.storyID = storyID
	o.mode = mode
	o.loading = true
	gen := o.loadGen
	o.publish()

	o.disp.Go(func() {
		st, evs, err := o.loadStory(storyID)
		o.disp.Post(func() {
			if gen != o.loadGen {
				o.log.Debug("View: dropping stale story load", "story", storyID)
				return
			}
			o.loading = false
			if err != nil {
				o.log.Warn("View: story load failed", "story", storyID, "error", err)
				o.notify("error", "Could not load story")
				o.publish()
				return
			}
			o.story = st
			o.events = evs
			o.log.Info("View: story loaded", "story", storyID, "events", len(evs), "mode", o.mode)
			if len(evs) == 0 {
				o.setCamera(geo.OverviewCamera(nil))
				o.publish()
				return
			}
			if o.mode == render.ModeCinema {
				o.cinema.Start(0)
				return
			}
			o.navigate(0)
		})
	})
	return nil
}

func (o *Orchestrator) loadStory(id string) (*model.Story, []model.Event, error) {
	st, err := o.lib.Story(o.ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load story %s: %w", id, err)
	}
	evs, err := o.lib.Events(o.ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load events of %s: %w", id, err)
	}
	if events.RepairSources(evs) {
		o.log.Warn("View: repaired transition sources on load", "story", id)
	}
	return st, evs, nil
}

func (o *Orchestrator) switchMode(mode render.Mode) {
	if mode == o.mode {
		return
	}
	prev := o.mode
	o.mode = mode
	if prev == render.ModeEdit {
		o.picker.Reset()
	}
	if prev == render.ModeCinema {
		o.cinema.Exit()
	}
	if mode == render.ModeCinema {
		start := o.active
		if start < 0 {
			start = 0
		}
		o.picker.Reset()
		o.cinema.Start(start)
		return
	}
	o.publish()
}

// EnterCinema starts playback from the active event.
func (o *Orchestrator) EnterCinema() error {
	if o.story == nil {
		return ErrNoStory
	}
	o.switchMode(render.ModeCinema)
	return nil
}

// ExitCinema stops playback and returns to view mode.
func (o *Orchestrator) ExitCinema() {
	if o.mode != render.ModeCinema {
		return
	}
	o.switchMode(render.ModeView)
}

// publish pushes the snapshot and any overlay change.
func (o *Orchestrator) publish() {
	if o.pres == nil {
		return
	}
	var overlay *render.Overlay
	if o.mode == render.ModeHome {
		overlay = o.home
		if overlay == nil {
			overlay = render.BuildHome(nil)
		}
	} else {
		overlay = render.Build(o.events, o.active, o.mode)
	}
	if d := o.renderer.Apply(overlay); !d.Empty() {
		o.pres.Draw(overlay, d)
	}
	o.pres.Present(o.Snapshot())
}

func (o *Orchestrator) notify(level, msg string) {
	if o.pres != nil {
		o.pres.Notify(Notice{Level: level, Message: msg})
	}
}

// Redraw forces the full overlay to be sent again, e.g. after a widget reconnects.
func (o *Orchestrator) Redraw() {
	o.renderer.Reset()
	o.publish()
}
