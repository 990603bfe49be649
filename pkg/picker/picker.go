// Package picker implements "pick on map" for an event location.
//
// The machine has two states: idle and picking(index, start). The next map
// click at or after start commits coordinates and a camera snapshot, then the
// clicked point is reverse-geocoded in the background.
package picker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storymap/pkg/clock"
	"storymap/pkg/events"
	"storymap/pkg/geocode"
	"storymap/pkg/loop"
	"storymap/pkg/model"
)

// ErrEmptyQuery is returned by SearchLocation for blank input.
var ErrEmptyQuery = errors.New("empty search query")

// SearchZoom is the map view applied to search results.
const SearchZoom = 12.0

const lookupTimeout = 10 * time.Second

// Host is the owner of the event list and marker overlay.
type Host interface {
	Events() []model.Event
	SetEvents(evs []model.Event)
	LiveCamera() model.Camera
	Marker() *model.Coordinates
	SetMarker(c *model.Coordinates)
	Notice(msg string)
}

// State is the picker state.
type State struct {
	Picking bool      `json:"picking"`
	Index   int       `json:"index"`
	Start   time.Time `json:"start"`
}

// Picker is not safe for concurrent use; call it from the session loop.
type Picker struct {
	host     Host
	geocoder geocode.Geocoder
	clock    clock.Clock
	disp     loop.Dispatcher
	ctx      context.Context

	state  State
	before *model.Coordinates
	gen    uint64
	log    *slog.Logger
}

// New creates an idle picker. ctx bounds background lookups.
func New(ctx context.Context, host Host, gc geocode.Geocoder, clk clock.Clock, d loop.Dispatcher) *Picker {
	return &Picker{
		host:     host,
		geocoder: gc,
		clock:    clk,
		disp:     d,
		ctx:      ctx,
		log:      slog.With("component", "picker"),
	}
}

// State returns the current state.
func (p *Picker) State() State {
	return p.state
}

// BeginPick enters picking mode for index. Calling it again for the index
// being picked toggles back to idle and restores the marker shown before.
func (p *Picker) BeginPick(index int) {
	if p.state.Picking && p.state.Index == index {
		p.state = State{}
		p.host.SetMarker(p.before)
		p.before = nil
		p.log.Debug("Picker: toggled off", "index", index)
		return
	}

	evs := p.host.Events()
	if index < 0 || index >= len(evs) || evs[index].IsBookend() {
		return
	}
	if !p.state.Picking {
		p.before = cloneCoords(p.host.Marker())
	}
	p.state = State{Picking: true, Index: index, Start: p.clock.Now()}
	p.log.Debug("Picker: picking", "index", index, "event", evs[index].EventID)
}

// MapClick commits a click made at ts. Clicks before the pick started, or
// while idle, are ignored. cam is the camera at click time; nil falls back
// to the live camera. It reports whether the click was consumed.
func (p *Picker) MapClick(lng, lat float64, cam *model.Camera, ts time.Time) bool {
	if !p.state.Picking {
		return false
	}
	if ts.Before(p.state.Start) {
		p.log.Debug("Picker: ignoring stale click", "click", ts, "start", p.state.Start)
		return false
	}

	index := p.state.Index
	p.state = State{}
	p.before = nil

	evs := p.host.Events()
	if index >= len(evs) {
		return false
	}
	eventID := evs[index].EventID

	snap := p.host.LiveCamera()
	if cam != nil {
		snap = *cam
	}
	view := model.MapView{Zoom: snap.Zoom, Pitch: snap.Pitch, Bearing: snap.Bearing}

	p.host.SetEvents(events.SetLocation(evs, index, lng, lat, &view))
	c := model.NewCoordinates(lng, lat)
	p.host.SetMarker(&c)
	p.log.Info("Picker: location set", "event", eventID, "lng", lng, "lat", lat)

	p.reverse(eventID, lng, lat)
	return true
}

func (p *Picker) reverse(eventID string, lng, lat float64) {
	if p.geocoder == nil {
		return
	}
	gen := p.gen
	p.disp.Go(func() {
		ctx, cancel := context.WithTimeout(p.ctx, lookupTimeout)
		defer cancel()
		name, err := p.geocoder.Reverse(ctx, lng, lat)
		p.disp.Post(func() {
			if gen != p.gen {
				return
			}
			if err != nil {
				p.log.Debug("Picker: reverse geocode failed", "event", eventID, "error", err)
				return
			}
			if name == "" {
				return
			}
			p.host.SetEvents(events.SetLocationName(p.host.Events(), eventID, name))
		})
	})
}

// SearchLocation geocodes query in the background and, on the first match,
// writes name, coordinates and a flat zoom-12 view into the event at index.
// No match produces a notice and no change.
func (p *Picker) SearchLocation(index int, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}
	evs := p.host.Events()
	if index < 0 || index >= len(evs) {
		return fmt.Errorf("event index %d out of range", index)
	}
	if p.geocoder == nil {
		return fmt.Errorf("no geocoder configured")
	}
	eventID := evs[index].EventID
	gen := p.gen

	p.disp.Go(func() {
		ctx, cancel := context.WithTimeout(p.ctx, lookupTimeout)
		defer cancel()
		res, err := p.geocoder.Search(ctx, query)
		p.disp.Post(func() {
			if gen != p.gen {
				return
			}
			if err != nil {
				p.log.Warn("Picker: search failed", "query", query, "error", err)
				p.host.Notice(fmt.Sprintf("Location search failed for %s", query))
				return
			}
			if res == nil {
				p.host.Notice(fmt.Sprintf("No location found for %s", query))
				return
			}
			cur := p.host.Events()
			i := events.IndexOf(cur, eventID)
			if i < 0 {
				return
			}
			view := model.MapView{Zoom: SearchZoom}
			next := events.SetLocation(cur, i, res.Center[0], res.Center[1], &view)
			next[i].Location.Name = res.PlaceName
			p.host.SetEvents(next)
			c := model.NewCoordinates(res.Center[0], res.Center[1])
			p.host.SetMarker(&c)
		})
	})
	return nil
}

// Reset forces idle, clears the marker override and drops in-flight lookups.
func (p *Picker) Reset() {
	p.gen++
	p.state = State{}
	p.before = nil
	p.host.SetMarker(nil)
}

func cloneCoords(c *model.Coordinates) *model.Coordinates {
	if c == nil {
		return nil
	}
	out := c.Clone()
	return &out
}
