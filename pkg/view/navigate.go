package view

import (
	"time"

	"storymap/pkg/events"
	"storymap/pkg/geo"
	"storymap/pkg/model"
	"storymap/pkg/render"
)

// Pan estimate for the opening shot.
const (
	panBase    = time.Second
	panPer1000 = 500 * time.Millisecond
	panMax     = 3 * time.Second
)

// PanDuration estimates how long a pan between two points takes on screen.
func PanDuration(from, to geo.Point) time.Duration {
	km := geo.Distance(from, to) / 1000
	d := panBase + time.Duration(km/1000*float64(panPer1000))
	if d > panMax {
		d = panMax
	}
	return d
}

// GoTo navigates to index, clamped to the list. During cinema playback it
// restarts playback from there.
func (o *Orchestrator) GoTo(index int) {
	if len(o.events) == 0 {
		return
	}
	index = clamp(index, 0, len(o.events)-1)
	if o.mode == render.ModeCinema && o.cinema.Active() {
		o.cinema.Start(index)
		return
	}
	o.navigate(index)
}

// Next moves to the following event.
func (o *Orchestrator) Next() {
	if o.mode == render.ModeCinema && o.cinema.Active() {
		o.cinema.Skip()
		return
	}
	o.GoTo(o.active + 1)
}

// Prev moves to the preceding event.
func (o *Orchestrator) Prev() {
	o.GoTo(o.active - 1)
}

// navigate makes index active and moves the camera. It returns the index that
// ended up active: leaving an Opening forward skips to the first real located
// event with a two-phase pan-then-zoom.
func (o *Orchestrator) navigate(index int) int {
	o.cancelZoomStep()
	if index < 0 || index >= len(o.events) {
		return o.active
	}

	prev := o.active
	if prev >= 0 && prev < len(o.events) && index > prev &&
		o.events[prev].EventType == model.EventTypeOpening {
		if target := events.FirstLocated(o.events, index); target >= 0 {
			o.active = target
			o.openingShot(target)
			o.publish()
			return target
		}
	}

	o.active = index
	o.setCamera(o.cameraFor(index))
	o.publish()
	return index
}

// openingShot pans holding the current zoom, then zooms in once the pan is over.
func (o *Orchestrator) openingShot(target int) {
	final := o.cameraFor(target)
	from := geo.Point{Lat: o.desired.Lat(), Lon: o.desired.Lng()}
	to := geo.Point{Lat: final.Lat(), Lon: final.Lng()}
	pan := PanDuration(from, to)

	first := final
	first.Zoom = o.desired.Zoom
	o.desired = first
	o.sync.MoveTo(first, pan)
	o.log.Debug("View: opening pan", "target", target, "pan", pan)

	gen := o.zoomGen
	o.zoomStep = o.clk.AfterFunc(pan, func() {
		// a fired timer may already be queued on the loop when it is stopped
		if gen != o.zoomGen {
			return
		}
		o.zoomStep = nil
		o.setCamera(final)
		o.publish()
	})
}

func (o *Orchestrator) cancelZoomStep() {
	o.zoomGen++
	if o.zoomStep != nil {
		o.zoomStep.Stop()
		o.zoomStep = nil
	}
}

// cameraFor frames the event at index: its own view when located, otherwise
// an overview of every located event.
func (o *Orchestrator) cameraFor(index int) model.Camera {
	e := &o.events[index]
	if !e.HasLocation() {
		return geo.OverviewCamera(geo.LocatedPoints(o.events))
	}
	lng, lat, _ := e.Location.Coordinates.LngLat()
	zoom := e.Location.MapView.Zoom
	if zoom <= 0 {
		zoom = events.DefaultPickZoom
	}
	return model.Camera{Center: [2]float64{lng, lat}, Zoom: zoom}
}

func (o *Orchestrator) setCamera(c model.Camera) {
	o.desired = c.Flat()
	o.sync.OnExternalCameraChange(o.desired)
}

// OnMapMoveEnd forwards the widget's move-end event.
func (o *Orchestrator) OnMapMoveEnd() {
	o.sync.OnMapMoveEnd()
}

// OnRotateOrPitch forwards rotate and pitch gestures.
func (o *Orchestrator) OnRotateOrPitch() {
	o.sync.OnRotateOrPitch()
}

func (o *Orchestrator) onUserMove(c model.Camera) {
	if !camChanged(o.desired, c) {
		return
	}
	o.desired = c
	if o.pres != nil {
		o.pres.Present(o.Snapshot())
	}
}

func camChanged(a, b model.Camera) bool {
	return a.Center != b.Center || a.Zoom != b.Zoom
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
