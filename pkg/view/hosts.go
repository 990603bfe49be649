package view

import (
	"storymap/pkg/model"
	"storymap/pkg/render"
)

// pickerHost exposes the orchestrator to the picker.
type pickerHost struct{ o *Orchestrator }

func (h pickerHost) Events() []model.Event { return h.o.events }

func (h pickerHost) SetEvents(evs []model.Event) { h.o.apply(evs) }

func (h pickerHost) LiveCamera() model.Camera { return h.o.sync.Live() }

func (h pickerHost) Marker() *model.Coordinates { return h.o.marker }

func (h pickerHost) SetMarker(c *model.Coordinates) {
	if c == nil && h.o.marker == nil {
		return
	}
	h.o.marker = c
	h.o.publish()
}

func (h pickerHost) Notice(msg string) { h.o.notify("warning", msg) }

// cinemaHost exposes the orchestrator to the cinema controller.
type cinemaHost struct{ o *Orchestrator }

func (h cinemaHost) Events() []model.Event { return h.o.events }

func (h cinemaHost) ShowEvent(index int) int { return h.o.navigate(index) }

func (h cinemaHost) CinemaEnded() {
	h.o.log.Info("View: cinema finished")
	h.o.switchMode(render.ModeView)
}
