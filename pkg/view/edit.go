package view

import (
	"fmt"
	"time"

	"storymap/pkg/events"
	"storymap/pkg/model"
	"storymap/pkg/render"
)

func (o *Orchestrator) editable() error {
	if o.story == nil {
		return ErrNoStory
	}
	if o.mode != render.ModeEdit {
		return fmt.Errorf("not in edit mode")
	}
	if o.lib.ReadOnly(o.storyID) {
		return ErrReadOnly
	}
	return nil
}

// apply swaps in a fully computed list and keeps the active event by id.
func (o *Orchestrator) apply(next []model.Event) {
	activeID := ""
	if o.active >= 0 && o.active < len(o.events) {
		activeID = o.events[o.active].EventID
	}
	active := events.IndexOf(next, activeID)
	if active < 0 && len(next) > 0 {
		active = clamp(o.active, 0, len(next)-1)
	}
	o.applyActive(next, active)
}

func (o *Orchestrator) applyActive(next []model.Event, active int) {
	o.events = next
	o.active = active
	o.dirty = true
	o.editSeq++
	o.publish()
}

// InsertAfter adds an empty event after index and makes it active.
func (o *Orchestrator) InsertAfter(index int) error {
	if err := o.editable(); err != nil {
		return err
	}
	next := events.InsertAfter(o.events, index)
	if len(next) == len(o.events) {
		return fmt.Errorf("index %d out of range", index)
	}
	active := index + 1
	if len(o.events) == 0 {
		active = 0
	}
	o.applyActive(next, active)
	return nil
}

// DeleteAt removes the event at index.
func (o *Orchestrator) DeleteAt(index int) error {
	if err := o.editable(); err != nil {
		return err
	}
	if index < 0 || index >= len(o.events) {
		return fmt.Errorf("index %d out of range", index)
	}
	if o.picker.State().Picking {
		o.picker.Reset()
	}
	o.apply(events.DeleteAt(o.events, index))
	return nil
}

// Reorder moves an event. Every source is recomputed from its new neighbour.
func (o *Orchestrator) Reorder(from, to int) error {
	if err := o.editable(); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if o.picker.State().Picking {
		o.picker.Reset()
	}
	o.apply(events.Reorder(o.events, from, to))
	return nil
}

// UpdateField sets a field of the event at index.
func (o *Orchestrator) UpdateField(index int, path string, value any) error {
	if err := o.editable(); err != nil {
		return err
	}
	next, err := events.UpdateField(o.events, index, path, value)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

// Save persists the event list in the background.
func (o *Orchestrator) Save() error {
	if err := o.editable(); err != nil {
		return err
	}
	id := o.storyID
	snapshot := events.Clone(o.events)
	gen := o.saveGen
	seq := o.editSeq

	o.disp.Go(func() {
		st, err := o.lib.SaveEvents(o.ctx, id, snapshot)
		o.disp.Post(func() {
			if gen != o.saveGen || id != o.storyID {
				return
			}
			if err != nil {
				o.log.Error("View: save failed", "story", id, "error", err)
				o.notify("error", "Saving failed")
				return
			}
			o.story = st
			if seq != o.editSeq {
				o.log.Debug("View: list changed while saving", "story", id)
				o.notify("info", "Saved, newer changes are not saved yet")
				o.publish()
				return
			}
			o.dirty = false
			o.notify("info", "Saved")
			o.publish()
		})
	})
	return nil
}

// BeginPick toggles map picking for the event at index.
func (o *Orchestrator) BeginPick(index int) error {
	if err := o.editable(); err != nil {
		return err
	}
	o.picker.BeginPick(index)
	o.publish()
	return nil
}

// MapClick forwards a map click. Only edit mode consumes clicks, to commit a pick.
func (o *Orchestrator) MapClick(lng, lat float64, cam *model.Camera, ts time.Time) {
	if o.mode == render.ModeEdit && o.picker.MapClick(lng, lat, cam, ts) {
		o.publish()
	}
}

// Search geocodes query for the event at index.
func (o *Orchestrator) Search(index int, query string) error {
	if err := o.editable(); err != nil {
		return err
	}
	return o.picker.SearchLocation(index, query)
}
