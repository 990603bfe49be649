// Package events implements the ordered event list of a story.
//
// Every operation is a pure function: it returns a new slice with deep-copied
// events and never mutates its input. The list order defines the narrative
// sequence and each event's transition.sourceEventId points at its predecessor.
package events

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"storymap/pkg/model"
)

// ErrInvalidValue is returned by UpdateField when a value cannot be stored at the path.
var ErrInvalidValue = errors.New("invalid value for field")

// Defaults applied to freshly created events.
const (
	DefaultTransitionType     = "fly"
	DefaultTransitionDuration = 3.0
	DefaultPickZoom           = 12.0
	DefaultMapStyle           = "streets"
)

var idPattern = regexp.MustCompile(`^E(\d+)$`)

// GenerateNextEventID returns E + (highest numeric suffix + 1), zero-padded to 3 digits.
// Ids that do not match E<digits> are ignored.
func GenerateNextEventID(events []model.Event) string {
	maxN := 0
	for i := range events {
		m := idPattern.FindStringSubmatch(events[i].EventID)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > maxN {
			maxN = n
		}
	}
	return fmt.Sprintf("E%03d", maxN+1)
}

// NewEmptyEvent builds a blank event that follows sourceID ("" for none).
func NewEmptyEvent(id, sourceID string) model.Event {
	e := model.Event{
		EventID:   id,
		EventType: model.EventTypeEvent,
		Location: model.Location{
			MapView: model.MapView{Zoom: DefaultPickZoom, MapStyle: DefaultMapStyle},
		},
		Transition: model.Transition{
			Type:            DefaultTransitionType,
			DurationSeconds: DefaultTransitionDuration,
		},
		Content: model.Content{Media: []model.Media{}},
	}
	if sourceID != "" {
		e.Transition.SourceEventID = model.StringRef(sourceID)
	}
	return e
}

// NewBookends returns the Opening and Closing events of a fresh story.
func NewBookends(title string) []model.Event {
	opening := NewEmptyEvent(model.OpeningID, "")
	opening.EventType = model.EventTypeOpening
	opening.Title = title
	closing := NewEmptyEvent(model.ClosingID, model.OpeningID)
	closing.EventType = model.EventTypeClosing
	closing.Title = "The End"
	return []model.Event{opening, closing}
}

// Clone returns a deep copy of the list.
func Clone(events []model.Event) []model.Event {
	if events == nil {
		return nil
	}
	out := make([]model.Event, len(events))
	for i := range events {
		out[i] = events[i].Clone()
	}
	return out
}

// InsertAfter inserts a new empty event right after index, or as the only
// event when the list is empty. The new event follows events[index] and the
// event that used to follow index is repointed at the new one.
func InsertAfter(events []model.Event, index int) []model.Event {
	id := GenerateNextEventID(events)
	if len(events) == 0 {
		return []model.Event{NewEmptyEvent(id, "")}
	}
	if index < 0 || index >= len(events) {
		return Clone(events)
	}

	out := make([]model.Event, 0, len(events)+1)
	for i := 0; i <= index; i++ {
		out = append(out, events[i].Clone())
	}
	out = append(out, NewEmptyEvent(id, events[index].EventID))
	for i := index + 1; i < len(events); i++ {
		out = append(out, events[i].Clone())
	}
	if next := index + 2; next < len(out) {
		out[next].Transition.SourceEventID = model.StringRef(id)
	}
	return out
}

// DeleteAt removes the event at index and repoints its follower at the new predecessor.
func DeleteAt(events []model.Event, index int) []model.Event {
	if index < 0 || index >= len(events) {
		return Clone(events)
	}

	out := make([]model.Event, 0, len(events)-1)
	for i := range events {
		if i == index {
			continue
		}
		out = append(out, events[i].Clone())
	}
	if index < len(out) {
		if index == 0 {
			out[index].Transition.SourceEventID = nil
		} else {
			out[index].Transition.SourceEventID = model.StringRef(out[index-1].EventID)
		}
	}
	return out
}

// Reorder moves the event at from to position to, then recomputes every
// event's source from its new neighbour. Equal or out-of-range indexes are a no-op.
func Reorder(events []model.Event, from, to int) []model.Event {
	out := Clone(events)
	if from == to || from < 0 || to < 0 || from >= len(events) || to >= len(events) {
		return out
	}

	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]model.Event{moved}, out[to:]...)...)

	RepairSources(out)
	return out
}

// RepairSources rewrites every source in place so that position i points at i-1.
// It reports whether anything changed.
func RepairSources(events []model.Event) bool {
	changed := false
	for i := range events {
		want := ""
		if i > 0 {
			want = events[i-1].EventID
		}
		if i == 0 {
			if events[i].Transition.SourceEventID != nil {
				events[i].Transition.SourceEventID = nil
				changed = true
			}
			continue
		}
		if events[i].Transition.Source() != want || events[i].Transition.SourceEventID == nil {
			events[i].Transition.SourceEventID = model.StringRef(want)
			changed = true
		}
	}
	return changed
}

// CheckSources verifies the transition graph and id uniqueness.
func CheckSources(events []model.Event) error {
	seen := make(map[string]bool, len(events))
	for i := range events {
		e := &events[i]
		if seen[e.EventID] {
			return fmt.Errorf("duplicate event id %q at %d", e.EventID, i)
		}
		seen[e.EventID] = true

		if i == 0 {
			if e.Transition.SourceEventID != nil {
				return fmt.Errorf("first event %q has source %q", e.EventID, *e.Transition.SourceEventID)
			}
			continue
		}
		if e.Transition.SourceEventID == nil || *e.Transition.SourceEventID != events[i-1].EventID {
			return fmt.Errorf("event %q at %d has source %q, want %q", e.EventID, i, e.Transition.Source(), events[i-1].EventID)
		}
	}
	return nil
}

// IndexOf returns the position of the event with id, or -1.
func IndexOf(events []model.Event, id string) int {
	for i := range events {
		if events[i].EventID == id {
			return i
		}
	}
	return -1
}

// FirstLocated returns the first non-bookend event with a set location at or after start, or -1.
func FirstLocated(events []model.Event, start int) int {
	if start < 0 {
		start = 0
	}
	for i := start; i < len(events); i++ {
		if events[i].HasLocation() {
			return i
		}
	}
	return -1
}

// SetLocation writes coordinates and camera snapshot into the event at index.
// Style is kept from the existing map view. A nil view leaves it untouched.
func SetLocation(events []model.Event, index int, lng, lat float64, view *model.MapView) []model.Event {
	out := Clone(events)
	if index < 0 || index >= len(out) {
		return out
	}
	loc := &out[index].Location
	loc.Coordinates = model.NewCoordinates(lng, lat)
	if view != nil {
		style := loc.MapView.MapStyle
		loc.MapView = *view
		if loc.MapView.MapStyle == "" {
			loc.MapView.MapStyle = style
		}
	}
	return out
}

// SetLocationName writes the location name of the event with id. Unknown ids are a no-op.
func SetLocationName(events []model.Event, id, name string) []model.Event {
	out := Clone(events)
	if i := IndexOf(out, id); i >= 0 {
		out[i].Location.Name = name
	}
	return out
}
