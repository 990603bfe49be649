package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"storymap/pkg/model"
)

// Field paths with coupling rules.
const (
	PathEventType = "eventType"
	PathDateStart = "timeline.dateStart"
)

// UpdateField sets value at a dotted JSON path (e.g. "location.mapView.zoom")
// on the event at index and returns the new list.
//
// Missing intermediates, or intermediates that are not objects, are replaced
// with an empty object before descending. A value that does not fit the
// field's type yields ErrInvalidValue and an unchanged copy.
//
// Setting timeline.dateStart on a non-Period event also sets dateEnd, and
// switching eventType to Event collapses an existing range onto dateStart.
func UpdateField(events []model.Event, index int, path string, value any) ([]model.Event, error) {
	out := Clone(events)
	if index < 0 || index >= len(out) {
		return out, nil
	}
	keys := strings.Split(path, ".")
	for _, k := range keys {
		if k == "" {
			return out, fmt.Errorf("%w: empty segment in path %q", ErrInvalidValue, path)
		}
	}

	raw, err := json.Marshal(&out[index])
	if err != nil {
		return out, fmt.Errorf("failed to encode event: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return out, fmt.Errorf("failed to decode event: %w", err)
	}

	setPath(doc, keys, value)

	raw, err = json.Marshal(doc)
	if err != nil {
		return Clone(events), fmt.Errorf("%w: %s: %v", ErrInvalidValue, path, err)
	}
	var updated model.Event
	if err := json.Unmarshal(raw, &updated); err != nil {
		return Clone(events), fmt.Errorf("%w: %s: %v", ErrInvalidValue, path, err)
	}

	switch path {
	case PathDateStart:
		if updated.EventType != model.EventTypePeriod {
			updated.Timeline.DateEnd = updated.Timeline.DateStart
		}
	case PathEventType:
		if updated.EventType == model.EventTypeEvent && updated.Timeline.DateStart != "" {
			updated.Timeline.DateEnd = updated.Timeline.DateStart
		}
	}

	out[index] = updated
	return out, nil
}

func setPath(doc map[string]any, keys []string, value any) {
	cur := doc
	for _, k := range keys[:len(keys)-1] {
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[k] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = value
}
