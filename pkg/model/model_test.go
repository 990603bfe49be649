package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestCoordinates_IsSet(t *testing.T) {
	nan := math.NaN()
	one := 1.0
	tests := []struct {
		name string
		c    Coordinates
		want bool
	}{
		{"null pair", Coordinates{}, false},
		{"lng only", Coordinates{Lng: &one}, false},
		{"nan lat", Coordinates{Lng: &one, Lat: &nan}, false},
		{"set", NewCoordinates(13.4, 52.5), true},
		{"zero is a place", NewCoordinates(0, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.IsSet(); got != tt.want {
				t.Errorf("IsSet() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvent_JSONNulls(t *testing.T) {
	e := Event{EventID: "E001", EventType: EventTypeEvent}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	loc := raw["location"].(map[string]any)
	coords := loc["coordinates"].(map[string]any)
	if coords["lng"] != nil || coords["lat"] != nil {
		t.Errorf("expected null coordinates, got %v", coords)
	}
	tr := raw["transition"].(map[string]any)
	if tr["sourceEventId"] != nil {
		t.Errorf("expected null sourceEventId, got %v", tr["sourceEventId"])
	}
}

func TestEvent_CloneIsDeep(t *testing.T) {
	e := Event{
		EventID:    "E002",
		Location:   Location{Coordinates: NewCoordinates(1, 2)},
		Transition: Transition{SourceEventID: StringRef("E001")},
		Content:    Content{Media: []Media{{Type: "image", URL: "/a.jpg"}}},
	}
	c := e.Clone()
	*c.Location.Coordinates.Lng = 99
	*c.Transition.SourceEventID = "X"
	c.Content.Media[0].URL = "/b.jpg"

	if *e.Location.Coordinates.Lng != 1 {
		t.Error("clone shares coordinates")
	}
	if e.Transition.Source() != "E001" {
		t.Error("clone shares source id")
	}
	if e.Content.Media[0].URL != "/a.jpg" {
		t.Error("clone shares media")
	}
}

func TestLanguageByCode(t *testing.T) {
	if l, ok := LanguageByCode("de-DE"); !ok || l.Name != "German" {
		t.Errorf("de-DE: got %+v, %v", l, ok)
	}
	if _, ok := LanguageByCode("xx"); ok {
		t.Error("xx should not resolve")
	}
}
