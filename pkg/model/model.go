package model

import (
	"math"
	"time"
)

// EventType classifies an event in a story.
type EventType string

const (
	EventTypeEvent   EventType = "Event"
	EventTypePeriod  EventType = "Period"
	EventTypeOpening EventType = "Opening"
	EventTypeClosing EventType = "Closing"
)

// Reserved ids for the synthetic bookend events.
const (
	OpeningID = "OPENING"
	ClosingID = "CLOSING"
)

// Story is the persisted header of a life story map.
type Story struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Language    string    `json:"language"`
	VoiceID     string    `json:"voiceId"`
	EventCount  int       `json:"eventCount"`
	Published   bool      `json:"published"`
	DateCreated time.Time `json:"dateCreated"`
}

// StoryPatch carries a partial story update. Nil fields are left untouched.
type StoryPatch struct {
	Name      *string `json:"name,omitempty"`
	Language  *string `json:"language,omitempty"`
	VoiceID   *string `json:"voiceId,omitempty"`
	Published *bool   `json:"published,omitempty"`
}

// Event is a single narrative beat of a story.
type Event struct {
	EventID    string     `json:"eventId"`
	EventType  EventType  `json:"eventType"`
	Title      string     `json:"title"`
	Timeline   Timeline   `json:"timeline"`
	Location   Location   `json:"location"`
	Transition Transition `json:"transition"`
	Content    Content    `json:"content"`
}

// Timeline holds ISO dates (YYYY-MM-DD). DateEnd mirrors DateStart for point events.
type Timeline struct {
	DateStart string `json:"dateStart"`
	DateEnd   string `json:"dateEnd"`
}

// Coordinates is a nullable lng/lat pair. Both are nil until picked or searched.
type Coordinates struct {
	Lng *float64 `json:"lng"`
	Lat *float64 `json:"lat"`
}

// NewCoordinates returns a set coordinate pair.
func NewCoordinates(lng, lat float64) Coordinates {
	return Coordinates{Lng: &lng, Lat: &lat}
}

// IsSet reports whether both components are present and finite.
func (c Coordinates) IsSet() bool {
	if c.Lng == nil || c.Lat == nil {
		return false
	}
	return isFinite(*c.Lng) && isFinite(*c.Lat)
}

// LngLat returns the pair and whether it is set.
func (c Coordinates) LngLat() (lng, lat float64, ok bool) {
	if !c.IsSet() {
		return 0, 0, false
	}
	return *c.Lng, *c.Lat, true
}

// Clone returns a copy that shares no pointers with c.
func (c Coordinates) Clone() Coordinates {
	var out Coordinates
	if c.Lng != nil {
		v := *c.Lng
		out.Lng = &v
	}
	if c.Lat != nil {
		v := *c.Lat
		out.Lat = &v
	}
	return out
}

// MapView is the camera snapshot stored with an event location.
type MapView struct {
	Zoom     float64 `json:"zoom"`
	Pitch    float64 `json:"pitch"`
	Bearing  float64 `json:"bearing"`
	MapStyle string  `json:"mapStyle"`
}

// Location is where an event happened.
type Location struct {
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
	MapView     MapView     `json:"mapView"`
}

// Transition describes how the narrative moves from the previous event to this one.
// SourceEventID is a back-reference to the preceding event, nil for the first event.
type Transition struct {
	Type            string  `json:"type"`
	DurationSeconds float64 `json:"durationSeconds"`
	SourceEventID   *string `json:"sourceEventId"`
	LineStyleKey    string  `json:"lineStyleKey"`
}

// Source returns the source event id or "" when unset.
func (t Transition) Source() string {
	if t.SourceEventID == nil {
		return ""
	}
	return *t.SourceEventID
}

// Media is an attachment shown with the event text.
type Media struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// ImageComparison is the optional before/after slider.
type ImageComparison struct {
	Enabled bool   `json:"enabled"`
	Caption string `json:"caption"`
	URLOld  string `json:"urlOld"`
	URLNew  string `json:"urlNew"`
}

// Content is the narrative body of an event.
type Content struct {
	TextHTML        string          `json:"textHtml"`
	Media           []Media         `json:"media"`
	ImageComparison ImageComparison `json:"imageComparison"`
	AudioURL        string          `json:"audioUrl,omitempty"`
}

// IsBookend reports whether the event is a synthetic Opening or Closing.
// Bookends carry no location and never produce geometry or audio.
func (e *Event) IsBookend() bool {
	return e.EventType == EventTypeOpening || e.EventType == EventTypeClosing
}

// HasLocation reports whether the event contributes a marker.
func (e *Event) HasLocation() bool {
	return !e.IsBookend() && e.Location.Coordinates.IsSet()
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() Event {
	out := *e
	out.Location.Coordinates = e.Location.Coordinates.Clone()
	if e.Transition.SourceEventID != nil {
		id := *e.Transition.SourceEventID
		out.Transition.SourceEventID = &id
	}
	if e.Content.Media != nil {
		out.Content.Media = make([]Media, len(e.Content.Media))
		copy(out.Content.Media, e.Content.Media)
	}
	return out
}

// StringRef returns a pointer to a copy of s.
func StringRef(s string) *string {
	return &s
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
