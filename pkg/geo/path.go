package geo

import (
	"math"
	"strconv"

	"storymap/pkg/model"
)

// keyPrecision absorbs float noise from the map widget: 6 decimals is ~0.1 m.
const keyPrecision = 1e6

// Round snaps a degree value to key precision.
func Round(v float64) float64 {
	r := math.Round(v*keyPrecision) / keyPrecision
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// CoordKey returns the identity of a coordinate for deduplication.
func CoordKey(p Point) string {
	return strconv.FormatFloat(Round(p.Lon), 'f', 6, 64) + "," + strconv.FormatFloat(Round(p.Lat), 'f', 6, 64)
}

// SegmentKey returns the undirected key of a segment: A→B and B→A share it.
func SegmentKey(a, b Point) string {
	ka, kb := CoordKey(a), CoordKey(b)
	if kb < ka {
		ka, kb = kb, ka
	}
	return ka + "|" + kb
}

// EventPoint returns the event's location if it contributes geometry.
func EventPoint(e *model.Event) (Point, bool) {
	if e.IsBookend() {
		return Point{}, false
	}
	lng, lat, ok := e.Location.Coordinates.LngLat()
	if !ok {
		return Point{}, false
	}
	return Point{Lat: lat, Lon: lng}, true
}

// Place is one unique coordinate and the events located there, in list order.
type Place struct {
	Key      string
	Point    Point
	Indexes  []int
	EventIDs []string
}

// UniquePlaces collapses located events sharing a coordinate into one place.
// Places are returned in order of first appearance.
func UniquePlaces(events []model.Event) []Place {
	var places []Place
	byKey := make(map[string]int)
	for i := range events {
		p, ok := EventPoint(&events[i])
		if !ok {
			continue
		}
		key := CoordKey(p)
		idx, seen := byKey[key]
		if !seen {
			idx = len(places)
			byKey[key] = idx
			places = append(places, Place{Key: key, Point: Point{Lat: Round(p.Lat), Lon: Round(p.Lon)}})
		}
		places[idx].Indexes = append(places[idx].Indexes, i)
		places[idx].EventIDs = append(places[idx].EventIDs, events[i].EventID)
	}
	return places
}

// Segment is a deduplicated path edge between two consecutive located events.
type Segment struct {
	Key      string
	From     Point
	To       Point
	FromID   string
	ToID     string
	ToIndex  int
	StyleKey string
}

// BuildSegments walks the list in order and connects consecutive located events.
// Events without a location are jumped over. Zero-length segments are dropped and
// a segment already drawn in either direction is not drawn again. The style comes
// from the later event's transition.
func BuildSegments(events []model.Event) []Segment {
	var segments []Segment
	seen := make(map[string]bool)

	havePrev := false
	var prev Point
	var prevKey, prevID string

	for i := range events {
		p, ok := EventPoint(&events[i])
		if !ok {
			continue
		}
		key := CoordKey(p)
		if havePrev && key != prevKey {
			sk := SegmentKey(prev, p)
			if !seen[sk] {
				seen[sk] = true
				segments = append(segments, Segment{
					Key:      sk,
					From:     Point{Lat: Round(prev.Lat), Lon: Round(prev.Lon)},
					To:       Point{Lat: Round(p.Lat), Lon: Round(p.Lon)},
					FromID:   prevID,
					ToID:     events[i].EventID,
					ToIndex:  i,
					StyleKey: events[i].Transition.LineStyleKey,
				})
			}
		}
		havePrev = true
		prev, prevKey, prevID = p, key, events[i].EventID
	}
	return segments
}

// LocatedPoints returns every located event's point in list order.
func LocatedPoints(events []model.Event) []Point {
	var pts []Point
	for i := range events {
		if p, ok := EventPoint(&events[i]); ok {
			pts = append(pts, p)
		}
	}
	return pts
}
