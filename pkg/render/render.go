// Package render derives map markers and path lines from an event list.
package render

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"storymap/pkg/geo"
	"storymap/pkg/model"
)

// Mode is the view the overlay is built for.
type Mode string

const (
	ModeEdit   Mode = "edit"
	ModeView   Mode = "view"
	ModeCinema Mode = "cinema"
	ModeHome   Mode = "home"
)

// Marker and path colours for single-story modes.
const (
	ColorActive   = "#e4572e"
	ColorInactive = "#2e86ab"
	ColorPath     = "#3d405b"
)

// Palette colours stories in the home overview by index mod len.
var Palette = []string{
	"#e4572e", "#2e86ab", "#76b041", "#f3a712",
	"#8e44ad", "#17bebb", "#d62246", "#6c757d",
}

// Line style keys and their rendering layers. Unknown keys render solid.
var styleLayers = map[string]string{
	"":       "path-solid",
	"solid":  "path-solid",
	"dashed": "path-dashed",
	"dotted": "path-dotted",
	"flight": "path-flight",
	"sea":    "path-sea",
	"road":   "path-road",
}

// flightArcDepth gives flight lines 2^3+1 points along the great circle.
const flightArcDepth = 3

// StyleKeys lists the known line styles in display order.
var StyleKeys = []string{"solid", "dashed", "dotted", "flight", "sea", "road"}

// LayerFor maps a line style key to its rendering layer.
func LayerFor(styleKey string) string {
	if l, ok := styleLayers[styleKey]; ok {
		return l
	}
	return styleLayers[""]
}

// Overlay is the full feature set pushed to the map widget.
type Overlay struct {
	Markers *geojson.FeatureCollection `json:"markers"`
	Paths   *geojson.FeatureCollection `json:"paths"`
	Key     string                     `json:"key"`
}

// StoryEvents is one story's contribution to the home overview.
type StoryEvents struct {
	StoryID string
	Name    string
	Events  []model.Event
}

// Build renders one story. active is the active event index or -1.
// In cinema mode only segments leading to events at or before active are drawn.
func Build(evs []model.Event, active int, mode Mode) *Overlay {
	var activeID string
	if active >= 0 && active < len(evs) {
		activeID = evs[active].EventID
	}

	o := &Overlay{
		Markers: geojson.NewFeatureCollection(),
		Paths:   geojson.NewFeatureCollection(),
	}

	places := geo.UniquePlaces(evs)
	for _, p := range places {
		isActive := false
		for _, id := range p.EventIDs {
			if id == activeID {
				isActive = true
				break
			}
		}
		color := ColorInactive
		if isActive {
			color = ColorActive
		}
		o.Markers.Append(markerFeature("", p, evs, color, isActive))
	}

	segs := geo.BuildSegments(evs)
	drawn := 0
	for _, s := range segs {
		if mode == ModeCinema && s.ToIndex > active {
			continue
		}
		o.Paths.Append(pathFeature("", s, ColorPath))
		drawn++
	}

	o.Key = fmt.Sprintf("%d:%d:%d", 1, len(places), drawn)
	return o
}

// BuildHome merges every story into one overlay, coloured by story index.
// Key is storyCount:pointCount:lineCount.
func BuildHome(stories []StoryEvents) *Overlay {
	o := &Overlay{
		Markers: geojson.NewFeatureCollection(),
		Paths:   geojson.NewFeatureCollection(),
	}
	for i, st := range stories {
		color := Palette[i%len(Palette)]
		prefix := fmt.Sprintf("s%d:", i)
		for _, p := range geo.UniquePlaces(st.Events) {
			f := markerFeature(prefix, p, st.Events, color, false)
			f.Properties["storyId"] = st.StoryID
			f.Properties["storyName"] = st.Name
			o.Markers.Append(f)
		}
		for _, s := range geo.BuildSegments(st.Events) {
			f := pathFeature(prefix, s, color)
			f.Properties["storyId"] = st.StoryID
			o.Paths.Append(f)
		}
	}
	o.Key = fmt.Sprintf("%d:%d:%d", len(stories), len(o.Markers.Features), len(o.Paths.Features))
	return o
}

func markerFeature(prefix string, p geo.Place, evs []model.Event, color string, active bool) *geojson.Feature {
	f := geojson.NewFeature(p.Point.Orb())
	key := prefix + "m:" + p.Key
	titles := make([]string, 0, len(p.Indexes))
	for _, i := range p.Indexes {
		if t := strings.TrimSpace(evs[i].Title); t != "" {
			titles = append(titles, t)
		}
	}
	f.ID = key
	f.Properties["key"] = key
	f.Properties["color"] = color
	f.Properties["active"] = active
	f.Properties["eventIds"] = append([]string(nil), p.EventIDs...)
	f.Properties["title"] = strings.Join(titles, " / ")
	return f
}

func pathFeature(prefix string, s geo.Segment, color string) *geojson.Feature {
	line := orb.LineString{s.From.Orb(), s.To.Orb()}
	if s.StyleKey == "flight" {
		arc := geo.GreatCircle(s.From, s.To, flightArcDepth)
		line = make(orb.LineString, len(arc))
		for i, p := range arc {
			line[i] = p.Orb()
		}
	}
	f := geojson.NewFeature(line)
	key := prefix + "p:" + s.Key
	f.ID = key
	f.Properties["key"] = key
	f.Properties["styleKey"] = s.StyleKey
	f.Properties["layer"] = LayerFor(s.StyleKey)
	f.Properties["color"] = color
	f.Properties["from"] = s.FromID
	f.Properties["to"] = s.ToID
	return f
}
