// Package gazetteer is an offline place index used when no online geocoder
// is configured or reachable. Places come from GeoNames city dumps or Natural
// Earth populated-places shapefiles and are bucketed into H3 cells.
package gazetteer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/uber/h3-go/v4"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"storymap/pkg/geo"
	"storymap/pkg/geocode"
)

// DefaultResolution is the H3 resolution of the index (edge length about 22 km).
const DefaultResolution = 4

// DefaultMaxDistKm bounds reverse lookups.
const DefaultMaxDistKm = 50.0

// Place is a named populated place.
type Place struct {
	Name        string
	CountryCode string
	Country     string
	Point       geo.Point
	Population  int64
}

// Label returns "Name, Country" with the usual fallbacks.
func (p *Place) Label() string {
	return geocode.FormatName(p.Name, p.Country, p.Name)
}

// Index answers nearest-place and by-name lookups.
type Index struct {
	places     []Place
	cells      map[h3.Cell][]int
	byName     map[string][]int
	resolution int
	maxDistKm  float64
}

// New builds an index over places. Zero resolution or distance use defaults.
func New(places []Place, resolution int, maxDistKm float64) (*Index, error) {
	if resolution <= 0 || resolution > 15 {
		resolution = DefaultResolution
	}
	if maxDistKm <= 0 {
		maxDistKm = DefaultMaxDistKm
	}
	idx := &Index{
		places:     make([]Place, 0, len(places)),
		cells:      make(map[h3.Cell][]int),
		byName:     make(map[string][]int),
		resolution: resolution,
		maxDistKm:  maxDistKm,
	}
	for _, p := range places {
		if p.Name == "" {
			continue
		}
		if p.Country == "" {
			p.Country = CountryName(p.CountryCode)
		}
		cell, err := h3.LatLngToCell(h3.NewLatLng(p.Point.Lat, p.Point.Lon), resolution)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", p.Name, err)
		}
		i := len(idx.places)
		idx.places = append(idx.places, p)
		idx.cells[cell] = append(idx.cells[cell], i)
		key := normalize(p.Name)
		idx.byName[key] = append(idx.byName[key], i)
	}
	// Most populous first so name lookups pick the well-known place
	for _, ids := range idx.byName {
		sort.SliceStable(ids, func(a, b int) bool {
			return idx.places[ids[a]].Population > idx.places[ids[b]].Population
		})
	}
	return idx, nil
}

// Len returns the number of indexed places.
func (idx *Index) Len() int { return len(idx.places) }

// Nearest returns the closest place within the distance bound.
func (idx *Index) Nearest(lat, lon float64) (*Place, bool) {
	origin, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), idx.resolution)
	if err != nil {
		return nil, false
	}
	edgeKm, err := h3.HexagonEdgeLengthAvgKm(idx.resolution)
	if err != nil || edgeKm <= 0 {
		edgeKm = 22
	}
	k := int(math.Ceil(idx.maxDistKm/(edgeKm*1.5))) + 1
	disk, err := h3.GridDisk(origin, k)
	if err != nil {
		return nil, false
	}

	target := geo.Point{Lat: lat, Lon: lon}
	best := -1
	bestKm := math.MaxFloat64
	for _, c := range disk {
		for _, i := range idx.cells[c] {
			d := geo.Distance(target, idx.places[i].Point) / 1000
			if d < bestKm {
				bestKm = d
				best = i
			}
		}
	}
	if best < 0 || bestKm > idx.maxDistKm {
		return nil, false
	}
	p := idx.places[best]
	return &p, true
}

// Lookup finds a place by name. An optional ", Country" suffix narrows the match.
func (idx *Index) Lookup(query string) (*Place, bool) {
	name, country, _ := strings.Cut(query, ",")
	ids := idx.byName[normalize(name)]
	country = normalize(country)
	for _, i := range ids {
		p := idx.places[i]
		if country == "" || normalize(p.Country) == country || normalize(p.CountryCode) == country {
			return &p, true
		}
	}
	return nil, false
}

// Name implements geocode.Geocoder.
func (idx *Index) Name() string { return "gazetteer" }

// Search implements geocode.Geocoder.
func (idx *Index) Search(_ context.Context, query string) (*geocode.Result, error) {
	p, ok := idx.Lookup(query)
	if !ok {
		return nil, nil
	}
	return &geocode.Result{
		Center:    [2]float64{p.Point.Lon, p.Point.Lat},
		PlaceName: p.Label(),
	}, nil
}

// Reverse implements geocode.Geocoder.
func (idx *Index) Reverse(_ context.Context, lng, lat float64) (string, error) {
	p, ok := idx.Nearest(lat, lng)
	if !ok {
		return "", nil
	}
	return p.Label(), nil
}

// CountryName returns the English name of an ISO 3166 alpha-2 code, or the code itself.
func CountryName(code string) string {
	if code == "" {
		return ""
	}
	r, err := language.ParseRegion(code)
	if err != nil {
		return code
	}
	if n := display.English.Regions().Name(r); n != "" {
		return n
	}
	return code
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
