package gazetteer

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"

	"storymap/pkg/geo"
)

// LoadShapefile reads point features from a Natural Earth style populated
// places shapefile. Recognised attributes are NAME, ADM0NAME, ISO_A2 and POP_MAX.
func LoadShapefile(path string) ([]Place, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	cols := map[string]int{}
	for i, f := range shape.Fields() {
		cols[strings.ToUpper(strings.TrimRight(f.String(), "\x00 "))] = i
	}
	nameCol, ok := cols["NAME"]
	if !ok {
		return nil, fmt.Errorf("shapefile %s has no NAME attribute", path)
	}
	attr := func(row int, col string) string {
		i, ok := cols[col]
		if !ok {
			return ""
		}
		return clean(shape.ReadAttribute(row, i))
	}

	var out []Place
	skipped := 0
	for shape.Next() {
		n, s := shape.Shape()
		pt, ok := s.(*shp.Point)
		if !ok {
			skipped++
			continue
		}
		pop, _ := strconv.ParseFloat(attr(n, "POP_MAX"), 64)
		out = append(out, Place{
			Name:        clean(shape.ReadAttribute(n, nameCol)),
			Country:     attr(n, "ADM0NAME"),
			CountryCode: attr(n, "ISO_A2"),
			Point:       geo.Point{Lat: pt.Y, Lon: pt.X},
			Population:  int64(pop),
		})
	}
	if err := shape.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shapes: %w", err)
	}
	if skipped > 0 {
		slog.Debug("Gazetteer: skipped non-point shapes", "path", path, "count", skipped)
	}
	return out, nil
}

// Load builds an index from whichever sources are configured.
func Load(citiesFile, shapeFile string, resolution int, maxDistKm float64) (*Index, error) {
	var places []Place
	if citiesFile != "" {
		p, err := LoadGeoNames(citiesFile)
		if err != nil {
			return nil, err
		}
		places = append(places, p...)
	}
	if shapeFile != "" {
		p, err := LoadShapefile(shapeFile)
		if err != nil {
			return nil, err
		}
		places = append(places, p...)
	}
	if len(places) == 0 {
		return nil, fmt.Errorf("gazetteer: no places loaded")
	}
	return New(places, resolution, maxDistKm)
}

// clean strips DBF padding.
func clean(s string) string {
	return strings.Trim(s, "\x00 ")
}
