package gazetteer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"storymap/pkg/geo"
)

// ReadGeoNames parses a GeoNames cities dump (tab separated, 19 columns).
func ReadGeoNames(r io.Reader) ([]Place, error) {
	var out []Place
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), "\t")
		if len(parts) < 19 {
			continue
		}
		lat, err := strconv.ParseFloat(parts[4], 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(parts[5], 64)
		if err != nil {
			continue
		}
		pop, _ := strconv.ParseInt(parts[14], 10, 64)
		out = append(out, Place{
			Name:        parts[1],
			CountryCode: parts[8],
			Point:       geo.Point{Lat: lat, Lon: lon},
			Population:  pop,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadGeoNames reads a GeoNames file from disk.
func LoadGeoNames(path string) ([]Place, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cities file: %w", err)
	}
	defer f.Close()
	return ReadGeoNames(f)
}
