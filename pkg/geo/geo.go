// Package geo holds the pure geometry used to turn an event list into map
// features: coordinate keys, great-circle math, path segments and overview framing.
package geo

import (
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Orb converts to orb's [lng, lat] order.
func (p Point) Orb() orb.Point { return orb.Point{p.Lon, p.Lat} }

// FromOrb converts from orb's [lng, lat] order.
func FromOrb(o orb.Point) Point { return Point{Lat: o.Lat(), Lon: o.Lon()} }

// Distance is the great-circle distance in meters.
func Distance(a, b Point) float64 {
	return orbgeo.DistanceHaversine(a.Orb(), b.Orb())
}

// Midpoint is halfway along the great circle from a to b.
func Midpoint(a, b Point) Point {
	return FromOrb(orbgeo.Midpoint(a.Orb(), b.Orb()))
}

// GreatCircle samples the great circle from a to b by splitting it in half
// depth times, giving 2^depth+1 points.
func GreatCircle(a, b Point, depth int) []Point {
	if depth <= 0 {
		return []Point{a, b}
	}
	m := Midpoint(a, b)
	left := GreatCircle(a, m, depth-1)
	return append(left, GreatCircle(m, b, depth-1)[1:]...)
}
