package geo

import (
	"math"

	"github.com/paulmach/orb"

	"storymap/pkg/model"
)

const (
	singlePointZoom = 10.0
	minFitZoom      = 1.0
	maxFitZoom      = 12.0
)

// Bound returns the bounding box of the points.
func Bound(points []Point) orb.Bound {
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = orb.Point{p.Lon, p.Lat}
	}
	return mp.Bound()
}

// OverviewCamera frames all points in a flat, north-up camera.
func OverviewCamera(points []Point) model.Camera {
	switch len(points) {
	case 0:
		return model.DefaultCamera
	case 1:
		return model.Camera{Center: [2]float64{points[0].Lon, points[0].Lat}, Zoom: singlePointZoom}
	}

	b := Bound(points)
	c := b.Center()
	lonSpan := b.Max.Lon() - b.Min.Lon()
	latSpan := (b.Max.Lat() - b.Min.Lat()) * 2 // viewports are wider than tall
	span := math.Max(lonSpan, latSpan)

	zoom := maxFitZoom
	if span > 0 {
		// one world width is 360° at zoom 0; leave half a level of padding
		zoom = math.Log2(360/span) - 0.5
	}
	zoom = math.Max(minFitZoom, math.Min(maxFitZoom, zoom))

	return model.Camera{Center: [2]float64{c.Lon(), c.Lat()}, Zoom: zoom}
}
