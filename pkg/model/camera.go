package model

// Camera is a map viewport. Center is [lng, lat].
type Camera struct {
	Center  [2]float64 `json:"center"`
	Zoom    float64    `json:"zoom"`
	Pitch   float64    `json:"pitch"`
	Bearing float64    `json:"bearing"`
}

// Lng returns the center longitude.
func (c Camera) Lng() float64 { return c.Center[0] }

// Lat returns the center latitude.
func (c Camera) Lat() float64 { return c.Center[1] }

// Flat returns the camera with pitch and bearing reset to zero.
func (c Camera) Flat() Camera {
	c.Pitch = 0
	c.Bearing = 0
	return c
}

// DefaultCamera is the world view used before anything is loaded.
var DefaultCamera = Camera{Center: [2]float64{10, 30}, Zoom: 1.5}
