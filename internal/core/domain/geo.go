package domain

import (
	"fmt"
	"math"
)

// Coordinate is a WGS 84 position in map order (longitude first).
// Build it with NewCoordinate so the range checks always run.
type Coordinate struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// NewCoordinate validates and returns a coordinate.
func NewCoordinate(lng, lat float64) (Coordinate, error) {
	if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
		return Coordinate{}, fmt.Errorf("%w: longitude %v outside [-180,180]", ErrInvalidCoordinate, lng)
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return Coordinate{}, fmt.Errorf("%w: latitude %v outside [-90,90]", ErrInvalidCoordinate, lat)
	}
	return Coordinate{Lng: lng, Lat: lat}, nil
}

// Validate re-checks a coordinate that arrived through JSON decoding.
func (c Coordinate) Validate() error {
	_, err := NewCoordinate(c.Lng, c.Lat)
	return err
}

// LngLat returns the [lng, lat] pair the map surface expects.
func (c Coordinate) LngLat() [2]float64 {
	return [2]float64{c.Lng, c.Lat}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lng, c.Lat)
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}
