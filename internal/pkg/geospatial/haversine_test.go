package geospatial

import (
	"math"
	"testing"

	"github.com/samirrijal/pintfinder/internal/core/domain"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// Rose & Crown to White Hart in the route fixture, roughly 530 m.
	d := Haversine(51.4260, -0.5660, 51.4300, -0.5700)
	if d < 500 || d > 560 {
		t.Fatalf("expected ~530 m, got %.1f", d)
	}
}

func TestHaversine_SamePoint(t *testing.T) {
	if d := Haversine(51.5, -0.12, 51.5, -0.12); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestCoincident(t *testing.T) {
	a := domain.Coordinate{Lng: -0.5660, Lat: 51.4260}
	b := domain.Coordinate{Lng: -0.5660000001, Lat: 51.4260000001}
	c := domain.Coordinate{Lng: -0.5700, Lat: 51.4300}

	if !Coincident(a, b, 1) {
		t.Error("expected near-identical points to be coincident")
	}
	if Coincident(a, c, 1) {
		t.Error("expected distant points not to be coincident")
	}
}

func TestExtent(t *testing.T) {
	if _, ok := Extent(nil); ok {
		t.Fatal("expected no extent for empty input")
	}

	b, ok := Extent([]domain.Coordinate{
		{Lng: -0.5660, Lat: 51.4260},
		{Lng: -0.5700, Lat: 51.4300},
		{Lng: -0.5670, Lat: 51.4270},
	})
	if !ok {
		t.Fatal("expected extent")
	}
	if b.MinLng != -0.5700 || b.MaxLng != -0.5660 {
		t.Errorf("unexpected lng range %v..%v", b.MinLng, b.MaxLng)
	}
	if math.Abs(b.MaxLat-51.4300) > 1e-9 || math.Abs(b.MinLat-51.4260) > 1e-9 {
		t.Errorf("unexpected lat range %v..%v", b.MinLat, b.MaxLat)
	}
}
