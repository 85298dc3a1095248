package domain

import (
	"fmt"
	"math"
	"strings"
)

// PubQuality weights how strongly the backend favours highly rated pubs.
type PubQuality int

const (
	PubQualityLow PubQuality = iota
	PubQualityHigh
)

func (q PubQuality) String() string {
	if q == PubQualityHigh {
		return "HIGH"
	}
	return "LOW"
}

// ParsePubQuality accepts LOW or HIGH in any case.
func ParsePubQuality(s string) (PubQuality, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return PubQualityLow, nil
	case "HIGH":
		return PubQualityHigh, nil
	}
	return 0, fmt.Errorf("%w: pub quality %q", ErrInvalidPreferences, s)
}

func (q PubQuality) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

func (q *PubQuality) UnmarshalText(b []byte) error {
	v, err := ParsePubQuality(string(b))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// WalkTolerance is how far the user is willing to walk between pubs.
// Its numeric value is the walk tier sent to the backend.
type WalkTolerance int

const (
	WalkLow WalkTolerance = iota
	WalkMedium
	WalkHigh
)

func (w WalkTolerance) String() string {
	switch w {
	case WalkLow:
		return "LOW"
	case WalkHigh:
		return "HIGH"
	default:
		return "MEDIUM"
	}
}

// ParseWalkTolerance accepts LOW, MEDIUM or HIGH in any case.
func ParseWalkTolerance(s string) (WalkTolerance, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return WalkLow, nil
	case "MEDIUM":
		return WalkMedium, nil
	case "HIGH":
		return WalkHigh, nil
	}
	return 0, fmt.Errorf("%w: walk tolerance %q", ErrInvalidPreferences, s)
}

func (w WalkTolerance) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *WalkTolerance) UnmarshalText(b []byte) error {
	v, err := ParseWalkTolerance(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// Preferences are the planning knobs of the overlay form. A submit always
// sends the whole value.
type Preferences struct {
	SearchRadiusKm float64       `json:"search_radius_km"`
	PubQuality     PubQuality    `json:"pub_quality"`
	WalkTolerance  WalkTolerance `json:"walk_tolerance"`
	WarriorMode    bool          `json:"warrior_mode"`
}

// DefaultPreferences is what a fresh overlay shows.
func DefaultPreferences() Preferences {
	return Preferences{
		SearchRadiusKm: 2.5,
		PubQuality:     PubQualityHigh,
		WalkTolerance:  WalkMedium,
	}
}

// Validate checks ranges. maxRadiusKm <= 0 disables the upper bound.
func (p Preferences) Validate(maxRadiusKm float64) error {
	if math.IsNaN(p.SearchRadiusKm) || math.IsInf(p.SearchRadiusKm, 0) || p.SearchRadiusKm < 0 {
		return fmt.Errorf("%w: search radius must be a non-negative number", ErrInvalidPreferences)
	}
	if maxRadiusKm > 0 && p.SearchRadiusKm > maxRadiusKm {
		return fmt.Errorf("%w: search radius %.1f km exceeds %.1f km", ErrInvalidPreferences, p.SearchRadiusKm, maxRadiusKm)
	}
	if p.PubQuality != PubQualityLow && p.PubQuality != PubQualityHigh {
		return fmt.Errorf("%w: unknown pub quality %d", ErrInvalidPreferences, p.PubQuality)
	}
	if p.WalkTolerance < WalkLow || p.WalkTolerance > WalkHigh {
		return fmt.Errorf("%w: unknown walk tolerance %d", ErrInvalidPreferences, p.WalkTolerance)
	}
	return nil
}

// RouteStop is a pub on the planned route.
type RouteStop struct {
	Name           string     `json:"name"`
	Location       Coordinate `json:"location"`
	PhotoReference string     `json:"photo_reference,omitempty"`
	Rating         float64    `json:"rating,omitempty"`
}

// RouteSegment is one walking leg between two consecutive stops.
// Path holds the intermediate points only; endpoints live on the stops.
type RouteSegment struct {
	Start           RouteStop    `json:"start"`
	End             RouteStop    `json:"end"`
	Path            []Coordinate `json:"path"`
	DurationMinutes int          `json:"duration_minutes,omitempty"`
	DistanceMeters  int          `json:"distance_meters,omitempty"`
}

// Line returns the drawable polyline: start, intermediate points, end.
// An endpoint already present at the head or tail of Path is not repeated.
// The result always has at least two points; a leg that starts and ends at
// the same place is a zero-length line.
func (s RouteSegment) Line() []Coordinate {
	line := make([]Coordinate, 0, len(s.Path)+2)
	if len(s.Path) == 0 || s.Path[0] != s.Start.Location {
		line = append(line, s.Start.Location)
	}
	line = append(line, s.Path...)
	if len(s.Path) == 0 || s.Path[len(s.Path)-1] != s.End.Location {
		line = append(line, s.End.Location)
	}
	if len(line) < 2 {
		return []Coordinate{s.Start.Location, s.End.Location}
	}
	return line
}

// RouteResponse is the backend's answer to one submit.
type RouteResponse struct {
	Segments []RouteSegment `json:"segments"`
}

// TotalMinutes sums the walking time over all segments.
func (r *RouteResponse) TotalMinutes() int {
	total := 0
	for _, s := range r.Segments {
		total += s.DurationMinutes
	}
	return total
}

// CrimeIncident is one recorded street-level crime.
type CrimeIncident struct {
	ID       int64      `json:"id,omitempty"`
	Category string     `json:"category"`
	Location Coordinate `json:"location"`
	Month    string     `json:"month,omitempty"`
	Street   string     `json:"street,omitempty"`
}
