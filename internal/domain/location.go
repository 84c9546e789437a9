package domain

import "time"

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is inside the WGS84 degree ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// LocationSource describes how a NamedLocation was obtained.
type LocationSource string

const (
	LocationSourceGeocoded LocationSource = "GEOCODED"
	LocationSourceLandmark LocationSource = "LANDMARK"
	LocationSourceDefault  LocationSource = "DEFAULT"
	LocationSourceProvided LocationSource = "PROVIDED"
)

// NamedLocation is a resolved coordinate with its human-readable label.
// It is immutable once attached to a trip.
type NamedLocation struct {
	Coordinate
	Address       string         `json:"address"`
	Source        LocationSource `json:"source"`
	LowConfidence bool           `json:"low_confidence"`
}

// Fix is a single position sample reported by a position source.
type Fix struct {
	Coordinate
	AccuracyMeters float64   `json:"accuracy_m"`
	Timestamp      time.Time `json:"timestamp"`
}
