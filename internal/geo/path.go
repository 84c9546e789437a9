package geo

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-polyline"

	"commute/internal/domain"
)

// ErrEmptyPath is returned when a path has no points.
var ErrEmptyPath = errors.New("path has no points")

// DecodePath decodes an encoded polyline (precision 5) into coordinates.
func DecodePath(encoded string) ([]domain.Coordinate, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}
	if len(coords) == 0 {
		return nil, ErrEmptyPath
	}

	path := make([]domain.Coordinate, 0, len(coords))
	for _, c := range coords {
		path = append(path, domain.Coordinate{Lat: c[0], Lng: c[1]})
	}
	return path, nil
}

// EncodePath is the inverse of DecodePath.
func EncodePath(path []domain.Coordinate) string {
	coords := make([][]float64, 0, len(path))
	for _, p := range path {
		coords = append(coords, []float64{p.Lat, p.Lng})
	}
	return string(polyline.EncodeCoords(coords))
}

// Interpolate returns the point at fraction t of the straight segment a→b.
func Interpolate(a, b domain.Coordinate, t float64) domain.Coordinate {
	return domain.Coordinate{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}

// PathLength returns the summed haversine length of the path in meters.
func PathLength(path []domain.Coordinate) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += DistanceMeters(path[i-1], path[i])
	}
	return total
}

// Resample returns steps+1 points spaced evenly by distance along path,
// starting at its first point and ending at its last.
func Resample(path []domain.Coordinate, steps int) ([]domain.Coordinate, error) {
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}
	if steps < 1 {
		steps = 1
	}

	out := make([]domain.Coordinate, 0, steps+1)
	total := PathLength(path)
	if len(path) == 1 || total == 0 {
		for i := 0; i <= steps; i++ {
			out = append(out, path[0])
		}
		return out, nil
	}

	seg := 0
	walked := 0.0 // Length of the segments before seg.
	for i := 0; i <= steps; i++ {
		target := total * float64(i) / float64(steps)
		for seg < len(path)-2 && walked+DistanceMeters(path[seg], path[seg+1]) < target {
			walked += DistanceMeters(path[seg], path[seg+1])
			seg++
		}

		segLen := DistanceMeters(path[seg], path[seg+1])
		t := 1.0
		if segLen > 0 {
			t = (target - walked) / segLen
		}
		if t > 1 {
			t = 1
		}
		if t < 0 {
			t = 0
		}
		out = append(out, Interpolate(path[seg], path[seg+1], t))
	}
	out[0] = path[0]
	out[len(out)-1] = path[len(path)-1]
	return out, nil
}
