package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"commute/internal/domain"
)

var (
	seoulCityHall  = domain.Coordinate{Lat: 37.5663, Lng: 126.9779}
	gangnamStation = domain.Coordinate{Lat: 37.4979, Lng: 127.0276}
)

func TestDistanceMeters_Symmetric(t *testing.T) {
	t.Parallel()

	pairs := []struct {
		name string
		a, b domain.Coordinate
	}{
		{"seoul", seoulCityHall, gangnamStation},
		{"equator", domain.Coordinate{Lat: 0, Lng: 0}, domain.Coordinate{Lat: 0, Lng: 1}},
		{"antimeridian", domain.Coordinate{Lat: 10, Lng: 179.9}, domain.Coordinate{Lat: 10, Lng: -179.9}},
		{"poles", domain.Coordinate{Lat: 90, Lng: 0}, domain.Coordinate{Lat: -90, Lng: 0}},
	}

	for _, tc := range pairs {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, DistanceMeters(tc.a, tc.b), DistanceMeters(tc.b, tc.a), 1e-6)
		})
	}
}

func TestDistanceMeters_SamePointIsZero(t *testing.T) {
	t.Parallel()

	for _, c := range []domain.Coordinate{seoulCityHall, {Lat: 0, Lng: 0}, {Lat: -33.8688, Lng: 151.2093}} {
		assert.Equal(t, 0.0, DistanceMeters(c, c))
	}
}

func TestDistanceMeters_SeoulCityHallToGangnam(t *testing.T) {
	t.Parallel()

	d := DistanceMeters(seoulCityHall, gangnamStation)
	assert.GreaterOrEqual(t, d, 8600.0)
	assert.LessOrEqual(t, d, 9000.0)
}

func TestDistanceMeters_HalfCircumference(t *testing.T) {
	t.Parallel()

	d := DistanceMeters(domain.Coordinate{Lat: 90, Lng: 0}, domain.Coordinate{Lat: -90, Lng: 0})
	assert.InDelta(t, 20015086.8, d, 1)
}

func TestDistanceMeters_AntipodalPairsAreHalfCircumference(t *testing.T) {
	t.Parallel()

	halfCircumference := math.Pi * EarthRadiusMeters
	rng := rand.New(rand.NewSource(7))

	pairs := []domain.Coordinate{{Lat: 18.8389, Lng: 158.5833}}
	for i := 0; i < 20000; i++ {
		pairs = append(pairs, domain.Coordinate{
			Lat: rng.Float64()*180 - 90,
			Lng: rng.Float64()*360 - 180,
		})
	}

	for _, a := range pairs {
		lng := a.Lng + 180
		if lng > 180 {
			lng -= 360
		}
		b := domain.Coordinate{Lat: -a.Lat, Lng: lng}

		d := DistanceMeters(a, b)
		if !assert.False(t, math.IsNaN(d), "%v -> %v", a, b) {
			return
		}
		assert.InDelta(t, halfCircumference, d, 1, "%v -> %v", a, b)
	}
}
