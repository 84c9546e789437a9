package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commute/internal/domain"
)

func TestDecodePath_KnownPolyline(t *testing.T) {
	t.Parallel()

	// Reference polyline from the encoding format documentation.
	path, err := DecodePath("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, path, 3)

	assert.InDelta(t, 38.5, path[0].Lat, 1e-5)
	assert.InDelta(t, -120.2, path[0].Lng, 1e-5)
	assert.InDelta(t, 43.252, path[2].Lat, 1e-5)
	assert.InDelta(t, -126.453, path[2].Lng, 1e-5)
}

func TestDecodePath_Empty(t *testing.T) {
	t.Parallel()

	_, err := DecodePath("")
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestEncodePath_RoundTrip(t *testing.T) {
	t.Parallel()

	in := []domain.Coordinate{
		{Lat: 37.5745, Lng: 127.0399},
		{Lat: 37.5959, Lng: 127.0587},
	}
	out, err := DecodePath(EncodePath(in))
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range in {
		assert.InDelta(t, in[i].Lat, out[i].Lat, 1e-5)
		assert.InDelta(t, in[i].Lng, out[i].Lng, 1e-5)
	}
}

func TestResample_EndpointsAndSpacing(t *testing.T) {
	t.Parallel()

	path := []domain.Coordinate{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.01},
		{Lat: 0.01, Lng: 0.01},
	}

	out, err := Resample(path, 10)
	require.NoError(t, err)
	require.Len(t, out, 11)

	assert.Equal(t, path[0], out[0])
	assert.Equal(t, path[2], out[10])

	step := PathLength(path) / 10
	for i := 1; i < len(out); i++ {
		// Samples straddling the corner are closer in a straight line.
		assert.LessOrEqual(t, DistanceMeters(out[i-1], out[i]), step+1)
	}
}

func TestResample_SinglePoint(t *testing.T) {
	t.Parallel()

	p := domain.Coordinate{Lat: 1, Lng: 2}
	out, err := Resample([]domain.Coordinate{p}, 3)
	require.NoError(t, err)
	assert.Equal(t, []domain.Coordinate{p, p, p, p}, out)
}

func TestResample_Empty(t *testing.T) {
	t.Parallel()

	_, err := Resample(nil, 3)
	assert.ErrorIs(t, err, ErrEmptyPath)
}
