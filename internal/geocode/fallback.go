package geocode

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"commute/internal/domain"
	"commute/internal/metrics"
)

// FallbackResolver never fails for a live context. It tries the inner
// resolver, then the landmark table, then the default city centre flagged as
// low confidence.
type FallbackResolver struct {
	inner     Resolver
	landmarks *Landmarks
	center    domain.NamedLocation
	log       *zap.Logger
}

// NewFallbackResolver creates a FallbackResolver. inner may be nil.
func NewFallbackResolver(inner Resolver, landmarks *Landmarks, center domain.NamedLocation, log *zap.Logger) *FallbackResolver {
	if landmarks == nil {
		landmarks = NewLandmarks(DefaultLandmarks())
	}
	if !center.Valid() || (center.Lat == 0 && center.Lng == 0) {
		center = SeoulCityHall
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FallbackResolver{inner: inner, landmarks: landmarks, center: center, log: log}
}

// Resolve returns a location for address. Only context errors are returned.
func (r *FallbackResolver) Resolve(ctx context.Context, address string) (domain.NamedLocation, error) {
	address = strings.TrimSpace(address)

	if r.inner != nil && address != "" {
		loc, err := r.inner.Resolve(ctx, address)
		if err == nil {
			return loc, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.NamedLocation{}, ctxErr
		}
		r.log.Warn("geocoding failed, using fallback",
			zap.String("address", address),
			zap.Error(err),
		)
	}

	if lm, ok := r.landmarks.Match(address); ok {
		metrics.GeocodeFallbacksTotal.WithLabelValues("landmark").Inc()
		return domain.NamedLocation{
			Coordinate: lm.Coordinate,
			Address:    lm.Name,
			Source:     domain.LocationSourceLandmark,
		}, nil
	}

	metrics.GeocodeFallbacksTotal.WithLabelValues("default").Inc()
	r.log.Warn("no landmark matched, using city centre", zap.String("address", address))

	loc := r.center
	loc.Source = domain.LocationSourceDefault
	loc.LowConfidence = true
	if address != "" {
		loc.Address = address
	}
	return loc, nil
}

var _ Resolver = (*FallbackResolver)(nil)
