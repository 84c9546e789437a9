package geocode

import (
	"context"
	"time"

	"go.uber.org/zap"

	"commute/internal/domain"
	"commute/internal/metrics"
)

// AddressCache stores resolved addresses.
type AddressCache interface {
	// GetAddress returns nil on a cache miss.
	GetAddress(ctx context.Context, key string) (*domain.NamedLocation, error)
	SetAddress(ctx context.Context, key string, loc domain.NamedLocation, ttl time.Duration) error
}

// CachedResolver consults the cache before the inner resolver and stores
// successful results. Cache failures are logged and otherwise ignored.
type CachedResolver struct {
	inner Resolver
	cache AddressCache
	ttl   time.Duration
	log   *zap.Logger
}

// NewCachedResolver wraps inner with cache.
func NewCachedResolver(inner Resolver, cache AddressCache, ttl time.Duration, log *zap.Logger) *CachedResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedResolver{inner: inner, cache: cache, ttl: ttl, log: log}
}

// Resolve implements Resolver.
func (r *CachedResolver) Resolve(ctx context.Context, address string) (domain.NamedLocation, error) {
	key := normalize(address)

	cached, err := r.cache.GetAddress(ctx, key)
	if err != nil {
		r.log.Warn("address cache read failed", zap.Error(err))
	} else if cached != nil {
		metrics.GeocodeCacheHitsTotal.Inc()
		return *cached, nil
	}

	loc, err := r.inner.Resolve(ctx, address)
	if err != nil {
		return domain.NamedLocation{}, err
	}

	if err := r.cache.SetAddress(ctx, key, loc, r.ttl); err != nil {
		r.log.Warn("address cache write failed", zap.Error(err))
	}
	return loc, nil
}

var _ Resolver = (*CachedResolver)(nil)
