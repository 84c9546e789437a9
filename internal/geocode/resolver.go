package geocode

import (
	"context"
	"errors"

	"commute/internal/domain"
)

// ErrResolutionFailed is returned when an address cannot be geocoded.
var ErrResolutionFailed = errors.New("address resolution failed")

// Resolver maps free-text addresses to coordinates.
type Resolver interface {
	Resolve(ctx context.Context, address string) (domain.NamedLocation, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, address string) (domain.NamedLocation, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, address string) (domain.NamedLocation, error) {
	return f(ctx, address)
}
