package redis

import (
	"context"
	"time"

	"commute/internal/domain"
	"commute/internal/geocode"
)

// SessionStoreInterface defines typed access to per-user client state.
type SessionStoreInterface interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	SaveProfile(ctx context.Context, profile *domain.UserProfile) error
	ListFavorites(ctx context.Context, userID string) ([]domain.FavoriteRoute, error)
	AddFavorite(ctx context.Context, userID string, fav domain.FavoriteRoute) error
	RemoveFavorite(ctx context.Context, userID, favoriteID string) (bool, error)
	GetDraft(ctx context.Context, userID string) (*domain.TripDraft, error)
	SaveDraft(ctx context.Context, userID string, draft *domain.TripDraft) error
	ClearDraft(ctx context.Context, userID string) error
}

// PositionStoreInterface defines the interface for trip position operations.
type PositionStoreInterface interface {
	SavePosition(ctx context.Context, sessionID string, fix domain.Fix) error
	LastPosition(ctx context.Context, sessionID string) (*domain.Fix, error)
	RemovePosition(ctx context.Context, sessionID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireUserTripLock(ctx context.Context, userID, sessionID string, ttl time.Duration) (bool, error)
	ReleaseUserTripLock(ctx context.Context, userID, sessionID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ SessionStoreInterface  = (*SessionStore)(nil)
	_ PositionStoreInterface = (*PositionStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ geocode.AddressCache   = (*AddressCacheStore)(nil)
)
