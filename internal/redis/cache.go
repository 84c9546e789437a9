package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"commute/internal/domain"
)

// Cache TTL constants
const (
	AddressCacheTTL = 24 * time.Hour // Geocoding results rarely change
)

const addressCachePrefix = "cache:address:"

// AddressCacheStore caches geocoding results in Redis.
type AddressCacheStore struct {
	client *redis.Client
}

// NewAddressCacheStore creates a new AddressCacheStore.
func NewAddressCacheStore(client *redis.Client) *AddressCacheStore {
	return &AddressCacheStore{client: client}
}

// GetAddress retrieves a resolved address from cache.
func (s *AddressCacheStore) GetAddress(ctx context.Context, key string) (*domain.NamedLocation, error) {
	data, err := s.client.Get(ctx, addressCachePrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var loc domain.NamedLocation
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// SetAddress stores a resolved address in cache.
func (s *AddressCacheStore) SetAddress(ctx context.Context, key string, loc domain.NamedLocation, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = AddressCacheTTL
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, addressCachePrefix+key, data, ttl).Err()
}
