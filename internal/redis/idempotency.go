package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idempotency:"

// IdempotencyStore keeps recorded HTTP responses keyed by Idempotency-Key.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// GetResponse returns the stored response, or nil if none was recorded.
func (s *IdempotencyStore) GetResponse(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SaveResponse records a response. An existing record is kept.
func (s *IdempotencyStore) SaveResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.client.SetNX(ctx, idempotencyPrefix+key, data, ttl).Err()
}
