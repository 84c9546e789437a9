package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"commute/internal/domain"
)

const (
	tripPositionKey    = "trips:positions"
	tripPositionMetaFn = "trips:position:%s"
)

// PositionStore keeps the last known position of each live trip.
type PositionStore struct {
	client *redis.Client
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(client *redis.Client) *PositionStore {
	return &PositionStore{client: client}
}

// SavePosition stores the fix using GEOADD plus a hash for its metadata.
func (s *PositionStore) SavePosition(ctx context.Context, sessionID string, fix domain.Fix) error {
	pipe := s.client.TxPipeline()
	pipe.GeoAdd(ctx, tripPositionKey, &redis.GeoLocation{
		Name:      sessionID,
		Longitude: fix.Lng,
		Latitude:  fix.Lat,
	})
	pipe.HSet(ctx, fmt.Sprintf(tripPositionMetaFn, sessionID),
		"ts", fix.Timestamp.UnixMilli(),
		"accuracy", fix.AccuracyMeters,
	)
	_, err := pipe.Exec(ctx)
	return err
}

// LastPosition returns the stored fix, or nil if none is stored.
func (s *PositionStore) LastPosition(ctx context.Context, sessionID string) (*domain.Fix, error) {
	positions, err := s.client.GeoPos(ctx, tripPositionKey, sessionID).Result()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return nil, nil
	}

	fix := &domain.Fix{
		Coordinate: domain.Coordinate{Lat: positions[0].Latitude, Lng: positions[0].Longitude},
	}

	meta, err := s.client.HGetAll(ctx, fmt.Sprintf(tripPositionMetaFn, sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if ms, err := strconv.ParseInt(meta["ts"], 10, 64); err == nil {
		fix.Timestamp = time.UnixMilli(ms)
	}
	if acc, err := strconv.ParseFloat(meta["accuracy"], 64); err == nil {
		fix.AccuracyMeters = acc
	}
	return fix, nil
}

// RemovePosition deletes the stored position of a session.
func (s *PositionStore) RemovePosition(ctx context.Context, sessionID string) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, tripPositionKey, sessionID)
	pipe.Del(ctx, fmt.Sprintf(tripPositionMetaFn, sessionID))
	_, err := pipe.Exec(ctx)
	return err
}
