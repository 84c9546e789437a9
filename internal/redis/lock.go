package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireUserTripLock marks the user as having a live trip attempt.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireUserTripLock(ctx context.Context, userID, sessionID string, ttl time.Duration) (bool, error) {
	key := userTripLockKey(userID)

	ok, err := s.client.SetNX(ctx, key, sessionID, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// releaseIfHolder deletes KEYS[1] only while it still holds ARGV[1].
var releaseIfHolder = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReleaseUserTripLock releases the lock if it is still held by sessionID.
// The check and the delete run as one script, so a lock that expired and was
// taken by another session is left alone.
func (s *LockStore) ReleaseUserTripLock(ctx context.Context, userID, sessionID string) error {
	key := userTripLockKey(userID)
	return releaseIfHolder.Run(ctx, s.client, []string{key}, sessionID).Err()
}

func userTripLockKey(userID string) string {
	return fmt.Sprintf("lock:user-trip:%s", userID)
}
