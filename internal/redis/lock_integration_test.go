//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis testcontainer and returns a connected client.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestLockStore_ReleaseOnlyByHolder(t *testing.T) {
	client := setupRedis(t)
	store := NewLockStore(client)
	ctx := context.Background()

	ok, err := store.AcquireUserTripLock(ctx, "user-1", "session-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.AcquireUserTripLock(ctx, "user-1", "session-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Another session cannot release it.
	require.NoError(t, store.ReleaseUserTripLock(ctx, "user-1", "session-2"))
	holder, err := client.Get(ctx, userTripLockKey("user-1")).Result()
	require.NoError(t, err)
	assert.Equal(t, "session-1", holder)

	require.NoError(t, store.ReleaseUserTripLock(ctx, "user-1", "session-1"))
	assert.Equal(t, int64(0), client.Exists(ctx, userTripLockKey("user-1")).Val())

	// Releasing an absent lock is a no-op.
	require.NoError(t, store.ReleaseUserTripLock(ctx, "user-1", "session-1"))
}

func TestLockStore_ExpiredLockTakenOverIsKept(t *testing.T) {
	client := setupRedis(t)
	store := NewLockStore(client)
	ctx := context.Background()

	ok, err := store.AcquireUserTripLock(ctx, "user-1", "session-1", 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		ok, err := store.AcquireUserTripLock(ctx, "user-1", "session-2", time.Minute)
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)

	// The first session finishing late must not drop the new holder's lock.
	require.NoError(t, store.ReleaseUserTripLock(ctx, "user-1", "session-1"))
	holder, err := client.Get(ctx, userTripLockKey("user-1")).Result()
	require.NoError(t, err)
	assert.Equal(t, "session-2", holder)
}
