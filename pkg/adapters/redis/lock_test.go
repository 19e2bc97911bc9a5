package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/diagram/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "client-1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)

	assert.True(t, mr.Exists("test:lock:client-1"), "Lock key should be set in Redis")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:client-1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	_, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:").WithRetryInterval(10 * time.Millisecond)
	locker2 := redis.NewLocker(client, "test:").WithRetryInterval(10 * time.Millisecond)
	ctx := context.Background()
	key := "shared-client"

	unlock1, err := locker1.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = locker2.Lock(ctxTimeout, key, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.WithinDuration(t, start.Add(200*time.Millisecond), time.Now(), 100*time.Millisecond, "Should block until timeout")

	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.NoError(t, unlock2(ctx))
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldOwner(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:").WithRetryInterval(10 * time.Millisecond)
	ctx := context.Background()

	stale, err := locker.Lock(ctx, "c1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := locker.Lock(ctx, "c1", 5*time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, stale(ctx), redis.ErrLockNotHeld)
	assert.True(t, mr.Exists("test:lock:c1"), "the new owner's lock must survive")
	assert.NoError(t, fresh(ctx))
}
