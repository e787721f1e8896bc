package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLocker(client, ttl), mr
}

func TestLocker_AcquireRelease(t *testing.T) {
	locker, _ := newTestLocker(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, locker.Acquire(ctx, "TXN_A", "holder-1"))

	err := locker.Acquire(ctx, "TXN_A", "holder-2")
	assert.ErrorIs(t, err, ErrLockHeld)

	// a different reference is an independent lease
	require.NoError(t, locker.Acquire(ctx, "TXN_B", "holder-2"))

	require.NoError(t, locker.Release(ctx, "TXN_A", "holder-1"))
	assert.NoError(t, locker.Acquire(ctx, "TXN_A", "holder-2"))
}

func TestLocker_ReleaseNeedsMatchingToken(t *testing.T) {
	locker, _ := newTestLocker(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, locker.Acquire(ctx, "TXN_A", "holder-1"))

	// wrong token must not free the lease
	require.NoError(t, locker.Release(ctx, "TXN_A", "holder-2"))
	assert.ErrorIs(t, locker.Acquire(ctx, "TXN_A", "holder-2"), ErrLockHeld)
}

func TestLocker_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)
	ctx := context.Background()

	require.NoError(t, locker.Acquire(ctx, "TXN_A", "holder-1"))

	// let the lease expire and a new holder take it
	mr.FastForward(2 * time.Second)
	require.NoError(t, locker.Acquire(ctx, "TXN_A", "holder-2"))

	// the crashed holder's deferred release must not evict holder-2
	require.NoError(t, locker.Release(ctx, "TXN_A", "holder-1"))
	assert.ErrorIs(t, locker.Acquire(ctx, "TXN_A", "holder-3"), ErrLockHeld)
}

func TestNewLocker_DefaultTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	locker := NewLocker(client, 0)
	require.NoError(t, locker.Acquire(context.Background(), "TXN_A", "holder-1"))
	ttl := mr.TTL(lockKeyPrefix + "TXN_A")
	assert.Equal(t, 30*time.Second, ttl)
}
