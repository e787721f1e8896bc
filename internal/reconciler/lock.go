package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates another delivery for the same reference is being
// applied right now. The caller should have the sender retry.
var ErrLockHeld = errors.New("reference is being reconciled by another delivery")

const lockKeyPrefix = "reconcile:lock:"

// Locker serializes reconciliation per transaction reference with a redis
// SetNX lease. The TTL bounds how long a crashed holder can block a
// reference; releases only delete a lease still carrying the holder's
// token.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire takes the per-reference lease. token must be unique per caller.
func (l *Locker) Acquire(ctx context.Context, reference, token string) error {
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+reference, token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// releaseScript deletes the lease only when the stored token matches, so
// an expired-and-reacquired lease is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release returns the lease if this holder still owns it
func (l *Locker) Release(ctx context.Context, reference, token string) error {
	return releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + reference}, token).Err()
}
