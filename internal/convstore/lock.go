package convstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Two concurrent messages from the same user would otherwise race on
// GetOrCreate/Save with last-write-wins semantics. The locker serializes
// message-processing cycles per user identifier.

// DefaultLockTTL bounds how long a crashed worker can hold a user lock.
const DefaultLockTTL = 10 * time.Second

// ErrLockHeld is returned when the per-user lock could not be acquired within
// the caller's context deadline.
var ErrLockHeld = errors.New("user conversation lock held")

// UnlockFunc releases an acquired lock.
type UnlockFunc func(ctx context.Context) error

// UserLocker serializes message processing per user identifier.
type UserLocker interface {
	// Acquire takes the lock for a user, waiting until the context expires.
	Acquire(ctx context.Context, userID string, ttl time.Duration) (UnlockFunc, error)
}

// RedisLocker implements UserLocker with Redis SET NX PX and a value-checked
// release, so an expired lock is never released by a stale holder.
type RedisLocker struct {
	client *backend.Client
	prefix string
}

// NewRedisLocker creates a per-user locker on an existing Redis client.
func NewRedisLocker(client *backend.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisLocker{client: client, prefix: prefix}
}

// unlockScript deletes the lock key only when the stored value matches the
// holder's token.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Acquire takes the lock for a user, polling with a short backoff until the
// context expires.
func (l *RedisLocker) Acquire(ctx context.Context, userID string, ttl time.Duration) (UnlockFunc, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	lockKey := l.prefix + "lock:" + userID
	token := fmt.Sprintf("%d", time.Now().UnixNano())

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			slog.Error("RedisLocker acquire failed", "error", err, "userID", userID)
			return nil, fmt.Errorf("failed to acquire lock for %s: %w", userID, err)
		}
		if ok {
			slog.Debug("RedisLocker acquired", "userID", userID, "ttl", ttl)
			return func(ctx context.Context) error {
				return l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			slog.Debug("RedisLocker acquire timed out", "userID", userID)
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, userID)
		case <-ticker.C:
		}
	}
}

// NopLocker implements UserLocker without any locking, preserving the
// last-write-wins behavior for deployments without a lock backend.
type NopLocker struct{}

// Acquire returns immediately with a no-op release.
func (NopLocker) Acquire(ctx context.Context, userID string, ttl time.Duration) (UnlockFunc, error) {
	return func(context.Context) error { return nil }, nil
}
