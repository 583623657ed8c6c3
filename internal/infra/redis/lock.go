package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var (
	// ErrLockBusy is returned when another holder keeps the lock through every try.
	ErrLockBusy = errors.New("lock held by another process")
	// ErrLockLost is returned by Unlock when the lock expired or changed hands.
	ErrLockLost = errors.New("lock no longer held")
)

const lockPrefix = "imagegen:lock:"

// RedisLocker is a single-instance SET NX lock. Tokens make Unlock safe
// against releasing a lock that expired and was taken by someone else.
type RedisLocker struct {
	cli        *redis.Client
	tries      int
	retryDelay time.Duration
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, tries: 20, retryDelay: 100 * time.Millisecond}
}

// TryLock polls for the lock. Redis errors end the attempt immediately.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < l.tries; i++ {
		ok, err := l.cli.SetNX(ctx, lockPrefix+key, token, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
	return "", ErrLockBusy
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	n, err := unlockScript.Run(ctx, l.cli, []string{lockPrefix + key}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}
