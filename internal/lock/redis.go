package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces lock keys in Redis.
const KeyPrefix = "ticket-router:lock:"

// releaseScript deletes the key only while it still holds our token.
// KEYS[1] = lock key
// ARGV[1] = owner token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions tunes the Redis locker.
type RedisOptions struct {
	// TTL bounds how long a crashed holder can block other instances.
	TTL time.Duration
	// RetryInterval is the polling period while the lock is held elsewhere.
	RetryInterval time.Duration
}

type redisLocker struct {
	client redis.UniversalClient
	opts   RedisOptions
}

// NewRedisLocker returns a Locker that uses SET NX PX on client.
func NewRedisLocker(client redis.UniversalClient, opts RedisOptions) Locker {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 25 * time.Millisecond
	}
	return &redisLocker{client: client, opts: opts}
}

func (l *redisLocker) Lock(ctx context.Context, name string) (Lock, error) {
	key := KeyPrefix + name
	token := uuid.NewString()

	ticker := time.NewTicker(l.opts.RetryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("lock %s: %w: %w", name, ErrLockNotAcquired, ctxErr)
			}
			return nil, fmt.Errorf("lock %s: %w", name, err)
		}
		if ok {
			return &redisLock{client: l.client, key: key, token: token}, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w: %w", name, ErrLockNotAcquired, ctx.Err())
		}
	}
}

type redisLock struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLock) Unlock(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("unlock %s: %w", l.key, err)
	}
	return nil
}
