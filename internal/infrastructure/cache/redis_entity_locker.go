package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock re-acquired by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockTimeout is returned when a lock could not be acquired within the wait budget
var ErrLockTimeout = errors.New("timed out waiting for entity lock")

// RedisEntityLocker implements shared.EntityLocker with SET NX PX locks shared
// across every backend instance.
type RedisEntityLocker struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	retry     time.Duration
	maxWait   time.Duration
	logger    *zap.Logger
}

// RedisLockerOption configures a RedisEntityLocker
type RedisLockerOption func(*RedisEntityLocker)

// WithRetryInterval sets how long to sleep between acquisition attempts
func WithRetryInterval(d time.Duration) RedisLockerOption {
	return func(l *RedisEntityLocker) { l.retry = d }
}

// WithMaxWait bounds the total time spent acquiring a lock
func WithMaxWait(d time.Duration) RedisLockerOption {
	return func(l *RedisEntityLocker) { l.maxWait = d }
}

// WithKeyPrefix overrides the default "lock:" key prefix
func WithKeyPrefix(prefix string) RedisLockerOption {
	return func(l *RedisEntityLocker) { l.keyPrefix = prefix }
}

// NewRedisEntityLocker creates a locker on an existing client. ttl bounds how
// long a crashed holder can block others.
func NewRedisEntityLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger, opts ...RedisLockerOption) *RedisEntityLocker {
	l := &RedisEntityLocker{
		client:    client,
		keyPrefix: "lock:",
		ttl:       ttl,
		retry:     25 * time.Millisecond,
		maxWait:   ttl,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock blocks until key is acquired, ctx is done or the wait budget is spent
func (l *RedisEntityLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.keyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(redisKey, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisEntityLocker) release(redisKey, token string) {
	// Released on a fresh context; the caller's may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		l.logger.Warn("Failed to release entity lock; it will expire",
			zap.String("key", redisKey),
			zap.Duration("ttl", l.ttl),
			zap.Error(err),
		)
	}
}

var _ shared.EntityLocker = (*RedisEntityLocker)(nil)
