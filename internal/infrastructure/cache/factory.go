package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"github.com/tourdesk/backoffice/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewEntityLocker returns a Redis-backed locker when Redis is enabled and
// reachable, and an in-process locker otherwise. The returned close function
// releases the Redis client, if any.
func NewEntityLocker(ctx context.Context, cfg config.RedisConfig, ttl time.Duration, logger *zap.Logger) (shared.EntityLocker, func() error) {
	noop := func() error { return nil }
	if !cfg.Enabled {
		logger.Info("Redis disabled, using in-memory entity locks")
		return NewInMemoryEntityLocker(), noop
	}

	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory entity locks. "+
			"Recalculations are only serialized within this instance.",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		return NewInMemoryEntityLocker(), noop
	}

	logger.Info("Using Redis entity locks", zap.String("addr", cfg.Addr()), zap.Duration("ttl", ttl))
	return NewRedisEntityLocker(client, ttl, logger), client.Close
}
