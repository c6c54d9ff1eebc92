package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourdesk/backoffice/internal/infrastructure/config"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisEntityLocker_LockUnlock(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisEntityLocker(client, 5*time.Second, zap.NewNop())

	unlock, err := locker.Lock(context.Background(), "order:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:order:1"))
	assert.Equal(t, 5*time.Second, mr.TTL("lock:order:1"))

	unlock()
	assert.False(t, mr.Exists("lock:order:1"))
}

func TestRedisEntityLocker_Contention(t *testing.T) {
	_, client := newTestRedis(t)
	locker := NewRedisEntityLocker(client, 5*time.Second, zap.NewNop(),
		WithRetryInterval(5*time.Millisecond),
		WithMaxWait(50*time.Millisecond),
	)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "order:1")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "order:1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	acquired := make(chan struct{})
	go func() {
		second, err := locker.Lock(ctx, "order:1")
		if err == nil {
			second()
		}
		close(acquired)
	}()
	time.Sleep(10 * time.Millisecond)
	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock was never acquired")
	}
}

func TestRedisEntityLocker_DoesNotReleaseForeignLock(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisEntityLocker(client, time.Second, zap.NewNop(), WithKeyPrefix("settle:"))

	unlock, err := locker.Lock(context.Background(), "tour:9")
	require.NoError(t, err)

	// Lock expired and was taken by another holder
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("settle:tour:9", "someone-else"))

	unlock()
	val, err := mr.Get("settle:tour:9")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestRedisEntityLocker_ContextCancelled(t *testing.T) {
	_, client := newTestRedis(t)
	locker := NewRedisEntityLocker(client, 5*time.Second, zap.NewNop(), WithRetryInterval(5*time.Millisecond))

	unlock, err := locker.Lock(context.Background(), "order:1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "order:1")
	assert.Error(t, err)
}

func TestNewEntityLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled uses in-memory", func(t *testing.T) {
		locker, closeFn := NewEntityLocker(ctx, config.RedisConfig{Enabled: false}, time.Second, zap.NewNop())
		assert.IsType(t, &InMemoryEntityLocker{}, locker)
		assert.NoError(t, closeFn())
	})

	t.Run("enabled uses redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.RedisConfig{Enabled: true, Host: mr.Host(), Port: mustPort(t, mr)}
		locker, closeFn := NewEntityLocker(ctx, cfg, time.Second, zap.NewNop())
		assert.IsType(t, &RedisEntityLocker{}, locker)
		assert.NoError(t, closeFn())
	})

	t.Run("unreachable falls back", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
		locker, closeFn := NewEntityLocker(ctx, cfg, time.Second, zap.NewNop())
		assert.IsType(t, &InMemoryEntityLocker{}, locker)
		assert.NoError(t, closeFn())
	})
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	var port int
	_, err := fmt.Sscanf(mr.Port(), "%d", &port)
	require.NoError(t, err)
	return port
}
