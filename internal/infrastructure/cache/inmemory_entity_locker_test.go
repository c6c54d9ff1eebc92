package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEntityLocker_SerializesSameKey(t *testing.T) {
	locker := NewInMemoryEntityLocker()
	ctx := context.Background()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "order:1")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, locker.size())
}

func TestInMemoryEntityLocker_IndependentKeys(t *testing.T) {
	locker := NewInMemoryEntityLocker()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "order:a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := locker.Lock(ctx, "order:b")
	require.NoError(t, err)
	unlockB()
}

func TestInMemoryEntityLocker_ContextCancelled(t *testing.T) {
	locker := NewInMemoryEntityLocker()

	unlock, err := locker.Lock(context.Background(), "order:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "order:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, locker.size())

	unlock, err = locker.Lock(context.Background(), "order:1")
	require.NoError(t, err)
	unlock()
}
