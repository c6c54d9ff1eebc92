package cache

import (
	"context"
	"sync"

	"github.com/tourdesk/backoffice/internal/domain/shared"
)

// InMemoryEntityLocker serializes work per key within one process.
// Suitable for single-instance deployments and tests.
type InMemoryEntityLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewInMemoryEntityLocker creates a new in-process locker
func NewInMemoryEntityLocker() *InMemoryEntityLocker {
	return &InMemoryEntityLocker{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done
func (l *InMemoryEntityLocker) Lock(ctx context.Context, key string) (func(), error) {
	kl := l.acquireRef(key)

	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			l.releaseRef(key, kl)
		})
	}, nil
}

func (l *InMemoryEntityLocker) acquireRef(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *InMemoryEntityLocker) releaseRef(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// size returns the number of keys currently tracked
func (l *InMemoryEntityLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

var _ shared.EntityLocker = (*InMemoryEntityLocker)(nil)
