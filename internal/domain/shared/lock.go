package shared

import "context"

// EntityLocker serializes read-then-write sequences on a single entity.
// Locks are short-lived and scoped to one call; unlock must always be invoked.
type EntityLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
