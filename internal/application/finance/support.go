package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"go.uber.org/zap"
)

// withLock runs fn while holding key. A nil locker runs fn unguarded.
func withLock(ctx context.Context, locker shared.EntityLocker, key string, fn func(ctx context.Context) error) error {
	if locker == nil {
		return fn(ctx)
	}
	unlock, err := locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	defer unlock()
	return fn(ctx)
}

// publishEvents hands events to the bus. Handlers only refresh projections,
// so a publish failure is logged and does not fail the write that raised it.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, events ...shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Warn("Failed to publish domain events",
			zap.Int("count", len(events)),
			zap.String("first_event_type", events[0].EventType()),
			zap.Error(err),
		)
	}
}

func orderLockKey(id fmt.Stringer) string        { return "order:" + id.String() }
func tourLockKey(id fmt.Stringer) string         { return "tour:" + id.String() }
func disbursementLockKey(id fmt.Stringer) string { return "disbursement:" + id.String() }

// disbursementDateLockKey guards order numbering for one disbursement day
func disbursementDateLockKey(date time.Time) string {
	return "disbursement-date:" + finance.CalendarDate(date).Format(time.DateOnly)
}
