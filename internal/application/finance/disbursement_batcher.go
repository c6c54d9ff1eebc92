package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"github.com/tourdesk/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DisbursementBatcher groups pending payment requests into weekly
// disbursement orders and keeps each order's amount equal to its member sum.
type DisbursementBatcher struct {
	orders     finance.DisbursementOrderRepository
	requests   finance.PaymentRequestRepository
	locker     shared.EntityLocker
	publisher  shared.EventPublisher
	metrics    *telemetry.SettlementMetrics
	logger     *zap.Logger
	clock      func() time.Time
	location   *time.Location
	cutoffHour int
}

// BatcherOption configures a DisbursementBatcher
type BatcherOption func(*DisbursementBatcher)

// WithBatcherClock overrides time.Now
func WithBatcherClock(clock func() time.Time) BatcherOption {
	return func(b *DisbursementBatcher) { b.clock = clock }
}

// WithSchedule sets the zone and cutoff hour used to pick the next Thursday
func WithSchedule(loc *time.Location, cutoffHour int) BatcherOption {
	return func(b *DisbursementBatcher) {
		if loc != nil {
			b.location = loc
		}
		b.cutoffHour = cutoffHour
	}
}

// WithBatcherLocker serializes membership edits per disbursement order
func WithBatcherLocker(locker shared.EntityLocker) BatcherOption {
	return func(b *DisbursementBatcher) { b.locker = locker }
}

// WithBatcherPublisher publishes the events raised by new orders
func WithBatcherPublisher(publisher shared.EventPublisher) BatcherOption {
	return func(b *DisbursementBatcher) { b.publisher = publisher }
}

// WithBatcherMetrics records batch counters
func WithBatcherMetrics(metrics *telemetry.SettlementMetrics) BatcherOption {
	return func(b *DisbursementBatcher) { b.metrics = metrics }
}

// NewDisbursementBatcher creates a new DisbursementBatcher
func NewDisbursementBatcher(
	orders finance.DisbursementOrderRepository,
	requests finance.PaymentRequestRepository,
	logger *zap.Logger,
	opts ...BatcherOption,
) *DisbursementBatcher {
	b := &DisbursementBatcher{
		orders:     orders,
		requests:   requests,
		logger:     logger,
		clock:      time.Now,
		location:   time.Local,
		cutoffHour: finance.DefaultDisbursementCutoffHour,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NextDisbursementDate is the Thursday new batches target right now
func (b *DisbursementBatcher) NextDisbursementDate() time.Time {
	return finance.NextThursdayWithCutoff(b.clock().In(b.location), b.cutoffHour)
}

// Get returns a disbursement order or a not-found error
func (b *DisbursementBatcher) Get(ctx context.Context, id uuid.UUID) (*finance.DisbursementOrder, error) {
	order, err := b.orders.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load disbursement order: %w", err)
	}
	if order == nil {
		return nil, finance.ErrDisbursementOrderNotFound(id)
	}
	return order, nil
}

// List returns disbursement orders matching filter and the total match count
func (b *DisbursementBatcher) List(ctx context.Context, filter finance.DisbursementOrderFilter) ([]finance.DisbursementOrder, int64, error) {
	orders, total, err := b.orders.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list disbursement orders: %w", err)
	}
	return orders, total, nil
}

// CreateWithRequests creates a pending order over the given pending requests and
// moves every member to processing.
func (b *DisbursementBatcher) CreateWithRequests(ctx context.Context, in CreateDisbursementInput) (*finance.DisbursementOrder, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "disbursement", "create_with_requests",
		telemetry.SpanAttrRequestCount, len(in.PaymentRequestIDs),
	)
	defer span.End()

	order, err := b.createWithRequests(ctx, in)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDisbursementOrderID, order.ID,
		telemetry.SpanAttrOrderNumber, order.OrderNumber,
	)
	return order, nil
}

func (b *DisbursementBatcher) createWithRequests(ctx context.Context, in CreateDisbursementInput) (*finance.DisbursementOrder, error) {
	if len(in.PaymentRequestIDs) == 0 {
		return nil, finance.ErrEmptyPaymentRequests()
	}

	date := b.NextDisbursementDate()
	if in.DisbursementDate != nil {
		date = *in.DisbursementDate
	}
	if err := finance.ValidateDisbursementDate(date); err != nil {
		return nil, err
	}

	var order *finance.DisbursementOrder
	err := withLock(ctx, b.locker, disbursementDateLockKey(date), func(ctx context.Context) error {
		var err error
		order, err = b.createOnDate(ctx, date, in.PaymentRequestIDs, in.Note)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// createOnDate numbers and stores a new order. The caller holds the date lock,
// so no other order can take the same letter in between.
func (b *DisbursementBatcher) createOnDate(ctx context.Context, date time.Time, requestIDs []uuid.UUID, note string) (*finance.DisbursementOrder, error) {
	if len(requestIDs) == 0 {
		return nil, finance.ErrEmptyPaymentRequests()
	}
	members, err := b.loadUnassigned(ctx, requestIDs)
	if err != nil {
		return nil, err
	}
	amount := finance.SumPaymentRequests(members)
	if amount.IsNegative() {
		return nil, finance.ErrNegativeDisbursementAmount(amount)
	}

	existing, err := b.orders.CountByNumberPrefix(ctx, finance.DisbursementOrderNumberPrefix(date))
	if err != nil {
		return nil, fmt.Errorf("failed to count disbursement orders: %w", err)
	}
	number, err := finance.DisbursementOrderNumber(date, int(existing))
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(members))
	for i := range members {
		ids[i] = members[i].ID
	}
	order, err := finance.NewDisbursementOrder(number, date, ids, amount, note)
	if err != nil {
		return nil, err
	}

	// Members point at the order as soon as they are assigned, so ledger edits
	// against it must wait until the amount has been settled.
	err = withLock(ctx, b.locker, disbursementLockKey(order.ID), func(ctx context.Context) error {
		if err := b.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create disbursement order: %w", err)
		}
		assigned, err := b.assign(ctx, order.ID, members)
		if err == nil {
			err = b.settleAmount(ctx, order)
		}
		if err != nil {
			b.unassign(ctx, assigned)
			if delErr := b.orders.Delete(context.WithoutCancel(ctx), order.ID); delErr != nil {
				b.logger.Error("Failed to remove disbursement order after member assignment failed",
					zap.String("disbursement_order_id", order.ID.String()),
					zap.Error(delErr),
				)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, b.publisher, b.logger, order.PullDomainEvents()...)
	b.metrics.RecordBatchCreated(ctx)
	b.metrics.RecordRequestsBatched(ctx, len(members))

	b.logger.Info("Disbursement order created",
		zap.String("disbursement_order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Time("disbursement_date", order.DisbursementDate),
		zap.Int("request_count", len(members)),
		zap.String("amount", order.Amount.String()),
	)
	return order, nil
}

// AddToCurrentWeekOrder appends to the pending order dated the next
// disbursement Thursday, creating that order when none exists.
func (b *DisbursementBatcher) AddToCurrentWeekOrder(ctx context.Context, ids []uuid.UUID, note string) (*finance.DisbursementOrder, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "disbursement", "add_to_current_week",
		telemetry.SpanAttrRequestCount, len(ids),
	)
	defer span.End()

	date := b.NextDisbursementDate()
	var order *finance.DisbursementOrder
	err := withLock(ctx, b.locker, disbursementDateLockKey(date), func(ctx context.Context) error {
		current, err := b.orders.FindPendingByDate(ctx, date)
		if err != nil {
			return fmt.Errorf("failed to look up current disbursement order: %w", err)
		}
		if current == nil {
			order, err = b.createOnDate(ctx, date, ids, note)
			return err
		}
		order, err = b.AddPaymentRequests(ctx, current.ID, ids)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return order, nil
}

// AddPaymentRequests adds pending requests to a pending order.
// Ids already in the order are ignored.
func (b *DisbursementBatcher) AddPaymentRequests(ctx context.Context, orderID uuid.UUID, ids []uuid.UUID) (*finance.DisbursementOrder, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "disbursement", "add_payment_requests",
		telemetry.SpanAttrDisbursementOrderID, orderID,
		telemetry.SpanAttrRequestCount, len(ids),
	)
	defer span.End()

	var order *finance.DisbursementOrder
	err := withLock(ctx, b.locker, disbursementLockKey(orderID), func(ctx context.Context) error {
		var err error
		order, err = b.addPaymentRequests(ctx, orderID, ids)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return order, nil
}

func (b *DisbursementBatcher) addPaymentRequests(ctx context.Context, orderID uuid.UUID, ids []uuid.UUID) (*finance.DisbursementOrder, error) {
	if len(ids) == 0 {
		return nil, finance.ErrEmptyPaymentRequests()
	}
	order, err := b.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.EnsurePending(); err != nil {
		return nil, err
	}

	fresh := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !order.Contains(id) {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return order, nil
	}
	members, err := b.loadUnassigned(ctx, fresh)
	if err != nil {
		return nil, err
	}

	previousIDs := append([]uuid.UUID(nil), order.PaymentRequestIDs...)
	previousAmount := order.Amount
	added, err := order.AddPaymentRequests(fresh)
	if err != nil {
		return nil, err
	}
	total, err := sumMembers(ctx, b.requests, order.PaymentRequestIDs, nil)
	if err != nil {
		return nil, err
	}
	if err := order.ApplyAmount(total); err != nil {
		return nil, err
	}
	if err := b.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save disbursement order: %w", err)
	}

	assigned, err := b.assign(ctx, order.ID, members)
	if err == nil {
		err = b.settleAmount(ctx, order)
	}
	if err != nil {
		b.unassign(ctx, assigned)
		order.PaymentRequestIDs = previousIDs
		order.Amount = previousAmount
		if saveErr := b.orders.Save(context.WithoutCancel(ctx), order); saveErr != nil {
			b.logger.Error("Failed to restore disbursement order membership",
				zap.String("disbursement_order_id", order.ID.String()),
				zap.Error(saveErr),
			)
		}
		return nil, err
	}

	b.metrics.RecordRequestsBatched(ctx, len(added))
	b.logger.Info("Payment requests added to disbursement order",
		zap.String("disbursement_order_id", order.ID.String()),
		zap.Int("added", len(added)),
		zap.String("amount", order.Amount.String()),
	)
	return order, nil
}

// RemovePaymentRequest drops a member from a pending order and returns it to pending.
// The last member cannot be removed; delete the order instead.
func (b *DisbursementBatcher) RemovePaymentRequest(ctx context.Context, orderID, requestID uuid.UUID) (*finance.DisbursementOrder, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "disbursement", "remove_payment_request",
		telemetry.SpanAttrDisbursementOrderID, orderID,
		telemetry.SpanAttrPaymentRequestID, requestID,
	)
	defer span.End()

	var order *finance.DisbursementOrder
	err := withLock(ctx, b.locker, disbursementLockKey(orderID), func(ctx context.Context) error {
		var err error
		order, err = b.removePaymentRequest(ctx, orderID, requestID)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return order, nil
}

func (b *DisbursementBatcher) removePaymentRequest(ctx context.Context, orderID, requestID uuid.UUID) (*finance.DisbursementOrder, error) {
	order, err := b.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.EnsurePending(); err != nil {
		return nil, err
	}
	if order.Contains(requestID) && len(order.PaymentRequestIDs) == 1 {
		return nil, shared.NewValidationError("LAST_PAYMENT_REQUEST",
			fmt.Sprintf("Payment request %s is the only member of %s; delete the disbursement order instead", requestID, order.OrderNumber))
	}
	if err := order.RemovePaymentRequest(requestID); err != nil {
		return nil, err
	}

	total, err := sumMembers(ctx, b.requests, order.PaymentRequestIDs, nil)
	if err != nil {
		return nil, err
	}
	if err := order.ApplyAmount(total); err != nil {
		return nil, err
	}

	if err := b.requests.UpdateStatus(ctx, requestID, finance.PaymentRequestStatusPending, nil); err != nil {
		return nil, fmt.Errorf("failed to return payment request to pending: %w", err)
	}
	if err := b.orders.Save(ctx, order); err != nil {
		restoreCtx := context.WithoutCancel(ctx)
		if reErr := b.requests.UpdateStatus(restoreCtx, requestID, finance.PaymentRequestStatusProcessing, &order.ID); reErr != nil {
			b.logger.Error("Failed to restore payment request membership",
				zap.String("payment_request_id", requestID.String()),
				zap.String("disbursement_order_id", order.ID.String()),
				zap.Error(reErr),
			)
		}
		return nil, fmt.Errorf("failed to save disbursement order: %w", err)
	}

	b.logger.Info("Payment request removed from disbursement order",
		zap.String("disbursement_order_id", order.ID.String()),
		zap.String("payment_request_id", requestID.String()),
		zap.String("amount", order.Amount.String()),
	)
	return order, nil
}

// UpdateDisbursementDate moves a pending order to another Thursday.
// The order number is kept.
func (b *DisbursementBatcher) UpdateDisbursementDate(ctx context.Context, orderID uuid.UUID, date time.Time) (*finance.DisbursementOrder, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "disbursement", "update_date",
		telemetry.SpanAttrDisbursementOrderID, orderID,
	)
	defer span.End()

	var order *finance.DisbursementOrder
	err := withLock(ctx, b.locker, disbursementLockKey(orderID), func(ctx context.Context) error {
		var err error
		order, err = b.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.Reschedule(date); err != nil {
			return err
		}
		if err := b.orders.Save(ctx, order); err != nil {
			return fmt.Errorf("failed to save disbursement order: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return order, nil
}

// DeleteOrder returns every member to pending and soft deletes a pending order
func (b *DisbursementBatcher) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "disbursement", "delete",
		telemetry.SpanAttrDisbursementOrderID, orderID,
	)
	defer span.End()

	err := withLock(ctx, b.locker, disbursementLockKey(orderID), func(ctx context.Context) error {
		order, err := b.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.EnsurePending(); err != nil {
			return err
		}

		released := make([]uuid.UUID, 0, len(order.PaymentRequestIDs))
		for _, id := range order.PaymentRequestIDs {
			if err := b.requests.UpdateStatus(ctx, id, finance.PaymentRequestStatusPending, nil); err != nil {
				if shared.IsNotFound(err) {
					continue
				}
				b.reassign(ctx, order.ID, released)
				return fmt.Errorf("failed to release payment request %s: %w", id, err)
			}
			released = append(released, id)
		}
		if err := b.orders.Delete(ctx, order.ID); err != nil {
			b.reassign(ctx, order.ID, released)
			return fmt.Errorf("failed to delete disbursement order: %w", err)
		}

		b.logger.Info("Disbursement order deleted",
			zap.String("disbursement_order_id", order.ID.String()),
			zap.String("order_number", order.OrderNumber),
			zap.Int("released", len(released)),
		)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

// RefreshAmount re-sums a pending order from its stored members and persists
// the result when it drifted.
func (b *DisbursementBatcher) RefreshAmount(ctx context.Context, orderID uuid.UUID) (*finance.DisbursementOrder, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "disbursement", "refresh_amount",
		telemetry.SpanAttrDisbursementOrderID, orderID,
	)
	defer span.End()

	start := b.clock()
	var order *finance.DisbursementOrder
	err := withLock(ctx, b.locker, disbursementLockKey(orderID), func(ctx context.Context) error {
		var err error
		order, err = b.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.IsConfirmed() {
			return nil
		}
		total, err := sumMembers(ctx, b.requests, order.PaymentRequestIDs, nil)
		if err != nil {
			return err
		}
		if total.Equal(order.Amount) {
			return nil
		}
		if err := order.ApplyAmount(total); err != nil {
			return err
		}
		if err := b.orders.Save(ctx, order); err != nil {
			return fmt.Errorf("failed to save disbursement order: %w", err)
		}
		return nil
	})
	b.metrics.RecordRecalculation(ctx, telemetry.RecalcBatchAmount, b.clock().Sub(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return order, nil
}

// settleAmount re-sums order once its members are assigned. An amount edit
// that landed between loading the members and assigning them is picked up
// here; later edits conflict on the request version or wait for the order lock.
func (b *DisbursementBatcher) settleAmount(ctx context.Context, order *finance.DisbursementOrder) error {
	total, err := sumMembers(ctx, b.requests, order.PaymentRequestIDs, nil)
	if err != nil {
		return err
	}
	if total.Equal(order.Amount) {
		return nil
	}
	if err := order.ApplyAmount(total); err != nil {
		return err
	}
	if err := b.orders.UpdateAmount(ctx, order.ID, total); err != nil {
		return fmt.Errorf("failed to update disbursement order amount: %w", err)
	}
	return nil
}

// loadUnassigned loads requests in the given order and checks that each is pending and unbatched
func (b *DisbursementBatcher) loadUnassigned(ctx context.Context, ids []uuid.UUID) ([]finance.PaymentRequest, error) {
	found, err := b.requests.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment requests: %w", err)
	}
	byID := make(map[uuid.UUID]finance.PaymentRequest, len(found))
	for i := range found {
		byID[found[i].ID] = found[i]
	}

	seen := make(map[uuid.UUID]struct{}, len(ids))
	members := make([]finance.PaymentRequest, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		pr, ok := byID[id]
		if !ok {
			return nil, finance.ErrPaymentRequestNotFound(id)
		}
		if !pr.IsPending() || pr.DisbursementOrderID != nil {
			return nil, finance.ErrPaymentRequestNotPending(&pr)
		}
		members = append(members, pr)
	}
	return members, nil
}

// assign moves members to processing under orderID and returns the ids written
func (b *DisbursementBatcher) assign(ctx context.Context, orderID uuid.UUID, members []finance.PaymentRequest) ([]uuid.UUID, error) {
	assigned := make([]uuid.UUID, 0, len(members))
	for i := range members {
		pr := members[i]
		if err := pr.AssignTo(orderID); err != nil {
			return assigned, err
		}
		if err := b.requests.UpdateStatus(ctx, pr.ID, pr.Status, pr.DisbursementOrderID); err != nil {
			return assigned, fmt.Errorf("failed to assign payment request %s: %w", pr.RequestNumber, err)
		}
		assigned = append(assigned, pr.ID)
	}
	return assigned, nil
}

// unassign returns requests to pending, logging failures
func (b *DisbursementBatcher) unassign(ctx context.Context, ids []uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range ids {
		if err := b.requests.UpdateStatus(ctx, id, finance.PaymentRequestStatusPending, nil); err != nil {
			b.logger.Error("Failed to return payment request to pending",
				zap.String("payment_request_id", id.String()),
				zap.Error(err),
			)
		}
	}
}

// reassign puts released requests back under orderID, logging failures
func (b *DisbursementBatcher) reassign(ctx context.Context, orderID uuid.UUID, ids []uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range ids {
		if err := b.requests.UpdateStatus(ctx, id, finance.PaymentRequestStatusProcessing, &orderID); err != nil {
			b.logger.Error("Failed to restore payment request membership",
				zap.String("payment_request_id", id.String()),
				zap.String("disbursement_order_id", orderID.String()),
				zap.Error(err),
			)
		}
	}
}
