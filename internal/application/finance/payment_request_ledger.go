package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"github.com/tourdesk/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PaymentRequestLedger owns the payment request records and keeps the owning
// batch total in step with amount edits.
type PaymentRequestLedger struct {
	requests finance.PaymentRequestRepository
	orders   finance.DisbursementOrderRepository
	locker   shared.EntityLocker
	logger   *zap.Logger
	clock    func() time.Time
}

// LedgerOption configures a PaymentRequestLedger
type LedgerOption func(*PaymentRequestLedger)

// WithLedgerLocker serializes batched amount edits with the batcher and the
// confirmation workflow. It must be the locker those services use.
func WithLedgerLocker(locker shared.EntityLocker) LedgerOption {
	return func(l *PaymentRequestLedger) { l.locker = locker }
}

// NewPaymentRequestLedger creates a new PaymentRequestLedger
func NewPaymentRequestLedger(
	requests finance.PaymentRequestRepository,
	orders finance.DisbursementOrderRepository,
	logger *zap.Logger,
	opts ...LedgerOption,
) *PaymentRequestLedger {
	l := &PaymentRequestLedger{
		requests: requests,
		orders:   orders,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create records a new pending payment request
func (l *PaymentRequestLedger) Create(ctx context.Context, in CreatePaymentRequestInput) (*finance.PaymentRequest, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_request", "create",
		telemetry.SpanAttrOrderID, in.OrderID,
		telemetry.SpanAttrAmount, in.Amount.String(),
	)
	defer span.End()

	pr, err := finance.NewPaymentRequest(in.RequestNumber, in.OrderID, in.Amount, in.SupplierType, in.SupplierName, in.Notes)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := l.requests.Save(ctx, pr); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save payment request: %w", err)
	}

	l.logger.Info("Payment request created",
		zap.String("payment_request_id", pr.ID.String()),
		zap.String("request_number", pr.RequestNumber),
		zap.String("amount", pr.Amount.String()),
	)
	return pr, nil
}

// Get returns a payment request or a not-found error
func (l *PaymentRequestLedger) Get(ctx context.Context, id uuid.UUID) (*finance.PaymentRequest, error) {
	pr, err := l.requests.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment request: %w", err)
	}
	if pr == nil {
		return nil, finance.ErrPaymentRequestNotFound(id)
	}
	return pr, nil
}

// ListByOrder lists the payment requests of one booking order
func (l *PaymentRequestLedger) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]finance.PaymentRequest, error) {
	requests, err := l.requests.FindByOrderIDs(ctx, []uuid.UUID{orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to list payment requests: %w", err)
	}
	return requests, nil
}

// UpdateAmount changes a request's amount. When the request sits in a pending
// batch, the batch total is re-summed under the batch lock; an edit that would
// make it negative is rejected.
func (l *PaymentRequestLedger) UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*finance.PaymentRequest, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_request", "update_amount",
		telemetry.SpanAttrPaymentRequestID, id,
		telemetry.SpanAttrAmount, amount.String(),
	)
	defer span.End()

	pr, err := l.Get(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if pr.DisbursementOrderID == nil {
		// A concurrent assignment bumps the version, so the save below fails
		// rather than leaving the new batch summed over the old amount.
		err = l.saveAmount(ctx, pr, amount)
	} else {
		batchID := *pr.DisbursementOrderID
		err = withLock(ctx, l.locker, disbursementLockKey(batchID), func(ctx context.Context) error {
			var err error
			pr, err = l.updateBatchedAmount(ctx, id, batchID, amount)
			return err
		})
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return pr, nil
}

// updateBatchedAmount runs with the batch lock held. Request and batch are
// reloaded so edits made before the lock was taken are not overwritten.
func (l *PaymentRequestLedger) updateBatchedAmount(ctx context.Context, id, batchID uuid.UUID, amount decimal.Decimal) (*finance.PaymentRequest, error) {
	pr, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pr.DisbursementOrderID == nil || *pr.DisbursementOrderID != batchID {
		return nil, shared.ErrConcurrencyConflict
	}

	batch, err := l.orders.FindByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load disbursement order: %w", err)
	}
	if batch == nil {
		return nil, finance.ErrDisbursementOrderNotFound(batchID)
	}
	if err := batch.EnsurePending(); err != nil {
		return nil, err
	}

	total, err := sumMembers(ctx, l.requests, batch.PaymentRequestIDs, map[uuid.UUID]decimal.Decimal{pr.ID: amount})
	if err != nil {
		return nil, err
	}
	if err := batch.ApplyAmount(total); err != nil {
		return nil, err
	}

	if err := l.saveAmount(ctx, pr, amount); err != nil {
		return nil, err
	}
	if err := l.orders.UpdateAmount(ctx, batch.ID, total); err != nil {
		return nil, fmt.Errorf("failed to update disbursement order amount: %w", err)
	}
	l.logger.Info("Disbursement order amount re-summed after request edit",
		zap.String("disbursement_order_id", batch.ID.String()),
		zap.String("amount", total.String()),
	)
	return pr, nil
}

func (l *PaymentRequestLedger) saveAmount(ctx context.Context, pr *finance.PaymentRequest, amount decimal.Decimal) error {
	if err := pr.UpdateAmount(amount); err != nil {
		return err
	}
	if err := l.requests.SaveWithLock(ctx, pr); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
		return fmt.Errorf("failed to save payment request: %w", err)
	}
	return nil
}

// Delete soft deletes a pending, unassigned payment request
func (l *PaymentRequestLedger) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_request", "delete",
		telemetry.SpanAttrPaymentRequestID, id,
	)
	defer span.End()

	pr, err := l.Get(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := pr.SoftDelete(l.clock()); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := l.requests.SaveWithLock(ctx, pr); err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
		return fmt.Errorf("failed to delete payment request: %w", err)
	}
	return nil
}
