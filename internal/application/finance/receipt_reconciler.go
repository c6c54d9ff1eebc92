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

// ReceiptReconciler recomputes an order's cached payment fields from its
// confirmed receipts. It never adjusts totals incrementally.
type ReceiptReconciler struct {
	orders   finance.OrderRepository
	receipts finance.ReceiptRepository
	locker   shared.EntityLocker
	metrics  *telemetry.SettlementMetrics
	logger   *zap.Logger
}

// NewReceiptReconciler creates a new ReceiptReconciler. A nil locker leaves
// concurrent recalculations of the same order unserialized.
func NewReceiptReconciler(
	orders finance.OrderRepository,
	receipts finance.ReceiptRepository,
	locker shared.EntityLocker,
	metrics *telemetry.SettlementMetrics,
	logger *zap.Logger,
) *ReceiptReconciler {
	return &ReceiptReconciler{
		orders:   orders,
		receipts: receipts,
		locker:   locker,
		metrics:  metrics,
		logger:   logger,
	}
}

// RecalculateOrderPayment derives paid, remaining and payment status from the
// order's confirmed, non-deleted receipts and writes them in one update.
// Calling it again without an intervening receipt write yields the same result.
func (r *ReceiptReconciler) RecalculateOrderPayment(ctx context.Context, orderID uuid.UUID) (*finance.PaymentProjection, error) {
	var projection *finance.PaymentProjection
	err := r.withOrderLock(ctx, orderID, func(ctx context.Context) error {
		var err error
		projection, err = r.recalculateLocked(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return projection, nil
}

// withOrderLock runs fn holding the order's lock. Receipt writes and the
// recalculation that follows them share it.
func (r *ReceiptReconciler) withOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error {
	return withLock(ctx, r.locker, orderLockKey(orderID), fn)
}

// recalculateLocked expects the caller to hold the order lock
func (r *ReceiptReconciler) recalculateLocked(ctx context.Context, orderID uuid.UUID) (*finance.PaymentProjection, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciler", "recalculate_order_payment",
		telemetry.SpanAttrOrderID, orderID,
	)
	defer span.End()

	start := time.Now()
	projection, err := r.project(ctx, orderID)
	r.metrics.RecordRecalculation(ctx, telemetry.RecalcOrderPayment, time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrAmount, projection.PaidAmount.String())
	if projection.Overpaid() {
		r.logger.Warn("Order overpaid",
			zap.String("order_id", orderID.String()),
			zap.String("total_amount", projection.TotalAmount.String()),
			zap.String("paid_amount", projection.PaidAmount.String()),
		)
	}
	r.logger.Debug("Order payment recalculated",
		zap.String("order_id", orderID.String()),
		zap.String("paid_amount", projection.PaidAmount.String()),
		zap.String("payment_status", projection.PaymentStatus.String()),
	)
	return projection, nil
}

func (r *ReceiptReconciler) project(ctx context.Context, orderID uuid.UUID) (*finance.PaymentProjection, error) {
	order, err := r.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, finance.ErrOrderNotFound(orderID)
	}
	receipts, err := r.receipts.FindConfirmedByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipts: %w", err)
	}

	projection := finance.ProjectOrderPayment(order.ID, order.TotalAmount, receipts)
	if err := r.orders.UpdatePaymentFields(ctx, projection); err != nil {
		return nil, fmt.Errorf("failed to update order payment fields: %w", err)
	}
	return &projection, nil
}
