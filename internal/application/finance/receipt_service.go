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

// ReceiptService owns the receipt mutation paths. Every mutation ends with an
// order payment recalculation, and both run under the reconciler's order lock.
type ReceiptService struct {
	receipts   finance.ReceiptRepository
	orders     finance.OrderRepository
	reconciler *ReceiptReconciler
	publisher  shared.EventPublisher
	logger     *zap.Logger
	clock      func() time.Time
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(
	receipts finance.ReceiptRepository,
	orders finance.OrderRepository,
	reconciler *ReceiptReconciler,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *ReceiptService {
	return &ReceiptService{
		receipts:   receipts,
		orders:     orders,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     logger,
		clock:      time.Now,
	}
}

// Get returns a receipt or a not-found error
func (s *ReceiptService) Get(ctx context.Context, id uuid.UUID) (*finance.Receipt, error) {
	receipt, err := s.receipts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt: %w", err)
	}
	if receipt == nil {
		return nil, finance.ErrReceiptNotFound(id)
	}
	return receipt, nil
}

// ListByOrder lists every non-deleted receipt of an order
func (s *ReceiptService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]finance.Receipt, error) {
	receipts, err := s.receipts.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	return receipts, nil
}

// CreateReceipt records a pending receipt against an order.
// The tour is taken from the order.
func (s *ReceiptService) CreateReceipt(ctx context.Context, in CreateReceiptInput) (*ReceiptResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receipt", "create",
		telemetry.SpanAttrOrderID, in.OrderID,
		telemetry.SpanAttrAmount, in.Amount.String(),
	)
	defer span.End()

	order, err := s.orders.FindByID(ctx, in.OrderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		err := finance.ErrOrderNotFound(in.OrderID)
		telemetry.RecordError(span, err)
		return nil, err
	}

	receipt, err := finance.NewReceipt(in.ReceiptNumber, order.ID, order.TourID, in.Amount, in.PaymentMethod, in.ReceiptDate, in.Remark)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result, err := s.persist(ctx, receipt)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Receipt created",
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("receipt_number", receipt.ReceiptNumber),
		zap.String("order_id", receipt.OrderID.String()),
	)
	return result, nil
}

// ConfirmReceipt confirms a pending receipt
func (s *ReceiptService) ConfirmReceipt(ctx context.Context, id uuid.UUID, in ConfirmReceiptInput) (*ReceiptResult, error) {
	return s.mutate(ctx, "confirm", id, func(r *finance.Receipt) error {
		return r.Confirm(in.ActualAmount, in.ConfirmedBy, s.clock())
	})
}

// AmendReceipt changes the expected amount of a pending receipt or the
// received amount of a confirmed one
func (s *ReceiptService) AmendReceipt(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*ReceiptResult, error) {
	return s.mutate(ctx, "amend", id, func(r *finance.Receipt) error {
		return r.Amend(amount)
	})
}

// DeleteReceipt soft deletes a receipt in any status
func (s *ReceiptService) DeleteReceipt(ctx context.Context, id uuid.UUID) (*ReceiptResult, error) {
	return s.mutate(ctx, "delete", id, func(r *finance.Receipt) error {
		return r.SoftDelete(s.clock())
	})
}

func (s *ReceiptService) mutate(ctx context.Context, op string, id uuid.UUID, fn func(*finance.Receipt) error) (*ReceiptResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receipt", op, telemetry.SpanAttrReceiptID, id)
	defer span.End()

	// The first read only finds the order to lock; the receipt is reloaded under it.
	receipt, err := s.Get(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	orderID := receipt.OrderID

	var result *ReceiptResult
	err = s.reconciler.withOrderLock(ctx, orderID, func(ctx context.Context) error {
		receipt, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(receipt); err != nil {
			return err
		}
		if err := s.receipts.SaveWithLock(ctx, receipt); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				return err
			}
			return fmt.Errorf("failed to save receipt: %w", err)
		}
		result, err = s.settle(ctx, receipt)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	// Handlers may take the order lock themselves, so publish after releasing it
	publishEvents(ctx, s.publisher, s.logger, result.Receipt.PullDomainEvents()...)

	s.logger.Info("Receipt updated",
		zap.String("operation", op),
		zap.String("receipt_id", id.String()),
		zap.String("status", string(result.Receipt.Status)),
	)
	return result, nil
}

// persist inserts a new receipt, recomputes its order and publishes the receipt's events
func (s *ReceiptService) persist(ctx context.Context, receipt *finance.Receipt) (*ReceiptResult, error) {
	var result *ReceiptResult
	err := s.reconciler.withOrderLock(ctx, receipt.OrderID, func(ctx context.Context) error {
		if err := s.receipts.Save(ctx, receipt); err != nil {
			return fmt.Errorf("failed to save receipt: %w", err)
		}
		var err error
		result, err = s.settle(ctx, receipt)
		return err
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.publisher, s.logger, receipt.PullDomainEvents()...)
	return result, nil
}

// settle recomputes the order; the caller holds the order lock
func (s *ReceiptService) settle(ctx context.Context, receipt *finance.Receipt) (*ReceiptResult, error) {
	projection, err := s.reconciler.recalculateLocked(ctx, receipt.OrderID)
	if err != nil {
		return nil, err
	}
	return &ReceiptResult{Receipt: receipt, Payment: projection}, nil
}
