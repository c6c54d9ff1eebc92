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
	"golang.org/x/sync/errgroup"
)

const defaultReconcileConcurrency = 8

// TourAggregator recomputes tour revenue, cost and gross profit bottom-up
// from receipts and payment requests.
type TourAggregator struct {
	tours       finance.TourRepository
	orders      finance.OrderRepository
	receipts    finance.ReceiptRepository
	requests    finance.PaymentRequestRepository
	reconciler  *ReceiptReconciler
	locker      shared.EntityLocker
	metrics     *telemetry.SettlementMetrics
	logger      *zap.Logger
	clock       func() time.Time
	concurrency int
}

// TourAggregatorOption configures a TourAggregator
type TourAggregatorOption func(*TourAggregator)

// WithAggregatorClock overrides time.Now
func WithAggregatorClock(clock func() time.Time) TourAggregatorOption {
	return func(a *TourAggregator) { a.clock = clock }
}

// WithAggregatorLocker serializes recalculation per tour
func WithAggregatorLocker(locker shared.EntityLocker) TourAggregatorOption {
	return func(a *TourAggregator) { a.locker = locker }
}

// WithAggregatorMetrics records recalculation counters
func WithAggregatorMetrics(metrics *telemetry.SettlementMetrics) TourAggregatorOption {
	return func(a *TourAggregator) { a.metrics = metrics }
}

// WithReconcileConcurrency bounds the parallel order recalculations of ReconcileTour
func WithReconcileConcurrency(n int) TourAggregatorOption {
	return func(a *TourAggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// NewTourAggregator creates a new TourAggregator
func NewTourAggregator(
	tours finance.TourRepository,
	orders finance.OrderRepository,
	receipts finance.ReceiptRepository,
	requests finance.PaymentRequestRepository,
	reconciler *ReceiptReconciler,
	logger *zap.Logger,
	opts ...TourAggregatorOption,
) *TourAggregator {
	a := &TourAggregator{
		tours:       tours,
		orders:      orders,
		receipts:    receipts,
		requests:    requests,
		reconciler:  reconciler,
		logger:      logger,
		clock:       time.Now,
		concurrency: defaultReconcileConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RecalculateTourFinancials recomputes and persists the tour's revenue, cost
// and gross profit. Cached order fields are not trusted.
func (a *TourAggregator) RecalculateTourFinancials(ctx context.Context, tourID uuid.UUID) (*finance.TourFinancials, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tour", "recalculate_financials",
		telemetry.SpanAttrTourID, tourID,
	)
	defer span.End()

	start := time.Now()
	var financials finance.TourFinancials
	err := withLock(ctx, a.locker, tourLockKey(tourID), func(ctx context.Context) error {
		tour, err := a.tours.FindByID(ctx, tourID)
		if err != nil {
			return fmt.Errorf("failed to load tour: %w", err)
		}
		if tour == nil {
			return finance.ErrTourNotFound(tourID)
		}
		orders, err := a.orders.FindByTour(ctx, tourID)
		if err != nil {
			return fmt.Errorf("failed to load tour orders: %w", err)
		}
		orderIDs := make([]uuid.UUID, len(orders))
		for i := range orders {
			orderIDs[i] = orders[i].ID
		}

		var (
			receipts []finance.Receipt
			requests []finance.PaymentRequest
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			receipts, err = a.receipts.FindConfirmedByOrderIDs(gctx, orderIDs)
			if err != nil {
				return fmt.Errorf("failed to load receipts: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			requests, err = a.requests.FindByOrderIDs(gctx, orderIDs)
			if err != nil {
				return fmt.Errorf("failed to load payment requests: %w", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}

		financials = finance.ComputeTourFinancials(tourID, len(orders), receipts, requests, a.clock())
		if err := a.tours.UpdateFinancials(ctx, financials); err != nil {
			return fmt.Errorf("failed to update tour financials: %w", err)
		}
		return nil
	})
	a.metrics.RecordRecalculation(ctx, telemetry.RecalcTourFinancials, time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	a.logger.Info("Tour financials recalculated",
		zap.String("tour_id", tourID.String()),
		zap.Int("order_count", financials.OrderCount),
		zap.String("total_revenue", financials.TotalRevenue.String()),
		zap.String("total_cost", financials.TotalCost.String()),
		zap.String("gross_profit", financials.GrossProfit.String()),
	)
	return &financials, nil
}

// ReconcileTour recomputes every order's payment fields, then the tour totals
func (a *TourAggregator) ReconcileTour(ctx context.Context, tourID uuid.UUID) (*TourReconciliation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tour", "reconcile",
		telemetry.SpanAttrTourID, tourID,
	)
	defer span.End()

	tour, err := a.tours.FindByID(ctx, tourID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load tour: %w", err)
	}
	if tour == nil {
		err := finance.ErrTourNotFound(tourID)
		telemetry.RecordError(span, err)
		return nil, err
	}
	orders, err := a.orders.FindByTour(ctx, tourID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load tour orders: %w", err)
	}

	projections := make([]finance.PaymentProjection, len(orders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range orders {
		g.Go(func() error {
			p, err := a.reconciler.RecalculateOrderPayment(gctx, orders[i].ID)
			if err != nil {
				return err
			}
			projections[i] = *p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	financials, err := a.RecalculateTourFinancials(ctx, tourID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &TourReconciliation{Financials: financials, Orders: projections}, nil
}
