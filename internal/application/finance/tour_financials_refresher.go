package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"go.uber.org/zap"
)

// TourFinancialsRefresher recomputes tour totals after the writes that can
// change them: receipt mutations and disbursement confirmation.
type TourFinancialsRefresher struct {
	aggregator *TourAggregator
	orders     finance.OrderRepository
	requests   finance.PaymentRequestRepository
	onReceipt  bool
	logger     *zap.Logger
}

// NewTourFinancialsRefresher creates a new TourFinancialsRefresher.
// With onReceipt false only disbursement confirmations trigger a refresh.
func NewTourFinancialsRefresher(
	aggregator *TourAggregator,
	orders finance.OrderRepository,
	requests finance.PaymentRequestRepository,
	onReceipt bool,
	logger *zap.Logger,
) *TourFinancialsRefresher {
	return &TourFinancialsRefresher{
		aggregator: aggregator,
		orders:     orders,
		requests:   requests,
		onReceipt:  onReceipt,
		logger:     logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *TourFinancialsRefresher) EventTypes() []string {
	types := []string{finance.EventTypeDisbursementOrderConfirmed}
	if h.onReceipt {
		types = append(types, finance.ReceiptEventTypes()...)
	}
	return types
}

// Handle refreshes every tour touched by the event
func (h *TourFinancialsRefresher) Handle(ctx context.Context, event shared.DomainEvent) error {
	var (
		tourIDs []uuid.UUID
		err     error
	)
	switch e := event.(type) {
	case *finance.ReceiptChangedEvent:
		if !h.onReceipt {
			return nil
		}
		tourIDs = []uuid.UUID{e.TourID}
	case *finance.DisbursementOrderConfirmedEvent:
		tourIDs, err = h.toursOfRequests(ctx, e.PaymentRequestIDs)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unexpected event type %T", event)
	}

	var errs []error
	for _, id := range tourIDs {
		if id == uuid.Nil {
			continue
		}
		if _, err := h.aggregator.RecalculateTourFinancials(ctx, id); err != nil {
			if shared.IsNotFound(err) {
				h.logger.Warn("Skipping refresh of unknown tour", zap.String("tour_id", id.String()))
				continue
			}
			errs = append(errs, fmt.Errorf("tour %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// toursOfRequests maps payment requests to the distinct tours of their orders
func (h *TourFinancialsRefresher) toursOfRequests(ctx context.Context, requestIDs []uuid.UUID) ([]uuid.UUID, error) {
	requests, err := h.requests.FindByIDs(ctx, requestIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment requests: %w", err)
	}

	seenOrders := make(map[uuid.UUID]struct{}, len(requests))
	seenTours := make(map[uuid.UUID]struct{})
	tours := make([]uuid.UUID, 0)
	for i := range requests {
		orderID := requests[i].OrderID
		if _, ok := seenOrders[orderID]; ok {
			continue
		}
		seenOrders[orderID] = struct{}{}

		order, err := h.orders.FindByID(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("failed to load order: %w", err)
		}
		if order == nil {
			continue
		}
		if _, ok := seenTours[order.TourID]; ok {
			continue
		}
		seenTours[order.TourID] = struct{}{}
		tours = append(tours, order.TourID)
	}
	return tours, nil
}

var _ shared.EventHandler = (*TourFinancialsRefresher)(nil)
