package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/shared"
)

// PaymentRequestRepository defines the interface for payment request persistence.
// Soft-deleted requests are never returned.
type PaymentRequestRepository interface {
	// FindByID finds a payment request by ID, returning nil if it does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentRequest, error)

	// FindByIDs loads the given requests; missing ids are simply absent from the result
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]PaymentRequest, error)

	// FindByOrderIDs loads every request linked to the given booking orders
	FindByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]PaymentRequest, error)

	// Save creates or updates a payment request
	Save(ctx context.Context, pr *PaymentRequest) error

	// SaveWithLock updates pr only if the stored version is still the one pr was
	// loaded at (pr.Version-1); otherwise it returns shared.ErrConcurrencyConflict
	SaveWithLock(ctx context.Context, pr *PaymentRequest) error

	// UpdateStatus writes status and batch membership in one update
	UpdateStatus(ctx context.Context, id uuid.UUID, status PaymentRequestStatus, disbursementOrderID *uuid.UUID) error
}

// DisbursementOrderFilter defines filtering options for disbursement order queries
type DisbursementOrderFilter struct {
	shared.Filter
	Status   *DisbursementOrderStatus
	FromDate *time.Time
	ToDate   *time.Time
}

// DisbursementOrderRepository defines the interface for disbursement order persistence
type DisbursementOrderRepository interface {
	// FindByID finds a disbursement order by ID, returning nil if it does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*DisbursementOrder, error)

	// FindPendingByDate returns the earliest-numbered pending batch dated date, or nil
	FindPendingByDate(ctx context.Context, date time.Time) (*DisbursementOrder, error)

	// CountByNumberPrefix counts batches ever numbered with prefix, deleted ones included
	CountByNumberPrefix(ctx context.Context, prefix string) (int64, error)

	// FindAll lists batches with filtering and returns the total match count
	FindAll(ctx context.Context, filter DisbursementOrderFilter) ([]DisbursementOrder, int64, error)

	// Create inserts a new disbursement order
	Create(ctx context.Context, order *DisbursementOrder) error

	// Save updates an existing disbursement order
	Save(ctx context.Context, order *DisbursementOrder) error

	// UpdateAmount writes the amount of a pending order, leaving membership alone
	UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error

	// Delete soft deletes a disbursement order
	Delete(ctx context.Context, id uuid.UUID) error
}

// ReceiptRepository defines the interface for receipt persistence.
// Soft-deleted receipts are never returned.
type ReceiptRepository interface {
	// FindByID finds a receipt by ID, returning nil if it does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Receipt, error)

	// FindByOrder lists all receipts of an order regardless of status
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]Receipt, error)

	// FindConfirmedByOrder lists confirmed receipts of one order
	FindConfirmedByOrder(ctx context.Context, orderID uuid.UUID) ([]Receipt, error)

	// FindConfirmedByOrderIDs lists confirmed receipts across several orders
	FindConfirmedByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]Receipt, error)

	// Save creates or updates a receipt, including its deleted_at marker
	Save(ctx context.Context, receipt *Receipt) error

	// SaveWithLock updates a loaded receipt with the same version check as
	// PaymentRequestRepository.SaveWithLock. A soft-deleted row never matches.
	SaveWithLock(ctx context.Context, receipt *Receipt) error
}

// OrderRepository defines the interface for booking order persistence
type OrderRepository interface {
	// FindByID finds an order by ID, returning nil if it does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByTour lists the orders of a tour
	FindByTour(ctx context.Context, tourID uuid.UUID) ([]Order, error)

	// UpdatePaymentFields writes paid, remaining and payment status in one update
	UpdatePaymentFields(ctx context.Context, p PaymentProjection) error

	// Save creates or updates an order
	Save(ctx context.Context, order *Order) error
}

// TourRepository defines the interface for tour persistence
type TourRepository interface {
	// FindByID finds a tour by ID, returning nil if it does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Tour, error)

	// UpdateFinancials writes revenue, cost and gross profit in one update
	UpdateFinancials(ctx context.Context, f TourFinancials) error

	// Save creates or updates a tour
	Save(ctx context.Context, tour *Tour) error
}
