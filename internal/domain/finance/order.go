package finance

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/shared"
)

// PaymentStatus is the derived collection state of a booking order
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// Order is a customer booking under a tour. PaidAmount, RemainingAmount and
// PaymentStatus are cached projections of the order's receipts.
type Order struct {
	shared.BaseEntity
	OrderNumber     string          `json:"order_number"`
	TourID          uuid.UUID       `json:"tour_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
}

// NewOrder creates an unpaid order
func NewOrder(orderNumber string, tourID uuid.UUID, total decimal.Decimal) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewValidationError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if total.IsNegative() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Order total cannot be negative")
	}
	return &Order{
		BaseEntity:      shared.NewBaseEntity(),
		OrderNumber:     orderNumber,
		TourID:          tourID,
		TotalAmount:     total,
		PaidAmount:      decimal.Zero,
		RemainingAmount: total,
		PaymentStatus:   PaymentStatusUnpaid,
	}, nil
}

// ApplyPaymentProjection overwrites the cached payment fields
func (o *Order) ApplyPaymentProjection(p PaymentProjection) {
	o.PaidAmount = p.PaidAmount
	o.RemainingAmount = p.RemainingAmount
	o.PaymentStatus = p.PaymentStatus
}
