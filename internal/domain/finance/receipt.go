package finance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/shared"
)

// ReceiptStatus represents the status of a customer receipt
type ReceiptStatus string

const (
	ReceiptStatusPending   ReceiptStatus = "pending"
	ReceiptStatusConfirmed ReceiptStatus = "confirmed"
)

// IsValid checks if the status is a valid ReceiptStatus
func (s ReceiptStatus) IsValid() bool {
	return s == ReceiptStatusPending || s == ReceiptStatusConfirmed
}

// String returns the string representation of ReceiptStatus
func (s ReceiptStatus) String() string {
	return string(s)
}

// PaymentMethod represents how the customer paid
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodWechat       PaymentMethod = "wechat"
	PaymentMethodAlipay       PaymentMethod = "alipay"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCard,
		PaymentMethodWechat, PaymentMethodAlipay, PaymentMethodOther:
		return true
	}
	return false
}

// Receipt records an inbound customer payment against a booking order
type Receipt struct {
	shared.BaseAggregateRoot
	ReceiptNumber string           `json:"receipt_number"`
	OrderID       uuid.UUID        `json:"order_id"`
	TourID        uuid.UUID        `json:"tour_id"`
	Amount        decimal.Decimal  `json:"amount"`
	ActualAmount  *decimal.Decimal `json:"actual_amount,omitempty"`
	Status        ReceiptStatus    `json:"status"`
	PaymentMethod PaymentMethod    `json:"payment_method"`
	ReceiptDate   time.Time        `json:"receipt_date"`
	ConfirmedBy   *uuid.UUID       `json:"confirmed_by,omitempty"`
	ConfirmedAt   *time.Time       `json:"confirmed_at,omitempty"`
	DeletedAt     *time.Time       `json:"deleted_at,omitempty"`
	Remark        string           `json:"remark"`
}

// NewReceipt creates a pending receipt for the expected amount
func NewReceipt(
	receiptNumber string,
	orderID uuid.UUID,
	tourID uuid.UUID,
	amount decimal.Decimal,
	method PaymentMethod,
	receiptDate time.Time,
	remark string,
) (*Receipt, error) {
	if receiptNumber == "" {
		return nil, shared.NewValidationError("INVALID_RECEIPT_NUMBER", "Receipt number cannot be empty")
	}
	if orderID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Receipt amount must be positive")
	}
	if method == "" {
		method = PaymentMethodBankTransfer
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Unknown payment method %q", method))
	}
	if receiptDate.IsZero() {
		receiptDate = time.Now()
	}

	r := &Receipt{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ReceiptNumber:     receiptNumber,
		OrderID:           orderID,
		TourID:            tourID,
		Amount:            amount,
		Status:            ReceiptStatusPending,
		PaymentMethod:     method,
		ReceiptDate:       receiptDate,
		Remark:            remark,
	}
	r.AddDomainEvent(NewReceiptChangedEvent(r, EventTypeReceiptCreated))
	return r, nil
}

// Confirm records the amount actually received. A nil actual means the
// expected amount was received in full.
func (r *Receipt) Confirm(actual *decimal.Decimal, by uuid.UUID, at time.Time) error {
	if r.IsDeleted() {
		return shared.NewInvalidStateError("Cannot confirm a deleted receipt")
	}
	if r.Status == ReceiptStatusConfirmed {
		return shared.NewInvalidStateError(fmt.Sprintf("Receipt %s is already confirmed", r.ReceiptNumber))
	}
	received := r.Amount
	if actual != nil {
		received = *actual
	}
	if received.IsNegative() {
		return shared.NewValidationError("INVALID_AMOUNT", "Actual amount cannot be negative")
	}

	r.ActualAmount = &received
	r.Status = ReceiptStatusConfirmed
	r.ConfirmedBy = &by
	r.ConfirmedAt = &at
	r.UpdatedAt = at
	r.IncrementVersion()
	r.AddDomainEvent(NewReceiptChangedEvent(r, EventTypeReceiptConfirmed))
	return nil
}

// Amend changes the expected amount of a pending receipt or the actual amount
// of a confirmed one.
func (r *Receipt) Amend(amount decimal.Decimal) error {
	if r.IsDeleted() {
		return shared.NewInvalidStateError("Cannot amend a deleted receipt")
	}
	switch r.Status {
	case ReceiptStatusPending:
		if !amount.IsPositive() {
			return shared.NewValidationError("INVALID_AMOUNT", "Receipt amount must be positive")
		}
		r.Amount = amount
	case ReceiptStatusConfirmed:
		if amount.IsNegative() {
			return shared.NewValidationError("INVALID_AMOUNT", "Actual amount cannot be negative")
		}
		r.ActualAmount = &amount
	}
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
	r.AddDomainEvent(NewReceiptChangedEvent(r, EventTypeReceiptAmended))
	return nil
}

// SoftDelete hides the receipt from every projection; allowed in any status
func (r *Receipt) SoftDelete(at time.Time) error {
	if r.IsDeleted() {
		return shared.NewInvalidStateError("Receipt already deleted")
	}
	r.DeletedAt = &at
	r.UpdatedAt = at
	r.IncrementVersion()
	r.AddDomainEvent(NewReceiptChangedEvent(r, EventTypeReceiptDeleted))
	return nil
}

// IsDeleted returns true if the receipt has been soft-deleted
func (r *Receipt) IsDeleted() bool {
	return r.DeletedAt != nil
}

// CountsAsPaid reports whether the receipt contributes to the order's paid amount
func (r *Receipt) CountsAsPaid() bool {
	return r.Status == ReceiptStatusConfirmed && !r.IsDeleted()
}

// Received returns the confirmed actual amount, or zero if none was recorded
func (r *Receipt) Received() decimal.Decimal {
	if r.ActualAmount == nil {
		return decimal.Zero
	}
	return *r.ActualAmount
}
