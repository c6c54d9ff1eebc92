package finance

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/shared"
)

// ErrEmptyPaymentRequests is returned when a batch would have no members
func ErrEmptyPaymentRequests() error {
	return shared.NewValidationError("EMPTY_PAYMENT_REQUESTS", "At least one payment request is required")
}

// ErrNegativeDisbursementAmount is returned when member amounts sum below zero
func ErrNegativeDisbursementAmount(amount decimal.Decimal) error {
	return shared.NewValidationError("NEGATIVE_DISBURSEMENT_AMOUNT",
		fmt.Sprintf("Disbursement amount cannot be negative (got %s)", amount.StringFixed(2)))
}

// ErrPaymentRequestNotFound is returned for an unknown payment request id
func ErrPaymentRequestNotFound(id uuid.UUID) error {
	return shared.NewNotFoundError("PAYMENT_REQUEST_NOT_FOUND", fmt.Sprintf("Payment request %s not found", id))
}

// ErrDisbursementOrderNotFound is returned for an unknown disbursement order id
func ErrDisbursementOrderNotFound(id uuid.UUID) error {
	return shared.NewNotFoundError("DISBURSEMENT_ORDER_NOT_FOUND", fmt.Sprintf("Disbursement order %s not found", id))
}

// ErrOrderNotFound is returned for an unknown booking order id
func ErrOrderNotFound(id uuid.UUID) error {
	return shared.NewNotFoundError("ORDER_NOT_FOUND", fmt.Sprintf("Order %s not found", id))
}

// ErrReceiptNotFound is returned for an unknown receipt id
func ErrReceiptNotFound(id uuid.UUID) error {
	return shared.NewNotFoundError("RECEIPT_NOT_FOUND", fmt.Sprintf("Receipt %s not found", id))
}

// ErrTourNotFound is returned for an unknown tour id
func ErrTourNotFound(id uuid.UUID) error {
	return shared.NewNotFoundError("TOUR_NOT_FOUND", fmt.Sprintf("Tour %s not found", id))
}

// ErrPaymentRequestNotPending is returned when a request is already batched or confirmed
func ErrPaymentRequestNotPending(pr *PaymentRequest) error {
	return shared.NewValidationError("PAYMENT_REQUEST_NOT_PENDING",
		fmt.Sprintf("Payment request %s is %s; only pending requests can be batched", pr.RequestNumber, pr.Status))
}

// ConfirmationStep names the sub-step of ConfirmOrder that failed
type ConfirmationStep string

const (
	ConfirmationStepMarkOrder      ConfirmationStep = "mark_order_confirmed"
	ConfirmationStepLoadRequests   ConfirmationStep = "load_payment_requests"
	ConfirmationStepConfirmRequest ConfirmationStep = "confirm_payment_request"
)

// CompensationFailure is a compensating write that did not succeed
type CompensationFailure struct {
	// Target is the payment request id, or the disbursement order id when the
	// order itself could not be reverted.
	Target uuid.UUID `json:"target"`
	Action string    `json:"action"`
	Err    error     `json:"-"`
}

func (f CompensationFailure) String() string {
	return fmt.Sprintf("%s %s: %v", f.Action, f.Target, f.Err)
}

// ConfirmationRollbackError is returned by ConfirmOrder after compensation ran.
// The batch is pending again unless NeedsManualReconciliation reports true.
type ConfirmationRollbackError struct {
	DisbursementOrderID  uuid.UUID
	OrderNumber          string
	Step                 ConfirmationStep
	PaymentRequestID     *uuid.UUID
	Cause                error
	CompensationFailures []CompensationFailure
}

// Error implements the error interface
func (e *ConfirmationRollbackError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "confirmation of disbursement order %s rolled back at %s", e.OrderNumber, e.Step)
	if e.PaymentRequestID != nil {
		fmt.Fprintf(&b, " (payment request %s)", *e.PaymentRequestID)
	}
	fmt.Fprintf(&b, ": %v", e.Cause)
	if n := len(e.CompensationFailures); n > 0 {
		fmt.Fprintf(&b, "; %d compensating update(s) failed, manual reconciliation required", n)
	}
	return b.String()
}

// Unwrap returns the failure that triggered the rollback
func (e *ConfirmationRollbackError) Unwrap() error {
	return e.Cause
}

// NeedsManualReconciliation is true when some compensating write failed
func (e *ConfirmationRollbackError) NeedsManualReconciliation() bool {
	return len(e.CompensationFailures) > 0
}
