package finance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/shared"
)

// PaymentRequestStatus mirrors the request's disbursement batch membership
type PaymentRequestStatus string

const (
	PaymentRequestStatusPending    PaymentRequestStatus = "pending"    // Not assigned to any batch
	PaymentRequestStatusProcessing PaymentRequestStatus = "processing" // Member of a pending batch
	PaymentRequestStatusConfirmed  PaymentRequestStatus = "confirmed"  // Member of a confirmed batch
)

// IsValid checks if the status is a valid PaymentRequestStatus
func (s PaymentRequestStatus) IsValid() bool {
	switch s {
	case PaymentRequestStatusPending, PaymentRequestStatusProcessing, PaymentRequestStatusConfirmed:
		return true
	}
	return false
}

// String returns the string representation of PaymentRequestStatus
func (s PaymentRequestStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the membership state machine allows s -> next.
// confirmed -> processing only happens when a batch confirmation is compensated.
func (s PaymentRequestStatus) CanTransitionTo(next PaymentRequestStatus) bool {
	switch s {
	case PaymentRequestStatusPending:
		return next == PaymentRequestStatusProcessing
	case PaymentRequestStatusProcessing:
		return next == PaymentRequestStatusPending || next == PaymentRequestStatusConfirmed
	case PaymentRequestStatusConfirmed:
		return next == PaymentRequestStatusProcessing
	}
	return false
}

// SupplierType categorizes who a payment request pays
type SupplierType string

const (
	SupplierTypeTransport  SupplierType = "transport"
	SupplierTypeHotel      SupplierType = "hotel"
	SupplierTypeRestaurant SupplierType = "restaurant"
	SupplierTypeTicket     SupplierType = "ticket"
	SupplierTypeGuide      SupplierType = "guide"
	SupplierTypeInsurance  SupplierType = "insurance"
	SupplierTypeOther      SupplierType = "other"
	// SupplierTypeBonus marks staff bonus payouts. These are profit distribution
	// and never count toward tour cost.
	SupplierTypeBonus SupplierType = "bonus"
)

// IsValid checks if the supplier type is known
func (t SupplierType) IsValid() bool {
	switch t {
	case SupplierTypeTransport, SupplierTypeHotel, SupplierTypeRestaurant, SupplierTypeTicket,
		SupplierTypeGuide, SupplierTypeInsurance, SupplierTypeOther, SupplierTypeBonus:
		return true
	}
	return false
}

// IsCost returns false for bonus payouts
func (t SupplierType) IsCost() bool {
	return t != SupplierTypeBonus
}

// PaymentRequest is a single expense or reimbursement claim tied to a booking order
type PaymentRequest struct {
	shared.BaseAggregateRoot
	RequestNumber       string               `json:"request_number"`
	OrderID             uuid.UUID            `json:"order_id"`
	Amount              decimal.Decimal      `json:"amount"`
	Status              PaymentRequestStatus `json:"status"`
	SupplierType        SupplierType         `json:"supplier_type"`
	SupplierName        string               `json:"supplier_name"`
	Notes               string               `json:"notes"`
	DisbursementOrderID *uuid.UUID           `json:"disbursement_order_id"`
	DeletedAt           *time.Time           `json:"deleted_at"`
}

// NewPaymentRequest creates a pending, unassigned payment request.
// Negative amounts are allowed (supplier credits); the batch total is what must stay non-negative.
func NewPaymentRequest(
	requestNumber string,
	orderID uuid.UUID,
	amount decimal.Decimal,
	supplierType SupplierType,
	supplierName string,
	notes string,
) (*PaymentRequest, error) {
	if requestNumber == "" {
		return nil, shared.NewValidationError("INVALID_REQUEST_NUMBER", "Request number cannot be empty")
	}
	if len(requestNumber) > 50 {
		return nil, shared.NewValidationError("INVALID_REQUEST_NUMBER", "Request number cannot exceed 50 characters")
	}
	if orderID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if !supplierType.IsValid() {
		return nil, shared.NewValidationError("INVALID_SUPPLIER_TYPE", fmt.Sprintf("Unknown supplier type %q", supplierType))
	}

	pr := &PaymentRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		RequestNumber:     requestNumber,
		OrderID:           orderID,
		Amount:            amount,
		Status:            PaymentRequestStatusPending,
		SupplierType:      supplierType,
		SupplierName:      supplierName,
		Notes:             notes,
	}
	return pr, nil
}

func (pr *PaymentRequest) transitionTo(next PaymentRequestStatus) error {
	if !pr.Status.CanTransitionTo(next) {
		return shared.NewInvalidStateError(
			fmt.Sprintf("Payment request %s cannot move from %s to %s", pr.RequestNumber, pr.Status, next))
	}
	pr.Status = next
	pr.UpdatedAt = time.Now()
	pr.IncrementVersion()
	return nil
}

// AssignTo makes the request a member of a pending disbursement batch
func (pr *PaymentRequest) AssignTo(disbursementOrderID uuid.UUID) error {
	if pr.IsDeleted() {
		return shared.NewInvalidStateError(fmt.Sprintf("Payment request %s is deleted", pr.RequestNumber))
	}
	if err := pr.transitionTo(PaymentRequestStatusProcessing); err != nil {
		return err
	}
	pr.DisbursementOrderID = &disbursementOrderID
	return nil
}

// Unassign removes the request from its batch and returns it to pending
func (pr *PaymentRequest) Unassign() error {
	if err := pr.transitionTo(PaymentRequestStatusPending); err != nil {
		return err
	}
	pr.DisbursementOrderID = nil
	return nil
}

// Confirm marks the request paid as part of a confirmed batch
func (pr *PaymentRequest) Confirm() error {
	return pr.transitionTo(PaymentRequestStatusConfirmed)
}

// RevertConfirmation compensates Confirm; membership is kept
func (pr *PaymentRequest) RevertConfirmation() error {
	return pr.transitionTo(PaymentRequestStatusProcessing)
}

// UpdateAmount changes the claimed amount. Confirmed requests are immutable.
func (pr *PaymentRequest) UpdateAmount(amount decimal.Decimal) error {
	if pr.IsDeleted() {
		return shared.NewInvalidStateError("Cannot modify a deleted payment request")
	}
	if pr.Status == PaymentRequestStatusConfirmed {
		return shared.NewInvalidStateError("Cannot modify a confirmed payment request")
	}
	pr.Amount = amount
	pr.UpdatedAt = time.Now()
	pr.IncrementVersion()
	return nil
}

// SoftDelete marks the request deleted; only unassigned requests can be deleted
func (pr *PaymentRequest) SoftDelete(at time.Time) error {
	if pr.IsDeleted() {
		return shared.NewInvalidStateError("Payment request already deleted")
	}
	if pr.Status != PaymentRequestStatusPending || pr.DisbursementOrderID != nil {
		return shared.NewInvalidStateError(
			fmt.Sprintf("Cannot delete payment request in %s status; remove it from its batch first", pr.Status))
	}
	pr.DeletedAt = &at
	pr.UpdatedAt = at
	pr.IncrementVersion()
	return nil
}

// IsDeleted returns true if the request has been soft-deleted
func (pr *PaymentRequest) IsDeleted() bool {
	return pr.DeletedAt != nil
}

// IsPending returns true if the request is unassigned
func (pr *PaymentRequest) IsPending() bool {
	return pr.Status == PaymentRequestStatusPending
}

// CountsAsCost reports whether the request contributes to tour cost
func (pr *PaymentRequest) CountsAsCost() bool {
	return pr.Status == PaymentRequestStatusConfirmed && !pr.IsDeleted() && pr.SupplierType.IsCost()
}

// SumPaymentRequests sums amounts over the given requests
func SumPaymentRequests(requests []PaymentRequest) decimal.Decimal {
	total := decimal.Zero
	for i := range requests {
		total = total.Add(requests[i].Amount)
	}
	return total
}
