package finance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/shared"
)

// DisbursementOrderStatus represents the lifecycle of a disbursement batch
type DisbursementOrderStatus string

const (
	DisbursementOrderStatusPending   DisbursementOrderStatus = "pending"
	DisbursementOrderStatusConfirmed DisbursementOrderStatus = "confirmed"
)

// IsValid checks if the status is a valid DisbursementOrderStatus
func (s DisbursementOrderStatus) IsValid() bool {
	return s == DisbursementOrderStatusPending || s == DisbursementOrderStatusConfirmed
}

// String returns the string representation of DisbursementOrderStatus
func (s DisbursementOrderStatus) String() string {
	return string(s)
}

// CanModify returns true if membership, date and note can still change
func (s DisbursementOrderStatus) CanModify() bool {
	return s == DisbursementOrderStatusPending
}

// DisbursementOrder is a weekly batch of payment requests paid out together on a Thursday
type DisbursementOrder struct {
	shared.BaseAggregateRoot
	OrderNumber       string                  `json:"order_number"`
	DisbursementDate  time.Time               `json:"disbursement_date"`
	PaymentRequestIDs []uuid.UUID             `json:"payment_request_ids"`
	Amount            decimal.Decimal         `json:"amount"`
	Status            DisbursementOrderStatus `json:"status"`
	Note              string                  `json:"note"`
	ConfirmedBy       *uuid.UUID              `json:"confirmed_by,omitempty"`
	ConfirmedAt       *time.Time              `json:"confirmed_at,omitempty"`
}

// NewDisbursementOrder creates a pending batch over the given member requests.
// The amount must be the sum of the members and may not be negative.
func NewDisbursementOrder(
	orderNumber string,
	disbursementDate time.Time,
	paymentRequestIDs []uuid.UUID,
	amount decimal.Decimal,
	note string,
) (*DisbursementOrder, error) {
	if orderNumber == "" {
		return nil, shared.NewValidationError("INVALID_ORDER_NUMBER", "Disbursement order number cannot be empty")
	}
	ids := dedupeIDs(paymentRequestIDs)
	if len(ids) == 0 {
		return nil, ErrEmptyPaymentRequests()
	}
	if err := ValidateDisbursementDate(disbursementDate); err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, ErrNegativeDisbursementAmount(amount)
	}

	order := &DisbursementOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       orderNumber,
		DisbursementDate:  CalendarDate(disbursementDate),
		PaymentRequestIDs: ids,
		Amount:            amount,
		Status:            DisbursementOrderStatusPending,
		Note:              note,
	}
	order.AddDomainEvent(NewDisbursementOrderCreatedEvent(order))
	return order, nil
}

// EnsurePending returns an error unless the batch can still be modified
func (o *DisbursementOrder) EnsurePending() error {
	if !o.Status.CanModify() {
		return shared.NewValidationError("DISBURSEMENT_NOT_PENDING",
			fmt.Sprintf("Disbursement order %s is %s and can no longer be modified", o.OrderNumber, o.Status))
	}
	return nil
}

// Contains reports whether the request is a member of this batch
func (o *DisbursementOrder) Contains(requestID uuid.UUID) bool {
	for _, id := range o.PaymentRequestIDs {
		if id == requestID {
			return true
		}
	}
	return false
}

// AddPaymentRequests appends new members and returns the ids actually added.
// Ids already in the batch are skipped.
func (o *DisbursementOrder) AddPaymentRequests(requestIDs []uuid.UUID) ([]uuid.UUID, error) {
	if err := o.EnsurePending(); err != nil {
		return nil, err
	}
	added := make([]uuid.UUID, 0, len(requestIDs))
	for _, id := range dedupeIDs(requestIDs) {
		if o.Contains(id) {
			continue
		}
		o.PaymentRequestIDs = append(o.PaymentRequestIDs, id)
		added = append(added, id)
	}
	if len(added) > 0 {
		o.touch()
	}
	return added, nil
}

// RemovePaymentRequest drops a member from the batch
func (o *DisbursementOrder) RemovePaymentRequest(requestID uuid.UUID) error {
	if err := o.EnsurePending(); err != nil {
		return err
	}
	idx := -1
	for i, id := range o.PaymentRequestIDs {
		if id == requestID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return shared.NewValidationError("NOT_A_MEMBER",
			fmt.Sprintf("Payment request %s is not part of disbursement order %s", requestID, o.OrderNumber))
	}
	o.PaymentRequestIDs = append(o.PaymentRequestIDs[:idx], o.PaymentRequestIDs[idx+1:]...)
	o.touch()
	return nil
}

// ApplyAmount replaces the batch total with a freshly computed member sum
func (o *DisbursementOrder) ApplyAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeDisbursementAmount(amount)
	}
	o.Amount = amount
	o.touch()
	return nil
}

// Reschedule moves a pending batch to another Thursday
func (o *DisbursementOrder) Reschedule(date time.Time) error {
	if err := o.EnsurePending(); err != nil {
		return err
	}
	if err := ValidateDisbursementDate(date); err != nil {
		return err
	}
	o.DisbursementDate = CalendarDate(date)
	o.touch()
	return nil
}

// MarkConfirmed records that the batch has been paid out
func (o *DisbursementOrder) MarkConfirmed(by uuid.UUID, at time.Time) error {
	if err := o.EnsurePending(); err != nil {
		return err
	}
	o.Status = DisbursementOrderStatusConfirmed
	o.ConfirmedBy = &by
	o.ConfirmedAt = &at
	o.touch()
	return nil
}

// RevertToPending compensates MarkConfirmed and clears the confirmation fields
func (o *DisbursementOrder) RevertToPending() {
	o.Status = DisbursementOrderStatusPending
	o.ConfirmedBy = nil
	o.ConfirmedAt = nil
	o.touch()
}

// IsConfirmed returns true once the batch is paid out
func (o *DisbursementOrder) IsConfirmed() bool {
	return o.Status == DisbursementOrderStatusConfirmed
}

func (o *DisbursementOrder) touch() {
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
