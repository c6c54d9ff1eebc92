package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/shared"
)

// Event type names
const (
	EventTypeDisbursementOrderCreated           = "DisbursementOrderCreated"
	EventTypeDisbursementOrderConfirmed         = "DisbursementOrderConfirmed"
	EventTypeDisbursementOrderRolledBack        = "DisbursementOrderRolledBack"
	EventTypeDisbursementReconciliationRequired = "DisbursementReconciliationRequired"
	EventTypeReceiptCreated                     = "ReceiptCreated"
	EventTypeReceiptConfirmed                   = "ReceiptConfirmed"
	EventTypeReceiptAmended                     = "ReceiptAmended"
	EventTypeReceiptDeleted                     = "ReceiptDeleted"
)

const (
	aggregateTypeDisbursementOrder = "DisbursementOrder"
	aggregateTypeReceipt           = "Receipt"
)

// ReceiptEventTypes lists every event raised by receipt mutations
func ReceiptEventTypes() []string {
	return []string{
		EventTypeReceiptCreated,
		EventTypeReceiptConfirmed,
		EventTypeReceiptAmended,
		EventTypeReceiptDeleted,
	}
}

// DisbursementOrderCreatedEvent is raised when a new batch is created
type DisbursementOrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderNumber       string          `json:"order_number"`
	DisbursementDate  time.Time       `json:"disbursement_date"`
	PaymentRequestIDs []uuid.UUID     `json:"payment_request_ids"`
	Amount            decimal.Decimal `json:"amount"`
}

// NewDisbursementOrderCreatedEvent creates a new DisbursementOrderCreatedEvent
func NewDisbursementOrderCreatedEvent(o *DisbursementOrder) *DisbursementOrderCreatedEvent {
	return &DisbursementOrderCreatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeDisbursementOrderCreated, aggregateTypeDisbursementOrder, o.ID),
		OrderNumber:       o.OrderNumber,
		DisbursementDate:  o.DisbursementDate,
		PaymentRequestIDs: append([]uuid.UUID(nil), o.PaymentRequestIDs...),
		Amount:            o.Amount,
	}
}

// DisbursementOrderConfirmedEvent is raised when every member of a batch is confirmed
type DisbursementOrderConfirmedEvent struct {
	shared.BaseDomainEvent
	OrderNumber       string          `json:"order_number"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentRequestIDs []uuid.UUID     `json:"payment_request_ids"`
	ConfirmedBy       uuid.UUID       `json:"confirmed_by"`
	ConfirmedAt       time.Time       `json:"confirmed_at"`
}

// NewDisbursementOrderConfirmedEvent creates a new DisbursementOrderConfirmedEvent
func NewDisbursementOrderConfirmedEvent(o *DisbursementOrder, by uuid.UUID, at time.Time) *DisbursementOrderConfirmedEvent {
	return &DisbursementOrderConfirmedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeDisbursementOrderConfirmed, aggregateTypeDisbursementOrder, o.ID),
		OrderNumber:       o.OrderNumber,
		Amount:            o.Amount,
		PaymentRequestIDs: append([]uuid.UUID(nil), o.PaymentRequestIDs...),
		ConfirmedBy:       by,
		ConfirmedAt:       at,
	}
}

// DisbursementOrderRolledBackEvent is raised when a confirmation was compensated
type DisbursementOrderRolledBackEvent struct {
	shared.BaseDomainEvent
	OrderNumber      string           `json:"order_number"`
	FailedStep       ConfirmationStep `json:"failed_step"`
	PaymentRequestID *uuid.UUID       `json:"payment_request_id,omitempty"`
	Reason           string           `json:"reason"`
}

// NewDisbursementOrderRolledBackEvent creates a new DisbursementOrderRolledBackEvent
func NewDisbursementOrderRolledBackEvent(e *ConfirmationRollbackError) *DisbursementOrderRolledBackEvent {
	return &DisbursementOrderRolledBackEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeDisbursementOrderRolledBack, aggregateTypeDisbursementOrder, e.DisbursementOrderID),
		OrderNumber:      e.OrderNumber,
		FailedStep:       e.Step,
		PaymentRequestID: e.PaymentRequestID,
		Reason:           e.Cause.Error(),
	}
}

// DisbursementReconciliationRequiredEvent is raised when a rollback left the
// batch and its members out of sync
type DisbursementReconciliationRequiredEvent struct {
	shared.BaseDomainEvent
	OrderNumber string   `json:"order_number"`
	Failures    []string `json:"failures"`
}

// NewDisbursementReconciliationRequiredEvent creates a new DisbursementReconciliationRequiredEvent
func NewDisbursementReconciliationRequiredEvent(e *ConfirmationRollbackError) *DisbursementReconciliationRequiredEvent {
	failures := make([]string, 0, len(e.CompensationFailures))
	for _, f := range e.CompensationFailures {
		failures = append(failures, f.String())
	}
	return &DisbursementReconciliationRequiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDisbursementReconciliationRequired, aggregateTypeDisbursementOrder, e.DisbursementOrderID),
		OrderNumber:     e.OrderNumber,
		Failures:        failures,
	}
}

// ReceiptChangedEvent is raised on every receipt mutation; Type tells which
type ReceiptChangedEvent struct {
	shared.BaseDomainEvent
	ReceiptNumber string        `json:"receipt_number"`
	OrderID       uuid.UUID     `json:"order_id"`
	TourID        uuid.UUID     `json:"tour_id"`
	Status        ReceiptStatus `json:"status"`
}

// NewReceiptChangedEvent creates a receipt event of the given type
func NewReceiptChangedEvent(r *Receipt, eventType string) *ReceiptChangedEvent {
	return &ReceiptChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, aggregateTypeReceipt, r.ID),
		ReceiptNumber:   r.ReceiptNumber,
		OrderID:         r.OrderID,
		TourID:          r.TourID,
		Status:          r.Status,
	}
}
