package finance

import (
	"time"

	"github.com/google/uuid"
)

// ConfirmationPhase tags where a disbursement confirmation currently stands.
//
//	Pending -> Confirming -> Confirmed
//	            Confirming -> RollingBack -> RolledBack
//	                          RollingBack -> Inconsistent
type ConfirmationPhase string

const (
	ConfirmationPhasePending      ConfirmationPhase = "pending"
	ConfirmationPhaseConfirming   ConfirmationPhase = "confirming"
	ConfirmationPhaseConfirmed    ConfirmationPhase = "confirmed"
	ConfirmationPhaseRollingBack  ConfirmationPhase = "rolling_back"
	ConfirmationPhaseRolledBack   ConfirmationPhase = "rolled_back"
	ConfirmationPhaseInconsistent ConfirmationPhase = "inconsistent"
)

// String returns the string representation of ConfirmationPhase
func (p ConfirmationPhase) String() string {
	return string(p)
}

// IsTerminal returns true if no further transitions are possible
func (p ConfirmationPhase) IsTerminal() bool {
	switch p {
	case ConfirmationPhaseConfirmed, ConfirmationPhaseRolledBack, ConfirmationPhaseInconsistent:
		return true
	}
	return false
}

// CanTransitionTo reports whether p -> next is a legal phase change
func (p ConfirmationPhase) CanTransitionTo(next ConfirmationPhase) bool {
	switch p {
	case ConfirmationPhasePending:
		return next == ConfirmationPhaseConfirming
	case ConfirmationPhaseConfirming:
		return next == ConfirmationPhaseConfirmed || next == ConfirmationPhaseRollingBack
	case ConfirmationPhaseRollingBack:
		return next == ConfirmationPhaseRolledBack || next == ConfirmationPhaseInconsistent
	}
	return false
}

// PhaseTransition is one recorded step of a confirmation run
type PhaseTransition struct {
	From ConfirmationPhase `json:"from"`
	To   ConfirmationPhase `json:"to"`
	At   time.Time         `json:"at"`
}

// ConfirmationReport is the trace of a single ConfirmOrder run
type ConfirmationReport struct {
	DisbursementOrderID uuid.UUID         `json:"disbursement_order_id"`
	OrderNumber         string            `json:"order_number"`
	Phase               ConfirmationPhase `json:"phase"`
	Phases              []PhaseTransition `json:"phases"`
	ConfirmedRequestIDs []uuid.UUID       `json:"confirmed_request_ids"`
	RevertedRequestIDs  []uuid.UUID       `json:"reverted_request_ids,omitempty"`
}

// NewConfirmationReport starts a report in the pending phase
func NewConfirmationReport(order *DisbursementOrder) *ConfirmationReport {
	return &ConfirmationReport{
		DisbursementOrderID: order.ID,
		OrderNumber:         order.OrderNumber,
		Phase:               ConfirmationPhasePending,
		ConfirmedRequestIDs: make([]uuid.UUID, 0, len(order.PaymentRequestIDs)),
	}
}

// Advance moves the report to next, recording the transition.
// Illegal transitions return false and leave the report unchanged.
func (r *ConfirmationReport) Advance(next ConfirmationPhase, at time.Time) bool {
	if !r.Phase.CanTransitionTo(next) {
		return false
	}
	r.Phases = append(r.Phases, PhaseTransition{From: r.Phase, To: next, At: at})
	r.Phase = next
	return true
}
