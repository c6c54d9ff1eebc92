package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrOutcome = attribute.Key("outcome")
	AttrKind    = attribute.Key("kind")
)

// Confirmation outcomes
const (
	OutcomeConfirmed    = "confirmed"
	OutcomeRolledBack   = "rolled_back"
	OutcomeInconsistent = "inconsistent"
	OutcomeRejected     = "rejected"
)

// Recalculation kinds
const (
	RecalcOrderPayment   = "order_payment"
	RecalcTourFinancials = "tour_financials"
	RecalcBatchAmount    = "disbursement_amount"
)

// SettlementMetrics records counters for the disbursement and reconciliation flows.
// A nil *SettlementMetrics is valid and records nothing.
type SettlementMetrics struct {
	batchesCreated  *Counter
	requestsBatched *Counter
	confirmations   *Counter
	recalculations  *Counter
	recalcDuration  *Histogram
	recalcFailures  *Counter
}

// NewSettlementMetrics creates the settlement instruments on meter
func NewSettlementMetrics(meter metric.Meter) (*SettlementMetrics, error) {
	if meter == nil {
		return nil, errors.New("NewSettlementMetrics: meter cannot be nil")
	}

	var (
		m   SettlementMetrics
		err error
	)
	if m.batchesCreated, err = NewCounter(meter, "settlement_disbursement_orders_created_total",
		"Disbursement orders created", "{order}"); err != nil {
		return nil, err
	}
	if m.requestsBatched, err = NewCounter(meter, "settlement_payment_requests_batched_total",
		"Payment requests assigned to a disbursement order", "{request}"); err != nil {
		return nil, err
	}
	if m.confirmations, err = NewCounter(meter, "settlement_disbursement_confirmations_total",
		"Disbursement confirmation attempts by outcome", "{attempt}"); err != nil {
		return nil, err
	}
	if m.recalculations, err = NewCounter(meter, "settlement_recalculations_total",
		"Derived-field recalculations by kind", "{recalculation}"); err != nil {
		return nil, err
	}
	if m.recalcFailures, err = NewCounter(meter, "settlement_recalculation_failures_total",
		"Recalculations that failed on store I/O", "{recalculation}"); err != nil {
		return nil, err
	}
	if m.recalcDuration, err = NewHistogram(meter, "settlement_recalculation_duration_seconds",
		"Recalculation latency", "s", DurationBuckets...); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordBatchCreated counts a new disbursement order
func (m *SettlementMetrics) RecordBatchCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.batchesCreated.Inc(ctx)
}

// RecordRequestsBatched counts requests assigned to a batch
func (m *SettlementMetrics) RecordRequestsBatched(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.requestsBatched.Add(ctx, int64(n))
}

// RecordConfirmation counts a ConfirmOrder call by outcome
func (m *SettlementMetrics) RecordConfirmation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.confirmations.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordRecalculation counts a recalculation and its latency; err marks it failed
func (m *SettlementMetrics) RecordRecalculation(ctx context.Context, kind string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attr := AttrKind.String(kind)
	m.recalculations.Inc(ctx, attr)
	m.recalcDuration.RecordDuration(ctx, elapsed, attr)
	if err != nil {
		m.recalcFailures.Inc(ctx, attr)
	}
}
