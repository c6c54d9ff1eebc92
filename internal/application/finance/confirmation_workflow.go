package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"github.com/tourdesk/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Compensation actions recorded on CompensationFailure
const (
	compensationRevertRequest = "revert_payment_request"
	compensationRevertOrder   = "revert_disbursement_order"
)

// ConfirmationWorkflow confirms a disbursement order and its member requests.
// The writes are independent, so a failure part way through is undone by
// compensating writes rather than a store transaction.
type ConfirmationWorkflow struct {
	orders    finance.DisbursementOrderRepository
	requests  finance.PaymentRequestRepository
	locker    shared.EntityLocker
	publisher shared.EventPublisher
	metrics   *telemetry.SettlementMetrics
	logger    *zap.Logger
	clock     func() time.Time
}

// WorkflowOption configures a ConfirmationWorkflow
type WorkflowOption func(*ConfirmationWorkflow)

// WithWorkflowClock overrides time.Now
func WithWorkflowClock(clock func() time.Time) WorkflowOption {
	return func(w *ConfirmationWorkflow) { w.clock = clock }
}

// WithWorkflowLocker serializes confirmation with membership edits
func WithWorkflowLocker(locker shared.EntityLocker) WorkflowOption {
	return func(w *ConfirmationWorkflow) { w.locker = locker }
}

// WithWorkflowPublisher publishes confirmation and rollback events
func WithWorkflowPublisher(publisher shared.EventPublisher) WorkflowOption {
	return func(w *ConfirmationWorkflow) { w.publisher = publisher }
}

// WithWorkflowMetrics records confirmation outcomes
func WithWorkflowMetrics(metrics *telemetry.SettlementMetrics) WorkflowOption {
	return func(w *ConfirmationWorkflow) { w.metrics = metrics }
}

// NewConfirmationWorkflow creates a new ConfirmationWorkflow
func NewConfirmationWorkflow(
	orders finance.DisbursementOrderRepository,
	requests finance.PaymentRequestRepository,
	logger *zap.Logger,
	opts ...WorkflowOption,
) *ConfirmationWorkflow {
	w := &ConfirmationWorkflow{
		orders:   orders,
		requests: requests,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ConfirmOrder confirms the order and every member request. On failure the
// confirmed members and the order are reverted and a
// *finance.ConfirmationRollbackError is returned together with the report.
// The batch is then pending again, unless the error reports
// NeedsManualReconciliation.
func (w *ConfirmationWorkflow) ConfirmOrder(ctx context.Context, orderID, confirmedBy uuid.UUID) (*finance.ConfirmationReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "disbursement", "confirm_order",
		telemetry.SpanAttrDisbursementOrderID, orderID,
	)
	defer span.End()

	var report *finance.ConfirmationReport
	err := withLock(ctx, w.locker, disbursementLockKey(orderID), func(ctx context.Context) error {
		var err error
		report, err = w.confirm(ctx, orderID, confirmedBy)
		return err
	})
	if report != nil {
		telemetry.SetAttributes(span,
			telemetry.SpanAttrOrderNumber, report.OrderNumber,
			telemetry.SpanAttrPhase, report.Phase.String(),
		)
	}
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return report, err
}

func (w *ConfirmationWorkflow) confirm(ctx context.Context, orderID, confirmedBy uuid.UUID) (*finance.ConfirmationReport, error) {
	order, err := w.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load disbursement order: %w", err)
	}
	if order == nil {
		w.metrics.RecordConfirmation(ctx, telemetry.OutcomeRejected)
		return nil, finance.ErrDisbursementOrderNotFound(orderID)
	}
	if err := order.EnsurePending(); err != nil {
		w.metrics.RecordConfirmation(ctx, telemetry.OutcomeRejected)
		return nil, err
	}

	now := w.clock()
	report := finance.NewConfirmationReport(order)
	report.Advance(finance.ConfirmationPhaseConfirming, now)

	if err := order.MarkConfirmed(confirmedBy, now); err != nil {
		w.metrics.RecordConfirmation(ctx, telemetry.OutcomeRejected)
		return nil, err
	}
	if err := w.orders.Save(ctx, order); err != nil {
		// Nothing was written, so the rollback has nothing to undo in the store.
		order.RevertToPending()
		return report, w.finishRollback(ctx, report, &finance.ConfirmationRollbackError{
			DisbursementOrderID: order.ID,
			OrderNumber:         order.OrderNumber,
			Step:                finance.ConfirmationStepMarkOrder,
			Cause:               err,
		})
	}

	members, err := w.requests.FindByIDs(ctx, order.PaymentRequestIDs)
	if err != nil {
		return report, w.rollback(ctx, order, report, &finance.ConfirmationRollbackError{
			DisbursementOrderID: order.ID,
			OrderNumber:         order.OrderNumber,
			Step:                finance.ConfirmationStepLoadRequests,
			Cause:               err,
		})
	}
	byID := make(map[uuid.UUID]*finance.PaymentRequest, len(members))
	for i := range members {
		byID[members[i].ID] = &members[i]
	}

	for _, id := range order.PaymentRequestIDs {
		if err := w.confirmRequest(ctx, order.ID, id, byID[id]); err != nil {
			failed := id
			return report, w.rollback(ctx, order, report, &finance.ConfirmationRollbackError{
				DisbursementOrderID: order.ID,
				OrderNumber:         order.OrderNumber,
				Step:                finance.ConfirmationStepConfirmRequest,
				PaymentRequestID:    &failed,
				Cause:               err,
			})
		}
		report.ConfirmedRequestIDs = append(report.ConfirmedRequestIDs, id)
	}

	report.Advance(finance.ConfirmationPhaseConfirmed, w.clock())
	publishEvents(ctx, w.publisher, w.logger, finance.NewDisbursementOrderConfirmedEvent(order, confirmedBy, now))
	w.metrics.RecordConfirmation(ctx, telemetry.OutcomeConfirmed)

	w.logger.Info("Disbursement order confirmed",
		zap.String("disbursement_order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("confirmed_by", confirmedBy.String()),
		zap.Int("request_count", len(report.ConfirmedRequestIDs)),
		zap.String("amount", order.Amount.String()),
	)
	return report, nil
}

func (w *ConfirmationWorkflow) confirmRequest(ctx context.Context, orderID, id uuid.UUID, pr *finance.PaymentRequest) error {
	if pr == nil {
		return finance.ErrPaymentRequestNotFound(id)
	}
	if err := pr.Confirm(); err != nil {
		return err
	}
	return w.requests.UpdateStatus(ctx, id, finance.PaymentRequestStatusConfirmed, &orderID)
}

// rollback reverts confirmed members to processing and the order to pending.
// A failing compensating write is recorded and the loop carries on.
func (w *ConfirmationWorkflow) rollback(
	ctx context.Context,
	order *finance.DisbursementOrder,
	report *finance.ConfirmationReport,
	rbErr *finance.ConfirmationRollbackError,
) error {
	report.Advance(finance.ConfirmationPhaseRollingBack, w.clock())
	w.logger.Warn("Disbursement confirmation failed, rolling back",
		zap.String("disbursement_order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("step", string(rbErr.Step)),
		zap.Int("confirmed_before_failure", len(report.ConfirmedRequestIDs)),
		zap.Error(rbErr.Cause),
	)

	// The caller may already have given up; compensation still has to run.
	cctx := context.WithoutCancel(ctx)
	for _, id := range report.ConfirmedRequestIDs {
		if err := w.requests.UpdateStatus(cctx, id, finance.PaymentRequestStatusProcessing, &order.ID); err != nil {
			rbErr.CompensationFailures = append(rbErr.CompensationFailures, finance.CompensationFailure{
				Target: id,
				Action: compensationRevertRequest,
				Err:    err,
			})
			w.logger.Error("Failed to revert payment request during rollback",
				zap.String("disbursement_order_id", order.ID.String()),
				zap.String("payment_request_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		report.RevertedRequestIDs = append(report.RevertedRequestIDs, id)
	}

	order.RevertToPending()
	if err := w.orders.Save(cctx, order); err != nil {
		rbErr.CompensationFailures = append(rbErr.CompensationFailures, finance.CompensationFailure{
			Target: order.ID,
			Action: compensationRevertOrder,
			Err:    err,
		})
		w.logger.Error("Failed to revert disbursement order during rollback",
			zap.String("disbursement_order_id", order.ID.String()),
			zap.Error(err),
		)
	}

	return w.finishRollback(ctx, report, rbErr)
}

func (w *ConfirmationWorkflow) finishRollback(ctx context.Context, report *finance.ConfirmationReport, rbErr *finance.ConfirmationRollbackError) error {
	if report.Phase == finance.ConfirmationPhaseConfirming {
		report.Advance(finance.ConfirmationPhaseRollingBack, w.clock())
	}

	events := []shared.DomainEvent{finance.NewDisbursementOrderRolledBackEvent(rbErr)}
	if rbErr.NeedsManualReconciliation() {
		report.Advance(finance.ConfirmationPhaseInconsistent, w.clock())
		events = append(events, finance.NewDisbursementReconciliationRequiredEvent(rbErr))
		w.metrics.RecordConfirmation(ctx, telemetry.OutcomeInconsistent)
		w.logger.Error("Disbursement rollback incomplete, manual reconciliation required",
			zap.String("disbursement_order_id", rbErr.DisbursementOrderID.String()),
			zap.String("order_number", rbErr.OrderNumber),
			zap.Int("compensation_failures", len(rbErr.CompensationFailures)),
		)
	} else {
		report.Advance(finance.ConfirmationPhaseRolledBack, w.clock())
		w.metrics.RecordConfirmation(ctx, telemetry.OutcomeRolledBack)
	}
	publishEvents(context.WithoutCancel(ctx), w.publisher, w.logger, events...)
	return rbErr
}
