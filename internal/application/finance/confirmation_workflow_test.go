package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var errStoreDown = errors.New("store unavailable")

// faultyRequestRepo fails UpdateStatus for chosen (id, status) pairs
type faultyRequestRepo struct {
	finance.PaymentRequestRepository
	faults map[uuid.UUID]finance.PaymentRequestStatus
}

func (r *faultyRequestRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status finance.PaymentRequestStatus, orderID *uuid.UUID) error {
	if s, ok := r.faults[id]; ok && s == status {
		return errStoreDown
	}
	return r.PaymentRequestRepository.UpdateStatus(ctx, id, status, orderID)
}

type confirmationFixture struct {
	store    *settlementStore
	requests *faultyRequestRepo
	order    *finance.DisbursementOrder
	members  []*finance.PaymentRequest
	pub      *recordingPublisher
	workflow *ConfirmationWorkflow
}

func newConfirmationFixture(t *testing.T, logger *zap.Logger) *confirmationFixture {
	t.Helper()
	store := newSettlementStore(t)
	b, _ := newTestBatcher(store)

	orderID := uuid.New()
	members := []*finance.PaymentRequest{
		store.seedRequest(t, orderID, "10000", finance.SupplierTypeHotel),
		store.seedRequest(t, orderID, "20000", finance.SupplierTypeTransport),
		store.seedRequest(t, orderID, "15000", finance.SupplierTypeGuide),
	}
	order, err := b.CreateWithRequests(context.Background(), CreateDisbursementInput{PaymentRequestIDs: ids(members...)})
	require.NoError(t, err)

	requests := &faultyRequestRepo{PaymentRequestRepository: store.requests, faults: map[uuid.UUID]finance.PaymentRequestStatus{}}
	pub := &recordingPublisher{}
	workflow := NewConfirmationWorkflow(store.disbursements, requests, logger,
		WithWorkflowClock(fixedClock(time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC))),
		WithWorkflowPublisher(pub),
	)
	return &confirmationFixture{store: store, requests: requests, order: order, members: members, pub: pub, workflow: workflow}
}

func phasesOf(r *finance.ConfirmationReport) []finance.ConfirmationPhase {
	out := make([]finance.ConfirmationPhase, 0, len(r.Phases))
	for _, p := range r.Phases {
		out = append(out, p.To)
	}
	return out
}

func TestConfirmationWorkflow_ConfirmOrder(t *testing.T) {
	ctx := context.Background()
	f := newConfirmationFixture(t, zap.NewNop())
	by := uuid.New()

	report, err := f.workflow.ConfirmOrder(ctx, f.order.ID, by)
	require.NoError(t, err)

	assert.Equal(t, finance.ConfirmationPhaseConfirmed, report.Phase)
	assert.Equal(t, []finance.ConfirmationPhase{
		finance.ConfirmationPhaseConfirming,
		finance.ConfirmationPhaseConfirmed,
	}, phasesOf(report))
	assert.Equal(t, ids(f.members...), report.ConfirmedRequestIDs)

	stored := f.store.disbursement(t, f.order.ID)
	assert.Equal(t, finance.DisbursementOrderStatusConfirmed, stored.Status)
	require.NotNil(t, stored.ConfirmedBy)
	assert.Equal(t, by, *stored.ConfirmedBy)
	require.NotNil(t, stored.ConfirmedAt)
	for _, pr := range f.members {
		assert.Equal(t, finance.PaymentRequestStatusConfirmed, f.store.requestStatus(t, pr.ID))
	}
	assert.Equal(t, []string{finance.EventTypeDisbursementOrderConfirmed}, f.pub.types())

	t.Run("confirmed order is terminal", func(t *testing.T) {
		_, err := f.workflow.ConfirmOrder(ctx, f.order.ID, by)
		assert.Equal(t, "DISBURSEMENT_NOT_PENDING", errCode(err))
		assert.True(t, shared.IsValidation(err))
	})
}

func TestConfirmationWorkflow_ConfirmOrder_NotFound(t *testing.T) {
	f := newConfirmationFixture(t, zap.NewNop())
	report, err := f.workflow.ConfirmOrder(context.Background(), uuid.New(), uuid.New())
	assert.Nil(t, report)
	assert.True(t, shared.IsNotFound(err))
}

// The 2nd of 3 members fails: the order stays pending, #1 reverts to processing
// and #2/#3 are never touched.
func TestConfirmationWorkflow_ConfirmOrder_RollsBackPartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newConfirmationFixture(t, zap.NewNop())
	first, second, third := f.members[0], f.members[1], f.members[2]
	f.requests.faults[second.ID] = finance.PaymentRequestStatusConfirmed

	report, err := f.workflow.ConfirmOrder(ctx, f.order.ID, uuid.New())
	require.Error(t, err)

	var rbErr *finance.ConfirmationRollbackError
	require.ErrorAs(t, err, &rbErr)
	assert.Equal(t, finance.ConfirmationStepConfirmRequest, rbErr.Step)
	require.NotNil(t, rbErr.PaymentRequestID)
	assert.Equal(t, second.ID, *rbErr.PaymentRequestID)
	assert.ErrorIs(t, err, errStoreDown)
	assert.False(t, rbErr.NeedsManualReconciliation())

	require.NotNil(t, report)
	assert.Equal(t, finance.ConfirmationPhaseRolledBack, report.Phase)
	assert.Equal(t, []finance.ConfirmationPhase{
		finance.ConfirmationPhaseConfirming,
		finance.ConfirmationPhaseRollingBack,
		finance.ConfirmationPhaseRolledBack,
	}, phasesOf(report))
	assert.Equal(t, []uuid.UUID{first.ID}, report.RevertedRequestIDs)

	stored := f.store.disbursement(t, f.order.ID)
	assert.Equal(t, finance.DisbursementOrderStatusPending, stored.Status)
	assert.Nil(t, stored.ConfirmedBy)
	assert.Nil(t, stored.ConfirmedAt)
	assert.Equal(t, finance.PaymentRequestStatusProcessing, f.store.requestStatus(t, first.ID))
	assert.Equal(t, finance.PaymentRequestStatusProcessing, f.store.requestStatus(t, second.ID))
	assert.Equal(t, finance.PaymentRequestStatusProcessing, f.store.requestStatus(t, third.ID))
	assert.Equal(t, []string{finance.EventTypeDisbursementOrderRolledBack}, f.pub.types())

	t.Run("retry succeeds once the fault clears", func(t *testing.T) {
		delete(f.requests.faults, second.ID)
		report, err := f.workflow.ConfirmOrder(ctx, f.order.ID, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, finance.ConfirmationPhaseConfirmed, report.Phase)
		for _, pr := range f.members {
			assert.Equal(t, finance.PaymentRequestStatusConfirmed, f.store.requestStatus(t, pr.ID))
		}
	})
}

func TestConfirmationWorkflow_ConfirmOrder_CompensationFailureIsSurfaced(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	f := newConfirmationFixture(t, zap.New(core))
	first, second, third := f.members[0], f.members[1], f.members[2]
	f.requests.faults[second.ID] = finance.PaymentRequestStatusConfirmed
	f.requests.faults[first.ID] = finance.PaymentRequestStatusProcessing

	report, err := f.workflow.ConfirmOrder(ctx, f.order.ID, uuid.New())

	var rbErr *finance.ConfirmationRollbackError
	require.ErrorAs(t, err, &rbErr)
	assert.True(t, rbErr.NeedsManualReconciliation())
	require.Len(t, rbErr.CompensationFailures, 1)
	assert.Equal(t, first.ID, rbErr.CompensationFailures[0].Target)
	assert.Equal(t, "revert_payment_request", rbErr.CompensationFailures[0].Action)

	assert.Equal(t, finance.ConfirmationPhaseInconsistent, report.Phase)
	assert.Empty(t, report.RevertedRequestIDs)

	// The rollback kept going past the failed revert
	assert.Equal(t, finance.DisbursementOrderStatusPending, f.store.disbursement(t, f.order.ID).Status)
	assert.Equal(t, finance.PaymentRequestStatusConfirmed, f.store.requestStatus(t, first.ID))
	assert.Equal(t, finance.PaymentRequestStatusProcessing, f.store.requestStatus(t, third.ID))

	assert.Equal(t, []string{
		finance.EventTypeDisbursementOrderRolledBack,
		finance.EventTypeDisbursementReconciliationRequired,
	}, f.pub.types())
	assert.Equal(t, 1, logs.FilterMessage("Failed to revert payment request during rollback").Len())
	assert.Equal(t, 1, logs.FilterMessage("Disbursement rollback incomplete, manual reconciliation required").Len())
}

func TestConfirmationWorkflow_ConfirmOrder_MarkOrderFails(t *testing.T) {
	ctx := context.Background()
	orders := new(MockDisbursementOrderRepository)
	requests := new(MockPaymentRequestRepository)
	pub := &recordingPublisher{}
	w := NewConfirmationWorkflow(orders, requests, zap.NewNop(), WithWorkflowPublisher(pub))

	order, err := finance.NewDisbursementOrder("P240104A", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		[]uuid.UUID{uuid.New()}, dec("10"), "")
	require.NoError(t, err)

	orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	orders.On("Save", mock.Anything, order).Return(errStoreDown).Once()

	report, err := w.ConfirmOrder(ctx, order.ID, uuid.New())

	var rbErr *finance.ConfirmationRollbackError
	require.ErrorAs(t, err, &rbErr)
	assert.Equal(t, finance.ConfirmationStepMarkOrder, rbErr.Step)
	assert.Nil(t, rbErr.PaymentRequestID)
	assert.Equal(t, finance.ConfirmationPhaseRolledBack, report.Phase)
	assert.Equal(t, finance.DisbursementOrderStatusPending, order.Status)
	assert.Nil(t, order.ConfirmedBy)

	requests.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	orders.AssertExpectations(t)
}

func TestConfirmationWorkflow_ConfirmOrder_LoadRequestsFails(t *testing.T) {
	ctx := context.Background()
	orders := new(MockDisbursementOrderRepository)
	requests := new(MockPaymentRequestRepository)
	w := NewConfirmationWorkflow(orders, requests, zap.NewNop())

	order, err := finance.NewDisbursementOrder("P240104A", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		[]uuid.UUID{uuid.New()}, dec("10"), "")
	require.NoError(t, err)

	orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	orders.On("Save", mock.Anything, order).Return(nil).Twice()
	requests.On("FindByIDs", mock.Anything, order.PaymentRequestIDs).Return(nil, errStoreDown)

	report, err := w.ConfirmOrder(ctx, order.ID, uuid.New())

	var rbErr *finance.ConfirmationRollbackError
	require.ErrorAs(t, err, &rbErr)
	assert.Equal(t, finance.ConfirmationStepLoadRequests, rbErr.Step)
	assert.Equal(t, finance.ConfirmationPhaseRolledBack, report.Phase)
	assert.Equal(t, finance.DisbursementOrderStatusPending, order.Status)
	orders.AssertExpectations(t)
}
