package finance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"github.com/tourdesk/backoffice/internal/infrastructure/cache"
	"go.uber.org/zap"
)

var aggregationTime = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

type tourFixture struct {
	*receiptFixture
	aggregator *TourAggregator
}

func newTourFixture(t *testing.T) *tourFixture {
	t.Helper()
	rf := newReceiptFixture(t)
	aggregator := NewTourAggregator(rf.store.tours, rf.store.orders, rf.store.receipts, rf.store.requests, rf.reconciler, zap.NewNop(),
		WithAggregatorClock(fixedClock(aggregationTime)),
		WithAggregatorLocker(cache.NewInMemoryEntityLocker()),
		WithReconcileConcurrency(2),
	)
	return &tourFixture{receiptFixture: rf, aggregator: aggregator}
}

// confirmedRequest seeds a request and marks it confirmed under a throwaway batch id
func (f *tourFixture) confirmedRequest(t *testing.T, orderID uuid.UUID, amount string, supplier finance.SupplierType) *finance.PaymentRequest {
	t.Helper()
	pr := f.store.seedRequest(t, orderID, amount, supplier)
	batchID := uuid.New()
	require.NoError(t, f.store.requests.UpdateStatus(context.Background(), pr.ID, finance.PaymentRequestStatusConfirmed, &batchID))
	return pr
}

func (f *tourFixture) seedTourLedger(t *testing.T) (*finance.Order, *finance.Order) {
	t.Helper()
	o1 := f.store.seedOrder(t, f.tour.ID, "50000")
	o2 := f.store.seedOrder(t, f.tour.ID, "30000")

	f.confirm(t, f.receipt(t, o1.ID, "30000").ID)
	f.confirm(t, f.receipt(t, o1.ID, "20000").ID)
	f.confirm(t, f.receipt(t, o2.ID, "10000").ID)
	f.receipt(t, o2.ID, "20000") // pending, not revenue
	deleted := f.receipt(t, o2.ID, "5000")
	f.confirm(t, deleted.ID)
	_, err := f.service.DeleteReceipt(context.Background(), deleted.ID)
	require.NoError(t, err)

	f.confirmedRequest(t, o1.ID, "12000", finance.SupplierTypeHotel)
	f.confirmedRequest(t, o2.ID, "8000", finance.SupplierTypeTransport)
	f.confirmedRequest(t, o2.ID, "3000", finance.SupplierTypeBonus) // profit distribution, not cost
	f.store.seedRequest(t, o1.ID, "999", finance.SupplierTypeGuide) // pending, not cost

	// An unrelated tour must not leak in
	other := f.store.seedTour(t)
	stranger := f.store.seedOrder(t, other.ID, "100")
	f.confirm(t, f.receipt(t, stranger.ID, "100").ID)
	f.confirmedRequest(t, stranger.ID, "70", finance.SupplierTypeHotel)
	return o1, o2
}

func TestTourAggregator_RecalculateTourFinancials(t *testing.T) {
	ctx := context.Background()
	f := newTourFixture(t)
	f.seedTourLedger(t)

	fin, err := f.aggregator.RecalculateTourFinancials(ctx, f.tour.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, fin.OrderCount)
	assert.True(t, fin.TotalRevenue.Equal(dec("60000")), "revenue %s", fin.TotalRevenue)
	assert.True(t, fin.TotalCost.Equal(dec("20000")), "cost %s", fin.TotalCost)
	assert.True(t, fin.GrossProfit.Equal(dec("40000")), "profit %s", fin.GrossProfit)

	stored, err := f.store.tours.FindByID(ctx, f.tour.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalRevenue.Equal(dec("60000")))
	assert.True(t, stored.TotalCost.Equal(dec("20000")))
	assert.True(t, stored.GrossProfit.Equal(dec("40000")))
	require.NotNil(t, stored.FinancialsAt)
	assert.True(t, stored.FinancialsAt.Equal(aggregationTime))
}

func TestTourAggregator_RecalculateTourFinancials_IgnoresStaleOrderCache(t *testing.T) {
	ctx := context.Background()
	f := newTourFixture(t)
	o1, _ := f.seedTourLedger(t)

	require.NoError(t, f.store.db.Table("orders").Where("id = ?", o1.ID).Update("paid_amount", "1").Error)

	fin, err := f.aggregator.RecalculateTourFinancials(ctx, f.tour.ID)
	require.NoError(t, err)
	assert.True(t, fin.TotalRevenue.Equal(dec("60000")))
}

func TestTourAggregator_EmptyAndUnknownTours(t *testing.T) {
	ctx := context.Background()
	f := newTourFixture(t)

	fin, err := f.aggregator.RecalculateTourFinancials(ctx, f.tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fin.OrderCount)
	assert.True(t, fin.GrossProfit.IsZero())

	_, err = f.aggregator.RecalculateTourFinancials(ctx, uuid.New())
	assert.True(t, shared.IsNotFound(err))
	_, err = f.aggregator.ReconcileTour(ctx, uuid.New())
	assert.True(t, shared.IsNotFound(err))
}

func TestTourAggregator_ReconcileTour(t *testing.T) {
	ctx := context.Background()
	f := newTourFixture(t)
	o1, o2 := f.seedTourLedger(t)

	for _, id := range []uuid.UUID{o1.ID, o2.ID} {
		require.NoError(t, f.store.db.Table("orders").Where("id = ?", id).
			Updates(map[string]any{"paid_amount": "0", "remaining_amount": "0", "payment_status": "unpaid"}).Error)
	}

	rec, err := f.aggregator.ReconcileTour(ctx, f.tour.ID)
	require.NoError(t, err)
	require.Len(t, rec.Orders, 2)
	assert.True(t, rec.Financials.GrossProfit.Equal(dec("40000")))

	assertPayment(t, f.store.order(t, o1.ID), "50000", "0", finance.PaymentStatusPaid)
	assertPayment(t, f.store.order(t, o2.ID), "10000", "20000", finance.PaymentStatusPartial)
}

func TestTourFinancialsRefresher(t *testing.T) {
	ctx := context.Background()

	t.Run("receipt events refresh the tour when enabled", func(t *testing.T) {
		f := newTourFixture(t)
		order := f.store.seedOrder(t, f.tour.ID, "500")
		r := f.receipt(t, order.ID, "500")
		res := f.confirm(t, r.ID)

		h := NewTourFinancialsRefresher(f.aggregator, f.store.orders, f.store.requests, true, zap.NewNop())
		assert.Contains(t, h.EventTypes(), finance.EventTypeReceiptConfirmed)
		require.NoError(t, h.Handle(ctx, finance.NewReceiptChangedEvent(res.Receipt, finance.EventTypeReceiptConfirmed)))

		stored, err := f.store.tours.FindByID(ctx, f.tour.ID)
		require.NoError(t, err)
		assert.True(t, stored.TotalRevenue.Equal(dec("500")))
	})

	t.Run("receipt events are ignored when disabled", func(t *testing.T) {
		f := newTourFixture(t)
		h := NewTourFinancialsRefresher(f.aggregator, f.store.orders, f.store.requests, false, zap.NewNop())
		assert.Equal(t, []string{finance.EventTypeDisbursementOrderConfirmed}, h.EventTypes())

		order := f.store.seedOrder(t, f.tour.ID, "500")
		res := f.confirm(t, f.receipt(t, order.ID, "500").ID)
		require.NoError(t, h.Handle(ctx, finance.NewReceiptChangedEvent(res.Receipt, finance.EventTypeReceiptConfirmed)))

		stored, err := f.store.tours.FindByID(ctx, f.tour.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.FinancialsAt)
	})

	t.Run("disbursement confirmation refreshes every touched tour", func(t *testing.T) {
		f := newTourFixture(t)
		second := f.store.seedTour(t)
		o1 := f.store.seedOrder(t, f.tour.ID, "100")
		o2 := f.store.seedOrder(t, second.ID, "100")
		pr1 := f.store.seedRequest(t, o1.ID, "40", finance.SupplierTypeHotel)
		pr2 := f.store.seedRequest(t, o2.ID, "25", finance.SupplierTypeHotel)

		b, _ := newTestBatcher(f.store)
		batch, err := b.CreateWithRequests(ctx, CreateDisbursementInput{PaymentRequestIDs: ids(pr1, pr2)})
		require.NoError(t, err)
		w := NewConfirmationWorkflow(f.store.disbursements, f.store.requests, zap.NewNop())
		_, err = w.ConfirmOrder(ctx, batch.ID, uuid.New())
		require.NoError(t, err)

		h := NewTourFinancialsRefresher(f.aggregator, f.store.orders, f.store.requests, false, zap.NewNop())
		require.NoError(t, h.Handle(ctx, finance.NewDisbursementOrderConfirmedEvent(batch, uuid.New(), aggregationTime)))

		t1, err := f.store.tours.FindByID(ctx, f.tour.ID)
		require.NoError(t, err)
		t2, err := f.store.tours.FindByID(ctx, second.ID)
		require.NoError(t, err)
		assert.True(t, t1.TotalCost.Equal(dec("40")))
		assert.True(t, t2.TotalCost.Equal(dec("25")))
		assert.True(t, t2.GrossProfit.Equal(dec("-25")))
	})
}
