package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
)

var repoThursday = time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

func newRepoDisbursementOrder(t *testing.T, number string, date time.Time, ids ...uuid.UUID) *finance.DisbursementOrder {
	t.Helper()
	if len(ids) == 0 {
		ids = []uuid.UUID{uuid.New()}
	}
	o, err := finance.NewDisbursementOrder(number, date, ids, decimal.NewFromInt(100), "weekly run")
	require.NoError(t, err)
	return o
}

func TestGormDisbursementOrderRepository_CreateAndFind(t *testing.T) {
	repo := NewGormDisbursementOrderRepository(newTestDB(t))
	ctx := context.Background()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	order := newRepoDisbursementOrder(t, "P240104A", repoThursday, ids...)
	require.NoError(t, repo.Create(ctx, order))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "P240104A", found.OrderNumber)
	assert.Equal(t, ids, found.PaymentRequestIDs)
	assert.True(t, repoThursday.Equal(found.DisbursementDate))
	assert.Equal(t, finance.DisbursementOrderStatusPending, found.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(found.Amount))
	assert.Empty(t, found.GetDomainEvents())

	missing, err := repo.FindByID(ctx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGormDisbursementOrderRepository_SaveReplacesMembership(t *testing.T) {
	repo := NewGormDisbursementOrderRepository(newTestDB(t))
	ctx := context.Background()
	first, second, third := uuid.New(), uuid.New(), uuid.New()

	order := newRepoDisbursementOrder(t, "P240104A", repoThursday, first, second)
	require.NoError(t, repo.Create(ctx, order))

	require.NoError(t, order.RemovePaymentRequest(first))
	_, err := order.AddPaymentRequests([]uuid.UUID{third})
	require.NoError(t, err)
	require.NoError(t, order.ApplyAmount(decimal.NewFromInt(75)))
	require.NoError(t, repo.Save(ctx, order))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{second, third}, found.PaymentRequestIDs)
	assert.True(t, decimal.NewFromInt(75).Equal(found.Amount))
	assert.Equal(t, order.Version, found.Version)

	operator := uuid.New()
	at := time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, order.MarkConfirmed(operator, at))
	require.NoError(t, repo.Save(ctx, order))

	found, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.DisbursementOrderStatusConfirmed, found.Status)
	require.NotNil(t, found.ConfirmedBy)
	assert.Equal(t, operator, *found.ConfirmedBy)
	require.NotNil(t, found.ConfirmedAt)
	assert.True(t, at.Equal(*found.ConfirmedAt))

	order.RevertToPending()
	require.NoError(t, repo.Save(ctx, order))
	found, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.DisbursementOrderStatusPending, found.Status)
	assert.Nil(t, found.ConfirmedBy)
	assert.Nil(t, found.ConfirmedAt)
}

func TestGormDisbursementOrderRepository_UpdateAmount(t *testing.T) {
	repo := NewGormDisbursementOrderRepository(newTestDB(t))
	ctx := context.Background()
	members := []uuid.UUID{uuid.New(), uuid.New()}
	order := newRepoDisbursementOrder(t, "P240104A", repoThursday, members...)
	require.NoError(t, repo.Create(ctx, order))

	require.NoError(t, repo.UpdateAmount(ctx, order.ID, decimal.NewFromInt(460)))
	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(460).Equal(found.Amount))
	assert.Equal(t, members, found.PaymentRequestIDs)
	assert.Equal(t, order.Version+1, found.Version)

	require.NoError(t, found.MarkConfirmed(uuid.New(), time.Now()))
	require.NoError(t, repo.Save(ctx, found))
	err = repo.UpdateAmount(ctx, order.ID, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	err = repo.UpdateAmount(ctx, uuid.New(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
}

func TestGormDisbursementOrderRepository_SaveUnknown(t *testing.T) {
	repo := NewGormDisbursementOrderRepository(newTestDB(t))
	order := newRepoDisbursementOrder(t, "P240104A", repoThursday)

	err := repo.Save(context.Background(), order)
	assert.True(t, shared.IsNotFound(err))
}

func TestGormDisbursementOrderRepository_FindPendingByDate(t *testing.T) {
	repo := NewGormDisbursementOrderRepository(newTestDB(t))
	ctx := context.Background()

	confirmed := newRepoDisbursementOrder(t, "P240104A", repoThursday)
	require.NoError(t, confirmed.MarkConfirmed(uuid.New(), time.Now()))
	require.NoError(t, repo.Create(ctx, confirmed))

	laterPending := newRepoDisbursementOrder(t, "P240104C", repoThursday)
	require.NoError(t, repo.Create(ctx, laterPending))
	pending := newRepoDisbursementOrder(t, "P240104B", repoThursday)
	require.NoError(t, repo.Create(ctx, pending))

	found, err := repo.FindPendingByDate(ctx, repoThursday.Add(9*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, pending.ID, found.ID)

	none, err := repo.FindPendingByDate(ctx, repoThursday.AddDate(0, 0, 7))
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestGormDisbursementOrderRepository_CountByNumberPrefix(t *testing.T) {
	repo := NewGormDisbursementOrderRepository(newTestDB(t))
	ctx := context.Background()

	a := newRepoDisbursementOrder(t, "P240104A", repoThursday)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, newRepoDisbursementOrder(t, "P240104B", repoThursday)))
	require.NoError(t, repo.Create(ctx, newRepoDisbursementOrder(t, "P240111A", repoThursday.AddDate(0, 0, 7))))

	require.NoError(t, repo.Delete(ctx, a.ID))

	count, err := repo.CountByNumberPrefix(ctx, "P240104")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "soft-deleted batches still reserve their letter")

	deleted, err := repo.FindByID(ctx, a.ID)
	assert.NoError(t, err)
	assert.Nil(t, deleted)

	assert.True(t, shared.IsNotFound(repo.Delete(ctx, a.ID)))
}

func TestGormDisbursementOrderRepository_FindAll(t *testing.T) {
	repo := NewGormDisbursementOrderRepository(newTestDB(t))
	ctx := context.Background()

	for i, date := range []time.Time{repoThursday, repoThursday.AddDate(0, 0, 7), repoThursday.AddDate(0, 0, 14)} {
		number := finance.DisbursementOrderNumberPrefix(date) + "A"
		o := newRepoDisbursementOrder(t, number, date)
		if i == 0 {
			require.NoError(t, o.MarkConfirmed(uuid.New(), time.Now()))
		}
		require.NoError(t, repo.Create(ctx, o))
	}

	t.Run("all sorted by date descending by default", func(t *testing.T) {
		orders, total, err := repo.FindAll(ctx, finance.DisbursementOrderFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, orders, 3)
		assert.Equal(t, "P240118A", orders[0].OrderNumber)
		assert.Len(t, orders[0].PaymentRequestIDs, 1)
	})

	t.Run("status filter", func(t *testing.T) {
		status := finance.DisbursementOrderStatusPending
		orders, total, err := repo.FindAll(ctx, finance.DisbursementOrderFilter{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, orders, 2)
	})

	t.Run("date range and pagination", func(t *testing.T) {
		from := repoThursday.AddDate(0, 0, 1)
		filter := finance.DisbursementOrderFilter{
			Filter:   shared.Filter{Page: 1, PageSize: 1, OrderBy: "disbursement_date", OrderDir: "asc"},
			FromDate: &from,
		}
		orders, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, orders, 1)
		assert.Equal(t, "P240111A", orders[0].OrderNumber)
	})
}
