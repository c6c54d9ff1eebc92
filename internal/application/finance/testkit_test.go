package finance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/infrastructure/persistence"
	"github.com/tourdesk/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// wednesdayMorning is a Wednesday, so the next disbursement day is 2024-01-04
var wednesdayMorning = time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// settlementStore is the gorm-backed record store over in-memory SQLite
type settlementStore struct {
	db            *gorm.DB
	tours         *persistence.GormTourRepository
	orders        *persistence.GormOrderRepository
	receipts      *persistence.GormReceiptRepository
	requests      *persistence.GormPaymentRequestRepository
	disbursements *persistence.GormDisbursementOrderRepository
}

func newSettlementStore(t *testing.T) *settlementStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return &settlementStore{
		db:            db,
		tours:         persistence.NewGormTourRepository(db),
		orders:        persistence.NewGormOrderRepository(db),
		receipts:      persistence.NewGormReceiptRepository(db),
		requests:      persistence.NewGormPaymentRequestRepository(db),
		disbursements: persistence.NewGormDisbursementOrderRepository(db),
	}
}

func (s *settlementStore) seedTour(t *testing.T) *finance.Tour {
	t.Helper()
	tour, err := finance.NewTour("T-"+uuid.NewString()[:8], "Silk Road")
	require.NoError(t, err)
	require.NoError(t, s.tours.Save(context.Background(), tour))
	return tour
}

func (s *settlementStore) seedOrder(t *testing.T, tourID uuid.UUID, total string) *finance.Order {
	t.Helper()
	order, err := finance.NewOrder("O-"+uuid.NewString()[:8], tourID, dec(total))
	require.NoError(t, err)
	require.NoError(t, s.orders.Save(context.Background(), order))
	return order
}

func (s *settlementStore) seedRequest(t *testing.T, orderID uuid.UUID, amount string, supplier finance.SupplierType) *finance.PaymentRequest {
	t.Helper()
	pr, err := finance.NewPaymentRequest("PR-"+uuid.NewString()[:8], orderID, dec(amount), supplier, "Supplier", "")
	require.NoError(t, err)
	require.NoError(t, s.requests.Save(context.Background(), pr))
	return pr
}

func (s *settlementStore) requestStatus(t *testing.T, id uuid.UUID) finance.PaymentRequestStatus {
	t.Helper()
	pr, err := s.requests.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, pr)
	return pr.Status
}

func (s *settlementStore) disbursement(t *testing.T, id uuid.UUID) *finance.DisbursementOrder {
	t.Helper()
	o, err := s.disbursements.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, o)
	return o
}

func (s *settlementStore) order(t *testing.T, id uuid.UUID) *finance.Order {
	t.Helper()
	o, err := s.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, o)
	return o
}

func ids(requests ...*finance.PaymentRequest) []uuid.UUID {
	out := make([]uuid.UUID, len(requests))
	for i, pr := range requests {
		out[i] = pr.ID
	}
	return out
}
