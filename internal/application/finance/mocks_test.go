package finance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
)

// MockPaymentRequestRepository is a mock implementation of PaymentRequestRepository
type MockPaymentRequestRepository struct {
	mock.Mock
}

func (m *MockPaymentRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.PaymentRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.PaymentRequest), args.Error(1)
}

func (m *MockPaymentRequestRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]finance.PaymentRequest, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.PaymentRequest), args.Error(1)
}

func (m *MockPaymentRequestRepository) FindByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]finance.PaymentRequest, error) {
	args := m.Called(ctx, orderIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.PaymentRequest), args.Error(1)
}

func (m *MockPaymentRequestRepository) Save(ctx context.Context, pr *finance.PaymentRequest) error {
	args := m.Called(ctx, pr)
	return args.Error(0)
}

func (m *MockPaymentRequestRepository) SaveWithLock(ctx context.Context, pr *finance.PaymentRequest) error {
	args := m.Called(ctx, pr)
	return args.Error(0)
}

func (m *MockPaymentRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status finance.PaymentRequestStatus, disbursementOrderID *uuid.UUID) error {
	args := m.Called(ctx, id, status, disbursementOrderID)
	return args.Error(0)
}

// MockDisbursementOrderRepository is a mock implementation of DisbursementOrderRepository
type MockDisbursementOrderRepository struct {
	mock.Mock
}

func (m *MockDisbursementOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.DisbursementOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.DisbursementOrder), args.Error(1)
}

func (m *MockDisbursementOrderRepository) FindPendingByDate(ctx context.Context, date time.Time) (*finance.DisbursementOrder, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.DisbursementOrder), args.Error(1)
}

func (m *MockDisbursementOrderRepository) CountByNumberPrefix(ctx context.Context, prefix string) (int64, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDisbursementOrderRepository) FindAll(ctx context.Context, filter finance.DisbursementOrderFilter) ([]finance.DisbursementOrder, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]finance.DisbursementOrder), args.Get(1).(int64), args.Error(2)
}

func (m *MockDisbursementOrderRepository) Create(ctx context.Context, order *finance.DisbursementOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockDisbursementOrderRepository) Save(ctx context.Context, order *finance.DisbursementOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockDisbursementOrderRepository) UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockDisbursementOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

var (
	_ finance.PaymentRequestRepository    = (*MockPaymentRequestRepository)(nil)
	_ finance.DisbursementOrderRepository = (*MockDisbursementOrderRepository)(nil)
	_ shared.EventPublisher               = (*recordingPublisher)(nil)
)
