package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"github.com/tourdesk/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRequestRepository implements finance.PaymentRequestRepository using GORM
type GormPaymentRequestRepository struct {
	db *gorm.DB
}

// NewGormPaymentRequestRepository creates a new GormPaymentRequestRepository
func NewGormPaymentRequestRepository(db *gorm.DB) *GormPaymentRequestRepository {
	return &GormPaymentRequestRepository{db: db}
}

// FindByID finds a payment request by ID
func (r *GormPaymentRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.PaymentRequest, error) {
	var model models.PaymentRequestModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs loads the given payment requests in request-number order
func (r *GormPaymentRequestRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]finance.PaymentRequest, error) {
	if len(ids) == 0 {
		return []finance.PaymentRequest{}, nil
	}
	var rows []models.PaymentRequestModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("request_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return paymentRequestsToDomain(rows), nil
}

// FindByOrderIDs loads every payment request of the given booking orders
func (r *GormPaymentRequestRepository) FindByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]finance.PaymentRequest, error) {
	if len(orderIDs) == 0 {
		return []finance.PaymentRequest{}, nil
	}
	var rows []models.PaymentRequestModel
	if err := r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("request_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return paymentRequestsToDomain(rows), nil
}

// Save creates or updates a payment request
func (r *GormPaymentRequestRepository) Save(ctx context.Context, pr *finance.PaymentRequest) error {
	model := models.PaymentRequestModelFromDomain(pr)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormPaymentRequestRepository) SaveWithLock(ctx context.Context, pr *finance.PaymentRequest) error {
	model := models.PaymentRequestModelFromDomain(pr)
	result := r.db.WithContext(ctx).
		Model(&models.PaymentRequestModel{}).
		Where("id = ? AND version = ?", pr.ID, pr.Version-1).
		Select("amount", "status", "supplier_type", "supplier_name", "notes",
			"disbursement_order_id", "deleted_at", "version", "updated_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// UpdateStatus writes status and batch membership in one statement
func (r *GormPaymentRequestRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status finance.PaymentRequestStatus,
	disbursementOrderID *uuid.UUID,
) error {
	var batch any
	if disbursementOrderID != nil {
		batch = *disbursementOrderID
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentRequestModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"disbursement_order_id": batch,
			"status":                status,
			"updated_at":            time.Now(),
			"version":               gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return finance.ErrPaymentRequestNotFound(id)
	}
	return nil
}

func paymentRequestsToDomain(rows []models.PaymentRequestModel) []finance.PaymentRequest {
	out := make([]finance.PaymentRequest, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormPaymentRequestRepository implements PaymentRequestRepository
var _ finance.PaymentRequestRepository = (*GormPaymentRequestRepository)(nil)
