package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"github.com/tourdesk/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReceiptRepository implements finance.ReceiptRepository using GORM
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// FindByID finds a receipt by ID
func (r *GormReceiptRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Receipt, error) {
	var model models.ReceiptModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrder lists the receipts of an order in receipt-date order
func (r *GormReceiptRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]finance.Receipt, error) {
	var rows []models.ReceiptModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("receipt_date ASC, receipt_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return receiptsToDomain(rows), nil
}

// FindConfirmedByOrder lists confirmed receipts of an order
func (r *GormReceiptRepository) FindConfirmedByOrder(ctx context.Context, orderID uuid.UUID) ([]finance.Receipt, error) {
	var rows []models.ReceiptModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, finance.ReceiptStatusConfirmed).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return receiptsToDomain(rows), nil
}

// FindConfirmedByOrderIDs lists confirmed receipts across several orders
func (r *GormReceiptRepository) FindConfirmedByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]finance.Receipt, error) {
	if len(orderIDs) == 0 {
		return []finance.Receipt{}, nil
	}
	var rows []models.ReceiptModel
	if err := r.db.WithContext(ctx).
		Where("order_id IN ? AND status = ?", orderIDs, finance.ReceiptStatusConfirmed).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return receiptsToDomain(rows), nil
}

// Save creates or updates a receipt. A set DeletedAt soft deletes it.
func (r *GormReceiptRepository) Save(ctx context.Context, receipt *finance.Receipt) error {
	model := models.ReceiptModelFromDomain(receipt)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking. The soft-delete scope keeps a
// stale copy from resurrecting a deleted receipt.
func (r *GormReceiptRepository) SaveWithLock(ctx context.Context, receipt *finance.Receipt) error {
	model := models.ReceiptModelFromDomain(receipt)
	result := r.db.WithContext(ctx).
		Model(&models.ReceiptModel{}).
		Where("id = ? AND version = ?", receipt.ID, receipt.Version-1).
		Select("amount", "actual_amount", "status", "payment_method", "receipt_date",
			"confirmed_by", "confirmed_at", "remark", "deleted_at", "version", "updated_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func receiptsToDomain(rows []models.ReceiptModel) []finance.Receipt {
	out := make([]finance.Receipt, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormReceiptRepository implements ReceiptRepository
var _ finance.ReceiptRepository = (*GormReceiptRepository)(nil)
