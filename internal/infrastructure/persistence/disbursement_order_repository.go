package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"github.com/tourdesk/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormDisbursementOrderRepository implements finance.DisbursementOrderRepository using GORM.
// Membership is stored in disbursement_order_items and replaced wholesale on Save.
type GormDisbursementOrderRepository struct {
	db *gorm.DB
}

// NewGormDisbursementOrderRepository creates a new GormDisbursementOrderRepository
func NewGormDisbursementOrderRepository(db *gorm.DB) *GormDisbursementOrderRepository {
	return &GormDisbursementOrderRepository{db: db}
}

// FindByID finds a disbursement order by ID
func (r *GormDisbursementOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.DisbursementOrder, error) {
	var model models.DisbursementOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindPendingByDate returns the earliest-numbered pending batch for the date
func (r *GormDisbursementOrderRepository) FindPendingByDate(ctx context.Context, date time.Time) (*finance.DisbursementOrder, error) {
	var model models.DisbursementOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("disbursement_date = ? AND status = ?", finance.CalendarDate(date), finance.DisbursementOrderStatusPending).
		Order("order_number ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CountByNumberPrefix counts every batch ever numbered with prefix, soft-deleted ones included,
// so a freshly generated number never collides with an existing one.
func (r *GormDisbursementOrderRepository) CountByNumberPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.DisbursementOrderModel{}).
		Where("order_number LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindAll lists disbursement orders matching filter and the total match count
func (r *GormDisbursementOrderRepository) FindAll(ctx context.Context, filter finance.DisbursementOrderFilter) ([]finance.DisbursementOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DisbursementOrderModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("disbursement_date >= ?", finance.CalendarDate(*filter.FromDate))
	}
	if filter.ToDate != nil {
		query = query.Where("disbursement_date <= ?", finance.CalendarDate(*filter.ToDate))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, DisbursementOrderSortFields, "disbursement_date")
	sortDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortDir)).Order("order_number ASC")

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize).Offset(filter.Offset())
	}

	var rows []models.DisbursementOrderModel
	if err := query.Preload("Items").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	orders := make([]finance.DisbursementOrder, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, total, nil
}

// Create inserts a disbursement order together with its membership rows
func (r *GormDisbursementOrderRepository) Create(ctx context.Context, order *finance.DisbursementOrder) error {
	model := models.DisbursementOrderModelFromDomain(order)
	return r.db.WithContext(ctx).Create(model).Error
}

// Save updates the order columns and replaces its membership rows in one transaction
func (r *GormDisbursementOrderRepository) Save(ctx context.Context, order *finance.DisbursementOrder) error {
	model := models.DisbursementOrderModelFromDomain(order)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.DisbursementOrderModel{}).
			Where("id = ?", order.ID).
			Select("order_number", "disbursement_date", "amount", "status", "note",
				"confirmed_by", "confirmed_at", "version", "updated_at").
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return finance.ErrDisbursementOrderNotFound(order.ID)
		}

		if err := tx.Where("disbursement_order_id = ?", order.ID).
			Delete(&models.DisbursementOrderItemModel{}).Error; err != nil {
			return err
		}
		if len(model.Items) == 0 {
			return nil
		}
		return tx.Create(&model.Items).Error
	})
}

// UpdateAmount writes the amount of a pending order in one statement.
// A confirmed or deleted order yields shared.ErrConcurrencyConflict.
func (r *GormDisbursementOrderRepository) UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.DisbursementOrderModel{}).
		Where("id = ? AND status = ?", id, finance.DisbursementOrderStatusPending).
		Updates(map[string]any{
			"amount":     amount,
			"updated_at": time.Now(),
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Delete soft deletes a disbursement order; membership rows are kept for history
func (r *GormDisbursementOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.DisbursementOrderModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return finance.ErrDisbursementOrderNotFound(id)
	}
	return nil
}

// Ensure GormDisbursementOrderRepository implements DisbursementOrderRepository
var _ finance.DisbursementOrderRepository = (*GormDisbursementOrderRepository)(nil)
