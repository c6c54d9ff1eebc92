package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements finance.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTour lists the orders of a tour
func (r *GormOrderRepository) FindByTour(ctx context.Context, tourID uuid.UUID) ([]finance.Order, error) {
	var rows []models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("tour_id = ?", tourID).
		Order("order_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	orders := make([]finance.Order, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, nil
}

// UpdatePaymentFields writes the payment projection in a single UPDATE
func (r *GormOrderRepository) UpdatePaymentFields(ctx context.Context, p finance.PaymentProjection) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ?", p.OrderID).
		Updates(map[string]any{
			"paid_amount":      p.PaidAmount,
			"payment_status":   p.PaymentStatus,
			"remaining_amount": p.RemainingAmount,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return finance.ErrOrderNotFound(p.OrderID)
	}
	return nil
}

// Save creates or updates an order
func (r *GormOrderRepository) Save(ctx context.Context, order *finance.Order) error {
	model := models.OrderModelFromDomain(order)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormOrderRepository implements OrderRepository
var _ finance.OrderRepository = (*GormOrderRepository)(nil)
