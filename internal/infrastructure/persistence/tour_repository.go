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

// GormTourRepository implements finance.TourRepository using GORM
type GormTourRepository struct {
	db *gorm.DB
}

// NewGormTourRepository creates a new GormTourRepository
func NewGormTourRepository(db *gorm.DB) *GormTourRepository {
	return &GormTourRepository{db: db}
}

// FindByID finds a tour by ID
func (r *GormTourRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Tour, error) {
	var model models.TourModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpdateFinancials writes revenue, cost and gross profit in a single UPDATE
func (r *GormTourRepository) UpdateFinancials(ctx context.Context, f finance.TourFinancials) error {
	result := r.db.WithContext(ctx).
		Model(&models.TourModel{}).
		Where("id = ?", f.TourID).
		Updates(map[string]any{
			"financials_at": f.ComputedAt,
			"gross_profit":  f.GrossProfit,
			"total_cost":    f.TotalCost,
			"total_revenue": f.TotalRevenue,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return finance.ErrTourNotFound(f.TourID)
	}
	return nil
}

// Save creates or updates a tour
func (r *GormTourRepository) Save(ctx context.Context, tour *finance.Tour) error {
	model := models.TourModelFromDomain(tour)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormTourRepository implements TourRepository
var _ finance.TourRepository = (*GormTourRepository)(nil)
