package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/shared"
)

// Tour groups booking orders travelling together. Revenue, cost and gross
// profit are cached projections recomputed from receipts and payment requests.
type Tour struct {
	shared.BaseEntity
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	Archived     bool            `json:"archived"`
	FinancialsAt *time.Time      `json:"financials_at,omitempty"`
}

// NewTour creates a tour with zeroed financials
func NewTour(code, name string) (*Tour, error) {
	if code == "" {
		return nil, shared.NewValidationError("INVALID_TOUR_CODE", "Tour code cannot be empty")
	}
	return &Tour{
		BaseEntity:   shared.NewBaseEntity(),
		Code:         code,
		Name:         name,
		TotalRevenue: decimal.Zero,
		TotalCost:    decimal.Zero,
		GrossProfit:  decimal.Zero,
	}, nil
}

// TourFinancials is the derived revenue/cost/profit of one tour
type TourFinancials struct {
	TourID       uuid.UUID       `json:"tour_id"`
	OrderCount   int             `json:"order_count"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	ComputedAt   time.Time       `json:"computed_at"`
}

// ComputeTourFinancials sums revenue from confirmed, non-deleted receipts and
// cost from confirmed, non-deleted, non-bonus payment requests.
// Inputs may contain records of any status; filtering happens here.
func ComputeTourFinancials(tourID uuid.UUID, orderCount int, receipts []Receipt, requests []PaymentRequest, at time.Time) TourFinancials {
	revenue := SumReceived(receipts)
	cost := decimal.Zero
	for i := range requests {
		if requests[i].CountsAsCost() {
			cost = cost.Add(requests[i].Amount)
		}
	}
	return TourFinancials{
		TourID:       tourID,
		OrderCount:   orderCount,
		TotalRevenue: revenue,
		TotalCost:    cost,
		GrossProfit:  revenue.Sub(cost),
		ComputedAt:   at,
	}
}

// ApplyFinancials overwrites the cached financial fields
func (t *Tour) ApplyFinancials(f TourFinancials) {
	t.TotalRevenue = f.TotalRevenue
	t.TotalCost = f.TotalCost
	t.GrossProfit = f.GrossProfit
	computedAt := f.ComputedAt
	t.FinancialsAt = &computedAt
}
