package handler

import (
	"github.com/gin-gonic/gin"
	financeapp "github.com/tourdesk/backoffice/internal/application/finance"
)

// TourHandler serves tour-level financial aggregation
type TourHandler struct {
	BaseHandler
	aggregator *financeapp.TourAggregator
}

// NewTourHandler creates a new TourHandler
func NewTourHandler(aggregator *financeapp.TourAggregator) *TourHandler {
	return &TourHandler{aggregator: aggregator}
}

// Recalculate handles POST /finance/tours/:id/recalculate
func (h *TourHandler) Recalculate(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	financials, err := h.aggregator.RecalculateTourFinancials(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, financials)
}

// Reconcile handles POST /finance/tours/:id/reconcile. Every order's payment
// state is recomputed before the tour totals.
func (h *TourHandler) Reconcile(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	result, err := h.aggregator.ReconcileTour(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
