package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	financeapp "github.com/tourdesk/backoffice/internal/application/finance"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/interfaces/http/dto"
)

// PaymentRequestHandler serves the payment request ledger
type PaymentRequestHandler struct {
	BaseHandler
	ledger *financeapp.PaymentRequestLedger
}

// NewPaymentRequestHandler creates a new PaymentRequestHandler
func NewPaymentRequestHandler(ledger *financeapp.PaymentRequestLedger) *PaymentRequestHandler {
	return &PaymentRequestHandler{ledger: ledger}
}

// Create handles POST /finance/payment-requests
func (h *PaymentRequestHandler) Create(c *gin.Context) {
	var req dto.CreatePaymentRequestRequest
	if !h.BindJSON(c, &req) {
		return
	}

	pr, err := h.ledger.Create(c.Request.Context(), financeapp.CreatePaymentRequestInput{
		RequestNumber: req.RequestNumber,
		OrderID:       uuid.MustParse(req.OrderID),
		Amount:        *req.Amount,
		SupplierType:  finance.SupplierType(req.SupplierType),
		SupplierName:  req.SupplierName,
		Notes:         req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, pr)
}

// Get handles GET /finance/payment-requests/:id
func (h *PaymentRequestHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	pr, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, pr)
}

// ListByOrder handles GET /finance/orders/:id/payment-requests
func (h *PaymentRequestHandler) ListByOrder(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	requests, err := h.ledger.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, requests)
}

// UpdateAmount handles PUT /finance/payment-requests/:id/amount.
// When the request sits in a pending batch the batch total follows.
func (h *PaymentRequestHandler) UpdateAmount(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateAmountRequest
	if !h.BindJSON(c, &req) {
		return
	}
	pr, err := h.ledger.UpdateAmount(c.Request.Context(), id, *req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, pr)
}

// Delete handles DELETE /finance/payment-requests/:id
func (h *PaymentRequestHandler) Delete(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.ledger.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
