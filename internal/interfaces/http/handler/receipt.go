package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	financeapp "github.com/tourdesk/backoffice/internal/application/finance"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/interfaces/http/dto"
)

// ReceiptHandler serves customer receipts and order payment recalculation
type ReceiptHandler struct {
	BaseHandler
	receipts   *financeapp.ReceiptService
	reconciler *financeapp.ReceiptReconciler
}

// NewReceiptHandler creates a new ReceiptHandler
func NewReceiptHandler(receipts *financeapp.ReceiptService, reconciler *financeapp.ReceiptReconciler) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts, reconciler: reconciler}
}

// Create handles POST /finance/receipts
func (h *ReceiptHandler) Create(c *gin.Context) {
	var req dto.CreateReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}
	date, err := parseDate(req.ReceiptDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	in := financeapp.CreateReceiptInput{
		ReceiptNumber: req.ReceiptNumber,
		OrderID:       uuid.MustParse(req.OrderID),
		Amount:        *req.Amount,
		PaymentMethod: finance.PaymentMethod(req.PaymentMethod),
		Remark:        req.Remark,
	}
	if date != nil {
		in.ReceiptDate = *date
	}

	result, err := h.receipts.CreateReceipt(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Get handles GET /finance/receipts/:id
func (h *ReceiptHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	receipt, err := h.receipts.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receipt)
}

// ListByOrder handles GET /finance/orders/:id/receipts
func (h *ReceiptHandler) ListByOrder(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	receipts, err := h.receipts.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receipts)
}

// Confirm handles POST /finance/receipts/:id/confirm
func (h *ReceiptHandler) Confirm(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ConfirmReceiptRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	by, err := operatorID(c, req.ConfirmedBy)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.receipts.ConfirmReceipt(c.Request.Context(), id, financeapp.ConfirmReceiptInput{
		ActualAmount: req.ActualAmount,
		ConfirmedBy:  by,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Amend handles PUT /finance/receipts/:id/amount
func (h *ReceiptHandler) Amend(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateAmountRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.receipts.AmendReceipt(c.Request.Context(), id, *req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Delete handles DELETE /finance/receipts/:id. The order's payment state is returned.
func (h *ReceiptHandler) Delete(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	result, err := h.receipts.DeleteReceipt(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RecalculateOrder handles POST /finance/orders/:id/recalculate-payment
func (h *ReceiptHandler) RecalculateOrder(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	projection, err := h.reconciler.RecalculateOrderPayment(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, projection)
}
