package handler

import (
	"github.com/gin-gonic/gin"
	financeapp "github.com/tourdesk/backoffice/internal/application/finance"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"github.com/tourdesk/backoffice/internal/interfaces/http/dto"
)

// DisbursementHandler serves weekly disbursement batches and their confirmation
type DisbursementHandler struct {
	BaseHandler
	batcher  *financeapp.DisbursementBatcher
	workflow *financeapp.ConfirmationWorkflow
}

// NewDisbursementHandler creates a new DisbursementHandler
func NewDisbursementHandler(batcher *financeapp.DisbursementBatcher, workflow *financeapp.ConfirmationWorkflow) *DisbursementHandler {
	return &DisbursementHandler{batcher: batcher, workflow: workflow}
}

// NextThursday handles GET /finance/disbursements/next-thursday
func (h *DisbursementHandler) NextThursday(c *gin.Context) {
	h.Success(c, dto.NextDisbursementDateResponse{
		DisbursementDate: h.batcher.NextDisbursementDate().Format(dto.DateLayout),
	})
}

// List handles GET /finance/disbursements
func (h *DisbursementHandler) List(c *gin.Context) {
	q := dto.DisbursementListQuery{ListRequest: dto.DefaultListRequest()}
	if !h.BindQuery(c, &q) {
		return
	}

	filter := finance.DisbursementOrderFilter{
		Filter: shared.Filter{Page: q.Page, PageSize: q.PageSize, OrderBy: q.OrderBy, OrderDir: q.OrderDir},
	}
	if q.Status != "" {
		status := finance.DisbursementOrderStatus(q.Status)
		filter.Status = &status
	}
	var err error
	if filter.FromDate, err = parseDate(q.FromDate); err != nil {
		h.HandleError(c, err)
		return
	}
	if filter.ToDate, err = parseDate(q.ToDate); err != nil {
		h.HandleError(c, err)
		return
	}

	orders, total, err := h.batcher.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, orders, total, q.Page, q.PageSize)
}

// Get handles GET /finance/disbursements/:id
func (h *DisbursementHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	order, err := h.batcher.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Create handles POST /finance/disbursements
func (h *DisbursementHandler) Create(c *gin.Context) {
	var req dto.CreateDisbursementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	date, err := parseDate(req.DisbursementDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	order, err := h.batcher.CreateWithRequests(c.Request.Context(), financeapp.CreateDisbursementInput{
		PaymentRequestIDs: parseIDs(req.PaymentRequestIDs),
		Note:              req.Note,
		DisbursementDate:  date,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// AddToCurrentWeek handles POST /finance/disbursements/current-week.
// Requests join the pending batch for the next Thursday, which is created if missing.
func (h *DisbursementHandler) AddToCurrentWeek(c *gin.Context) {
	var req dto.PaymentRequestIDsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.batcher.AddToCurrentWeekOrder(c.Request.Context(), parseIDs(req.PaymentRequestIDs), req.Note)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// AddPaymentRequests handles POST /finance/disbursements/:id/payment-requests
func (h *DisbursementHandler) AddPaymentRequests(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequestIDsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.batcher.AddPaymentRequests(c.Request.Context(), id, parseIDs(req.PaymentRequestIDs))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// RemovePaymentRequest handles DELETE /finance/disbursements/:id/payment-requests/:requestId
func (h *DisbursementHandler) RemovePaymentRequest(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	requestID, ok := h.ParamID(c, "requestId")
	if !ok {
		return
	}
	order, err := h.batcher.RemovePaymentRequest(c.Request.Context(), id, requestID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// UpdateDate handles PUT /finance/disbursements/:id/date
func (h *DisbursementHandler) UpdateDate(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateDisbursementDateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	date, err := parseDate(req.DisbursementDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	order, err := h.batcher.UpdateDisbursementDate(c.Request.Context(), id, *date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// RefreshAmount handles POST /finance/disbursements/:id/refresh-amount
func (h *DisbursementHandler) RefreshAmount(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	order, err := h.batcher.RefreshAmount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Delete handles DELETE /finance/disbursements/:id. Members return to pending.
func (h *DisbursementHandler) Delete(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.batcher.DeleteOrder(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Confirm handles POST /finance/disbursements/:id/confirm.
// On success the body is the phase report; on rollback the report rides in the error context.
func (h *DisbursementHandler) Confirm(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ConfirmRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	by, err := operatorID(c, req.ConfirmedBy)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	report, err := h.workflow.ConfirmOrder(c.Request.Context(), id, by)
	if err != nil {
		h.HandleConfirmationError(c, err, report)
		return
	}
	h.Success(c, report)
}
