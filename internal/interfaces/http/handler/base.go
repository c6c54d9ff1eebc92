// Package handler exposes the settlement services over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tourdesk/backoffice/internal/domain/finance"
	"github.com/tourdesk/backoffice/internal/domain/shared"
	"github.com/tourdesk/backoffice/internal/infrastructure/logger"
	"github.com/tourdesk/backoffice/internal/interfaces/http/dto"
	"github.com/tourdesk/backoffice/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	if id := logger.GetRequestID(c.Request.Context()); id != "" {
		return id
	}
	return c.GetHeader(logger.RequestIDHeader)
}

// operatorID resolves the acting staff member: an explicit body value wins over
// the X-Operator-ID header. Absent both, uuid.Nil is recorded.
func operatorID(c *gin.Context, explicit string) (uuid.UUID, error) {
	raw := explicit
	if raw == "" {
		raw = logger.GetOperatorID(c.Request.Context())
	}
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.NewValidationError("INVALID_OPERATOR", "Operator id must be a UUID")
	}
	return id, nil
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// BindJSON binds the request body, writing a validation response on failure
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// BindQuery binds query parameters, writing a validation response on failure
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// ParamID parses the named path parameter as a UUID, writing a 400 on failure
func (h *BaseHandler) ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationFormat, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// HandleError maps service errors onto responses. Domain errors carry their own
// code; a rolled back confirmation is reported with its report attached;
// anything else is logged and hidden behind a 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.handleError(c, err, nil)
}

// HandleConfirmationError is HandleError for ConfirmOrder, attaching the phase report
func (h *BaseHandler) HandleConfirmationError(c *gin.Context, err error, report *finance.ConfirmationReport) {
	h.handleError(c, err, report)
}

func (h *BaseHandler) handleError(c *gin.Context, err error, report *finance.ConfirmationReport) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	requestID := getRequestID(c)

	var rbErr *finance.ConfirmationRollbackError
	if errors.As(err, &rbErr) {
		code := dto.ErrCodeConfirmationRolledBack
		if rbErr.NeedsManualReconciliation() {
			code = dto.ErrCodeReconciliationRequired
			logger.GetGinLogger(c).Error("Confirmation left inconsistent state",
				zap.String("disbursement_order_id", rbErr.DisbursementOrderID.String()),
				zap.Error(err),
			)
		}
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithContext(code, rbErr.Error(), requestID,
			rollbackContext(rbErr, report)))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		c.JSON(dto.DomainErrorStatus(domainErr),
			dto.NewErrorResponseWithRequestID(domainErr.Code, domainErr.Message, requestID))
		return
	}

	logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
	h.InternalError(c)
}

// RollbackContext is the error context of a failed confirmation
type RollbackContext struct {
	Step                 finance.ConfirmationStep      `json:"step"`
	PaymentRequestID     *uuid.UUID                    `json:"payment_request_id,omitempty"`
	Cause                string                        `json:"cause"`
	CompensationFailures []finance.CompensationFailure `json:"compensation_failures,omitempty"`
	Report               *finance.ConfirmationReport   `json:"report,omitempty"`
}

func rollbackContext(err *finance.ConfirmationRollbackError, report *finance.ConfirmationReport) RollbackContext {
	rc := RollbackContext{
		Step:                 err.Step,
		PaymentRequestID:     err.PaymentRequestID,
		CompensationFailures: err.CompensationFailures,
		Report:               report,
	}
	if err.Cause != nil {
		rc.Cause = err.Cause.Error()
	}
	return rc
}

// parseDate parses a YYYY-MM-DD value as a UTC calendar date; empty yields nil
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := time.Parse(dto.DateLayout, value)
	if err != nil {
		return nil, shared.NewValidationError("INVALID_DATE", "Date must be formatted as "+dto.DateLayout)
	}
	return &d, nil
}

// parseIDs converts validated UUID strings
func parseIDs(raw []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		ids = append(ids, uuid.MustParse(s))
	}
	return ids
}
