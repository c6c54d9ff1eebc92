package handler

import (
	"github.com/tourdesk/backoffice/internal/interfaces/http/router"
)

// FinanceHandlers bundles the settlement handlers mounted under /finance
type FinanceHandlers struct {
	PaymentRequests *PaymentRequestHandler
	Disbursements   *DisbursementHandler
	Receipts        *ReceiptHandler
	Tours           *TourHandler
}

// FinanceRoutes builds the /finance route group
func FinanceRoutes(h FinanceHandlers) *router.DomainGroup {
	g := router.NewDomainGroup("finance", "/finance")

	g.Group("payment-requests", "/payment-requests").
		POST("", h.PaymentRequests.Create).
		GET("/:id", h.PaymentRequests.Get).
		PUT("/:id/amount", h.PaymentRequests.UpdateAmount).
		DELETE("/:id", h.PaymentRequests.Delete)

	g.Group("disbursements", "/disbursements").
		GET("", h.Disbursements.List).
		POST("", h.Disbursements.Create).
		GET("/next-thursday", h.Disbursements.NextThursday).
		POST("/current-week", h.Disbursements.AddToCurrentWeek).
		GET("/:id", h.Disbursements.Get).
		DELETE("/:id", h.Disbursements.Delete).
		PUT("/:id/date", h.Disbursements.UpdateDate).
		POST("/:id/payment-requests", h.Disbursements.AddPaymentRequests).
		DELETE("/:id/payment-requests/:requestId", h.Disbursements.RemovePaymentRequest).
		POST("/:id/refresh-amount", h.Disbursements.RefreshAmount).
		POST("/:id/confirm", h.Disbursements.Confirm)

	g.Group("receipts", "/receipts").
		POST("", h.Receipts.Create).
		GET("/:id", h.Receipts.Get).
		POST("/:id/confirm", h.Receipts.Confirm).
		PUT("/:id/amount", h.Receipts.Amend).
		DELETE("/:id", h.Receipts.Delete)

	g.Group("orders", "/orders").
		GET("/:id/payment-requests", h.PaymentRequests.ListByOrder).
		GET("/:id/receipts", h.Receipts.ListByOrder).
		POST("/:id/recalculate-payment", h.Receipts.RecalculateOrder)

	g.Group("tours", "/tours").
		POST("/:id/recalculate", h.Tours.Recalculate).
		POST("/:id/reconcile", h.Tours.Reconcile)

	return g
}
