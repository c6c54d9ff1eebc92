package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/finance"
)

// CreatePaymentRequestInput carries the fields of a new payment request
type CreatePaymentRequestInput struct {
	RequestNumber string
	OrderID       uuid.UUID
	Amount        decimal.Decimal
	SupplierType  finance.SupplierType
	SupplierName  string
	Notes         string
}

// CreateDisbursementInput carries the fields of a new disbursement order.
// A nil DisbursementDate means the next disbursement Thursday.
type CreateDisbursementInput struct {
	PaymentRequestIDs []uuid.UUID
	Note              string
	DisbursementDate  *time.Time
}

// CreateReceiptInput carries the fields of a new receipt
type CreateReceiptInput struct {
	ReceiptNumber string
	OrderID       uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod finance.PaymentMethod
	ReceiptDate   time.Time
	Remark        string
}

// ConfirmReceiptInput confirms a receipt. A nil ActualAmount means the expected amount was received.
type ConfirmReceiptInput struct {
	ActualAmount *decimal.Decimal
	ConfirmedBy  uuid.UUID
}

// ReceiptResult is a receipt after a mutation together with the recomputed order payment state
type ReceiptResult struct {
	Receipt *finance.Receipt           `json:"receipt"`
	Payment *finance.PaymentProjection `json:"payment"`
}

// TourReconciliation is the outcome of a full bottom-up recompute of one tour
type TourReconciliation struct {
	Financials *finance.TourFinancials     `json:"financials"`
	Orders     []finance.PaymentProjection `json:"orders"`
}
