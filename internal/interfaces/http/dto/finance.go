package dto

import (
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates such as disbursement Thursdays
const DateLayout = "2006-01-02"

// CreatePaymentRequestRequest is the body of POST /finance/payment-requests
type CreatePaymentRequestRequest struct {
	RequestNumber string           `json:"request_number" binding:"required,max=50"`
	OrderID       string           `json:"order_id" binding:"required,uuid"`
	Amount        *decimal.Decimal `json:"amount" binding:"required"`
	SupplierType  string           `json:"supplier_type" binding:"required,max=20"`
	SupplierName  string           `json:"supplier_name" binding:"max=200"`
	Notes         string           `json:"notes" binding:"max=2000"`
}

// UpdateAmountRequest changes the amount of a payment request or receipt
type UpdateAmountRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

// CreateDisbursementRequest is the body of POST /finance/disbursements.
// An empty disbursement_date means the next disbursement Thursday.
type CreateDisbursementRequest struct {
	PaymentRequestIDs []string `json:"payment_request_ids" binding:"dive,uuid"`
	Note              string   `json:"note" binding:"max=500"`
	DisbursementDate  string   `json:"disbursement_date" binding:"omitempty,datetime=2006-01-02"`
}

// PaymentRequestIDsRequest lists payment requests to add to a batch
type PaymentRequestIDsRequest struct {
	PaymentRequestIDs []string `json:"payment_request_ids" binding:"dive,uuid"`
	Note              string   `json:"note" binding:"max=500"`
}

// UpdateDisbursementDateRequest moves a pending batch to another Thursday
type UpdateDisbursementDateRequest struct {
	DisbursementDate string `json:"disbursement_date" binding:"required,datetime=2006-01-02"`
}

// ConfirmRequest identifies who confirmed a disbursement or receipt.
// When ConfirmedBy is empty the X-User-ID header is used.
type ConfirmRequest struct {
	ConfirmedBy string `json:"confirmed_by" binding:"omitempty,uuid"`
}

// CreateReceiptRequest is the body of POST /finance/receipts
type CreateReceiptRequest struct {
	ReceiptNumber string           `json:"receipt_number" binding:"required,max=50"`
	OrderID       string           `json:"order_id" binding:"required,uuid"`
	Amount        *decimal.Decimal `json:"amount" binding:"required"`
	PaymentMethod string           `json:"payment_method" binding:"omitempty,max=20"`
	ReceiptDate   string           `json:"receipt_date" binding:"omitempty,datetime=2006-01-02"`
	Remark        string           `json:"remark" binding:"max=500"`
}

// ConfirmReceiptRequest confirms a receipt; a missing actual_amount means the expected amount arrived
type ConfirmReceiptRequest struct {
	ConfirmRequest
	ActualAmount *decimal.Decimal `json:"actual_amount"`
}

// DisbursementListQuery filters GET /finance/disbursements
type DisbursementListQuery struct {
	ListRequest
	Status   string `form:"status" binding:"omitempty,oneof=pending confirmed"`
	FromDate string `form:"from_date" binding:"omitempty,datetime=2006-01-02"`
	ToDate   string `form:"to_date" binding:"omitempty,datetime=2006-01-02"`
}

// NextDisbursementDateResponse is the body of GET /finance/disbursements/next-thursday
type NextDisbursementDateResponse struct {
	DisbursementDate string `json:"disbursement_date"`
}
