package finance

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentProjection is the derived payment state of one order
type PaymentProjection struct {
	OrderID         uuid.UUID       `json:"order_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
}

// Overpaid reports whether more was received than the order total.
// There is no overpaid status; this is the only way to detect it.
func (p PaymentProjection) Overpaid() bool {
	return p.PaidAmount.GreaterThan(p.TotalAmount)
}

// DerivePaymentStatus maps paid vs total onto unpaid/partial/paid.
// A zero total is never paid.
func DerivePaymentStatus(total, paid decimal.Decimal) PaymentStatus {
	switch {
	case total.IsPositive() && paid.GreaterThanOrEqual(total):
		return PaymentStatusPaid
	case paid.IsPositive() && paid.LessThan(total):
		return PaymentStatusPartial
	default:
		return PaymentStatusUnpaid
	}
}

// SumReceived sums actual amounts over receipts that count as paid.
// Pending and deleted receipts are skipped, so callers may pass unfiltered lists.
func SumReceived(receipts []Receipt) decimal.Decimal {
	paid := decimal.Zero
	for i := range receipts {
		if receipts[i].CountsAsPaid() {
			paid = paid.Add(receipts[i].Received())
		}
	}
	return paid
}

// ProjectOrderPayment derives the order's paid, remaining and status fields from its receipts
func ProjectOrderPayment(orderID uuid.UUID, total decimal.Decimal, receipts []Receipt) PaymentProjection {
	paid := SumReceived(receipts)
	remaining := total.Sub(paid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return PaymentProjection{
		OrderID:         orderID,
		TotalAmount:     total,
		PaidAmount:      paid,
		RemainingAmount: remaining,
		PaymentStatus:   DerivePaymentStatus(total, paid),
	}
}
