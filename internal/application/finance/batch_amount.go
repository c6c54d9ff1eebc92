package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourdesk/backoffice/internal/domain/finance"
)

// sumMembers re-sums a batch from the stored member requests.
// Amounts in override replace the stored amount of the matching request.
func sumMembers(
	ctx context.Context,
	requests finance.PaymentRequestRepository,
	ids []uuid.UUID,
	override map[uuid.UUID]decimal.Decimal,
) (decimal.Decimal, error) {
	members, err := requests.FindByIDs(ctx, ids)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load batch members: %w", err)
	}
	total := decimal.Zero
	for i := range members {
		amount := members[i].Amount
		if o, ok := override[members[i].ID]; ok {
			amount = o
		}
		total = total.Add(amount)
	}
	return total, nil
}
