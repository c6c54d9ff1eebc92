package finance

import (
	"fmt"
	"time"

	"github.com/tourdesk/backoffice/internal/domain/shared"
)

// DefaultDisbursementCutoffHour is the local hour after which a Thursday no
// longer counts as "this week's" disbursement day.
const DefaultDisbursementCutoffHour = 17

// maxBatchesPerDay bounds the single-letter suffix of a disbursement order number
const maxBatchesPerDay = 26

// NextThursday returns the disbursement date to target from now: today if today
// is Thursday before the 17:00 cutoff, otherwise the following Thursday.
// The result is midnight in now's location.
func NextThursday(now time.Time) time.Time {
	return NextThursdayWithCutoff(now, DefaultDisbursementCutoffHour)
}

// NextThursdayWithCutoff is NextThursday with a configurable cutoff hour
func NextThursdayWithCutoff(now time.Time, cutoffHour int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	days := (int(time.Thursday) - int(now.Weekday()) + 7) % 7
	if days == 0 && now.Hour() >= cutoffHour {
		days = 7
	}
	return today.AddDate(0, 0, days)
}

// CalendarDate strips the clock and zone from t, keeping its calendar date.
// Disbursement dates are stored this way so that equality lookups are exact.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsThursday reports whether t falls on a Thursday in its own location
func IsThursday(t time.Time) bool {
	return t.Weekday() == time.Thursday
}

// ValidateDisbursementDate rejects zero and non-Thursday dates
func ValidateDisbursementDate(date time.Time) error {
	if date.IsZero() {
		return shared.NewValidationError("INVALID_DISBURSEMENT_DATE", "Disbursement date is required")
	}
	if !IsThursday(date) {
		return shared.NewValidationError("INVALID_DISBURSEMENT_DATE",
			fmt.Sprintf("Disbursement date %s is a %s; disbursements are only scheduled on Thursdays",
				date.Format("2006-01-02"), date.Weekday()))
	}
	return nil
}

// DisbursementOrderNumberPrefix returns the P<YYMMDD> part shared by every batch numbered for date
func DisbursementOrderNumberPrefix(date time.Time) string {
	return "P" + date.Format("060102")
}

// DisbursementOrderNumber formats P<YYMMDD><letter>, where letter is 'A' plus the
// number of batches already dated that day.
func DisbursementOrderNumber(date time.Time, existingForDate int) (string, error) {
	if existingForDate < 0 || existingForDate >= maxBatchesPerDay {
		return "", shared.NewValidationError("TOO_MANY_BATCHES",
			fmt.Sprintf("At most %d disbursement orders can be dated %s", maxBatchesPerDay, date.Format("2006-01-02")))
	}
	return fmt.Sprintf("%s%c", DisbursementOrderNumberPrefix(date), rune('A'+existingForDate)), nil
}
