package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourdesk/backoffice/internal/domain/shared"
)

func TestNextThursday(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	thursday := time.Date(2024, 1, 4, 0, 0, 0, 0, loc)
	nextThursday := time.Date(2024, 1, 11, 0, 0, 0, 0, loc)

	tests := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{"thursday morning", time.Date(2024, 1, 4, 9, 30, 0, 0, loc), thursday},
		{"thursday just before cutoff", time.Date(2024, 1, 4, 16, 59, 59, 0, loc), thursday},
		{"thursday at cutoff", time.Date(2024, 1, 4, 17, 0, 0, 0, loc), nextThursday},
		{"thursday evening", time.Date(2024, 1, 4, 22, 0, 0, 0, loc), nextThursday},
		{"wednesday late", time.Date(2024, 1, 3, 23, 59, 0, 0, loc), thursday},
		{"monday", time.Date(2024, 1, 1, 8, 0, 0, 0, loc), thursday},
		{"friday", time.Date(2024, 1, 5, 8, 0, 0, 0, loc), nextThursday},
		{"sunday", time.Date(2024, 1, 7, 12, 0, 0, 0, loc), nextThursday},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NextThursday(tc.now)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
			assert.Equal(t, time.Thursday, got.Weekday())
			assert.Equal(t, loc, got.Location())
		})
	}
}

func TestNextThursday_IdempotentWithinWindow(t *testing.T) {
	first := NextThursday(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	for h := 0; h < 48; h++ {
		now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC).Add(time.Duration(h) * time.Hour)
		if now.Weekday() == time.Thursday && now.Hour() >= DefaultDisbursementCutoffHour {
			break
		}
		assert.Equal(t, first, NextThursday(now))
	}
}

func TestNextThursdayWithCutoff(t *testing.T) {
	now := time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), NextThursdayWithCutoff(now, 17))
	assert.Equal(t, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), NextThursdayWithCutoff(now, 12))
}

func TestValidateDisbursementDate(t *testing.T) {
	t.Run("thursday accepted", func(t *testing.T) {
		assert.NoError(t, ValidateDisbursementDate(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("wednesday rejected", func(t *testing.T) {
		err := ValidateDisbursementDate(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
		assert.Contains(t, err.Error(), "Wednesday")
	})

	t.Run("zero rejected", func(t *testing.T) {
		err := ValidateDisbursementDate(time.Time{})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})
}

func TestDisbursementOrderNumber(t *testing.T) {
	date := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		existing int
		expected string
	}{
		{0, "P240104A"},
		{1, "P240104B"},
		{2, "P240104C"},
		{25, "P240104Z"},
	}
	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			got, err := DisbursementOrderNumber(date, tc.existing)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	t.Run("letters exhausted", func(t *testing.T) {
		_, err := DisbursementOrderNumber(date, 26)
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	assert.Equal(t, "P240104", DisbursementOrderNumberPrefix(date))
}

func TestCalendarDate(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	got := CalendarDate(time.Date(2024, 1, 4, 23, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), got)
}
