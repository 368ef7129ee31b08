package risk

import (
	"time"

	"prop-risk-engine-go/internal/models"
)

// DailyWindow keeps each account's start-of-day equity baseline.
type DailyWindow struct {
	now func() time.Time
}

// NewDailyWindow creates a DailyWindow reading time from now.
func NewDailyWindow(now func() time.Time) *DailyWindow {
	if now == nil {
		now = time.Now
	}
	return &DailyWindow{now: now}
}

// MaybeReset sets the daily baseline to the current equity if the account
// has never been reset or was last reset on an earlier UTC calendar day.
// It reports whether the account was changed. equity is only called on reset.
//
// The baseline is the equity at the first evaluation of the day, not at
// midnight: movement between 00:00 UTC and that evaluation is part of it.
func (w *DailyWindow) MaybeReset(account *models.Account, equity func() float64) bool {
	now := w.now().UTC()

	if account.LastEquityReset != nil && !utcDate(*account.LastEquityReset).Before(utcDate(now)) {
		return false
	}

	account.DailyStartingEquity = equity()
	account.LastEquityReset = &now
	return true
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
