package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prop-risk-engine-go/internal/models"
)

func TestDailyWindow_MaybeReset(t *testing.T) {
	w := NewDailyWindow(fixedClock)

	t.Run("First evaluation initializes the baseline", func(t *testing.T) {
		acct := &models.Account{DailyStartingEquity: 0}
		reset := w.MaybeReset(acct, func() float64 { return 101000 })

		assert.True(t, reset)
		assert.Equal(t, 101000.0, acct.DailyStartingEquity)
		require.NotNil(t, acct.LastEquityReset)
		assert.Equal(t, testNow, *acct.LastEquityReset)
	})

	t.Run("Earlier day resets the baseline", func(t *testing.T) {
		acct := &models.Account{
			DailyStartingEquity: 100000,
			LastEquityReset:     timePtr(testNow.Add(-13 * time.Hour)), // 23:00 the day before
		}
		reset := w.MaybeReset(acct, func() float64 { return 97000 })

		assert.True(t, reset)
		assert.Equal(t, 97000.0, acct.DailyStartingEquity)
		assert.Equal(t, testNow, *acct.LastEquityReset)
	})

	t.Run("Same UTC day is a no-op", func(t *testing.T) {
		last := testNow.Add(-11 * time.Hour) // 01:00 today
		acct := &models.Account{DailyStartingEquity: 100000, LastEquityReset: timePtr(last)}
		called := false
		reset := w.MaybeReset(acct, func() float64 { called = true; return 1 })

		assert.False(t, reset)
		assert.False(t, called)
		assert.Equal(t, 100000.0, acct.DailyStartingEquity)
		assert.Equal(t, last, *acct.LastEquityReset)
	})

	t.Run("Dates compare in UTC, not the stored zone", func(t *testing.T) {
		newYork := time.FixedZone("EST", -5*60*60)
		// 23:30 on the 15th in New York is 04:30 on the 16th in UTC.
		last := time.Date(2026, 10, 15, 23, 30, 0, 0, newYork)
		acct := &models.Account{DailyStartingEquity: 100000, LastEquityReset: &last}

		assert.False(t, w.MaybeReset(acct, func() float64 { return 1 }))
	})
}

func TestDailyWindow_Idempotent(t *testing.T) {
	w := NewDailyWindow(fixedClock)
	acct := &models.Account{
		DailyStartingEquity: 100000,
		LastEquityReset:     timePtr(testNow.AddDate(0, 0, -2)),
	}

	equity := 98000.0
	assert.True(t, w.MaybeReset(acct, func() float64 { return equity }))
	baseline, stamp := acct.DailyStartingEquity, *acct.LastEquityReset

	equity = 90000
	assert.False(t, w.MaybeReset(acct, func() float64 { return equity }))
	assert.Equal(t, baseline, acct.DailyStartingEquity)
	assert.Equal(t, stamp, *acct.LastEquityReset)
}
