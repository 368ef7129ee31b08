package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prop-risk-engine-go/internal/database"
	"prop-risk-engine-go/internal/models"
)

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

// setupTest creates a Store over a fresh in-memory database.
func setupTest(t *testing.T) *Store {
	db, err := database.NewDatabase("file::memory:")
	require.NoError(t, err)

	s := New(db)
	s.now = func() time.Time { return testNow }
	return s
}

func seedAccount(t *testing.T, s *Store, id string, capital float64) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:                  id,
		Username:            id + "@example.com",
		CashBalance:         capital,
		InitialCapital:      capital,
		DailyStartingEquity: capital,
		Status:              models.StatusActive,
	}
	rules := &models.RuleSet{
		PlanName:                "elite",
		StartingCapital:         capital,
		MaxTotalDrawdownPercent: 10,
		MaxDailyLossPercent:     5,
		ProfitTargetPercent:     10,
	}
	require.NoError(t, s.CreateAccount(context.Background(), account, rules))
	return account
}

func TestLoad(t *testing.T) {
	s := setupTest(t)
	ctx := context.Background()
	seedAccount(t, s, "acct-1", 100000)

	account, rules, err := s.Load(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 100000.0, account.CashBalance)
	assert.Equal(t, models.StatusActive, account.Status)
	assert.Nil(t, account.LastEquityReset)
	assert.True(t, rules.Active)
	assert.Equal(t, "acct-1", rules.AccountID)
	assert.Equal(t, 5.0, rules.MaxDailyLossPercent)

	_, _, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)

	require.NoError(t, s.db.Create(&models.Account{ID: "bare", Username: "bare@example.com", Status: models.StatusActive}).Error)
	_, _, err = s.Load(ctx, "bare")
	assert.ErrorIs(t, err, models.ErrRuleSetNotFound)
}

func TestSaveRiskState_KeepsCash(t *testing.T) {
	s := setupTest(t)
	ctx := context.Background()
	seedAccount(t, s, "acct-1", 100000)

	// The evaluator holds a stale copy while a close credits cash.
	stale, err := s.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&models.Account{}).Where("id = ?", "acct-1").
		Update("cash_balance", 87000).Error)

	reset := testNow
	stale.Status = models.StatusFailed
	stale.FailureReason = "total drawdown of 13.00% ($13000.00) exceeds the 10% limit"
	stale.DailyStartingEquity = 99000
	stale.LastEquityReset = &reset
	require.NoError(t, s.SaveRiskState(ctx, stale))

	got, err := s.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 87000.0, got.CashBalance)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, stale.FailureReason, got.FailureReason)
	assert.Equal(t, 99000.0, got.DailyStartingEquity)
	require.NotNil(t, got.LastEquityReset)
	assert.True(t, testNow.Equal(*got.LastEquityReset))

	err = s.SaveRiskState(ctx, &models.Account{ID: "ghost"})
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestResetAccountForNewChallenge(t *testing.T) {
	s := setupTest(t)
	ctx := context.Background()
	seedAccount(t, s, "acct-1", 100000)

	require.NoError(t, s.CreatePosition(ctx, &models.Position{
		AccountID: "acct-1", Instrument: "BTCUSDT", Side: models.SideBuy, Quantity: 1, EntryPrice: 50000,
	}))
	require.NoError(t, s.SaveRiskState(ctx, &models.Account{
		ID: "acct-1", Status: models.StatusFailed, FailureReason: "blown", DailyStartingEquity: 100000,
	}))

	next := &models.RuleSet{
		PlanName:                "pro",
		PlanPrice:               149,
		StartingCapital:         25000,
		MaxTotalDrawdownPercent: 8,
		MaxDailyLossPercent:     4,
		ProfitTargetPercent:     8,
	}
	require.NoError(t, s.ResetAccountForNewChallenge(ctx, "acct-1", next))

	account, rules, err := s.Load(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, account.Status)
	assert.Empty(t, account.FailureReason)
	assert.Equal(t, 25000.0, account.CashBalance)
	assert.Equal(t, 25000.0, account.InitialCapital)
	assert.Equal(t, 25000.0, account.DailyStartingEquity)
	require.NotNil(t, account.LastEquityReset)
	assert.Equal(t, "pro", rules.PlanName)
	assert.Equal(t, next.ID, rules.ID)

	history, err := s.RuleSets(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Active)
	assert.False(t, history[1].Active)
	assert.Equal(t, models.StatusFailed, history[1].Outcome)
	assert.NotNil(t, history[1].ArchivedAt)

	open, err := s.OpenPositions(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := s.Positions(ctx, "acct-1", nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.PositionClosed, all[0].Status)
	require.NotNil(t, all[0].ClosePrice)
	assert.Equal(t, 50000.0, *all[0].ClosePrice)
	assert.Zero(t, all[0].RealizedPnL)
	assert.True(t, all[0].Voided)

	assert.ErrorIs(t, s.ResetAccountForNewChallenge(ctx, "ghost", &models.RuleSet{StartingCapital: 1}), models.ErrAccountNotFound)
}

func TestListAccounts(t *testing.T) {
	s := setupTest(t)
	ctx := context.Background()
	seedAccount(t, s, "acct-1", 5000)
	seedAccount(t, s, "acct-2", 25000)
	require.NoError(t, s.SaveRiskState(ctx, &models.Account{ID: "acct-2", Status: models.StatusPassed}))

	all, err := s.ListAccounts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	passed := models.StatusPassed
	only, err := s.ListAccounts(ctx, &passed)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "acct-2", only[0].ID)

	byName, err := s.GetAccountByUsername(ctx, "acct-1@example.com")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", byName.ID)
}

func TestCreateAccount_DuplicateUsername(t *testing.T) {
	s := setupTest(t)
	ctx := context.Background()
	seedAccount(t, s, "acct-1", 100000)

	dup := &models.Account{ID: "acct-2", Username: "acct-1@example.com", CashBalance: 5000, InitialCapital: 5000, Status: models.StatusActive}
	err := s.CreateAccount(ctx, dup, &models.RuleSet{PlanName: "starter", StartingCapital: 5000})
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	// Nothing from the failed registration is left behind.
	_, err = s.GetAccount(ctx, "acct-2")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
	history, err := s.RuleSets(ctx, "acct-2")
	require.NoError(t, err)
	assert.Empty(t, history)
}
