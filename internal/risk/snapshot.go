package risk

import (
	"context"
	"fmt"

	"prop-risk-engine-go/internal/models"
)

// LimitUsage shows how much of one rule's allowance is used.
type LimitUsage struct {
	Amount           float64 `json:"amount"`
	Percent          float64 `json:"percent"`
	LimitPercent     float64 `json:"limit_percent"`
	RemainingPercent float64 `json:"remaining_percent"`
}

// Snapshot is a read-only view of an account's risk position.
type Snapshot struct {
	AccountID           string               `json:"account_id"`
	Status              models.AccountStatus `json:"status"`
	Equity              float64              `json:"current_equity"`
	InitialCapital      float64              `json:"initial_capital"`
	DailyStartingEquity float64              `json:"daily_starting_equity"`
	OpenPositions       int                  `json:"open_positions"`
	TotalDrawdown       LimitUsage           `json:"total_drawdown"`
	DailyLoss           LimitUsage           `json:"daily_loss"`
	ProfitTarget        LimitUsage           `json:"profit_target"`
	FailureReason       string               `json:"failure_reason,omitempty"`
}

// Snapshot reports the account's current figures against its active rule
// set. Unlike Evaluate it never changes status or the daily baseline.
func (e *Evaluator) Snapshot(ctx context.Context, accountID string) (Snapshot, error) {
	unlock := e.locks.Lock(accountID)
	defer unlock()

	account, rules, err := e.store.Load(ctx, accountID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}
	if account.InitialCapital <= 0 {
		return Snapshot{}, &ConfigError{AccountID: account.ID, Err: fmt.Errorf("%w (got %.2f)", ErrInvalidCapital, account.InitialCapital)}
	}

	positions, err := e.store.OpenPositions(ctx, account.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load open positions for account %s: %w", account.ID, err)
	}

	equity := e.equity.Compute(ctx, account.CashBalance, positions)
	m := computeMetrics(account, rules, equity)

	return Snapshot{
		AccountID:           account.ID,
		Status:              account.Status,
		Equity:              equity,
		InitialCapital:      account.InitialCapital,
		DailyStartingEquity: account.DailyStartingEquity,
		OpenPositions:       len(positions),
		TotalDrawdown: LimitUsage{
			Amount:           account.InitialCapital - equity,
			Percent:          m.TotalDrawdownPct,
			LimitPercent:     rules.MaxTotalDrawdownPercent,
			RemainingPercent: rules.MaxTotalDrawdownPercent - m.TotalDrawdownPct,
		},
		DailyLoss: LimitUsage{
			Amount:           account.DailyStartingEquity - equity,
			Percent:          m.DailyLossPct,
			LimitPercent:     rules.MaxDailyLossPercent,
			RemainingPercent: rules.MaxDailyLossPercent - m.DailyLossPct,
		},
		ProfitTarget: LimitUsage{
			Amount:           m.ProfitAmount,
			Percent:          m.ProfitPct,
			LimitPercent:     rules.ProfitTargetPercent,
			RemainingPercent: m.ProfitRemaining,
		},
		FailureReason: account.FailureReason,
	}, nil
}
