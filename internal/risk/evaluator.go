package risk

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"prop-risk-engine-go/internal/models"
)

const (
	reasonAlreadyFailed = "account has failed risk checks"
	reasonAlreadyWon    = "challenge already won"
	reasonChallengeWon  = "challenge won: profit target reached, trading is closed"
)

// Evaluator decides after every trade whether an account stays ACTIVE,
// FAILED a loss limit or PASSED its profit target.
type Evaluator struct {
	store  Store
	equity *EquityCalculator
	window *DailyWindow
	locks  *Locker
	logger *zap.Logger
}

// NewEvaluator creates an Evaluator. locks must be shared with every other
// component that mutates the same accounts.
func NewEvaluator(store Store, equity *EquityCalculator, window *DailyWindow, locks *Locker, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		store:  store,
		equity: equity,
		window: window,
		locks:  locks,
		logger: logger.Named("risk"),
	}
}

// Evaluate runs one evaluation pass while holding the account lock.
func (e *Evaluator) Evaluate(ctx context.Context, accountID string) (Result, error) {
	unlock := e.locks.Lock(accountID)
	defer unlock()
	return e.EvaluateHeld(ctx, accountID)
}

// EvaluateHeld is Evaluate for callers already holding the account lock.
func (e *Evaluator) EvaluateHeld(ctx context.Context, accountID string) (Result, error) {
	account, rules, err := e.store.Load(ctx, accountID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}
	return e.evaluate(ctx, account, rules)
}

// CanTrade reports whether the account may open a new position and, if
// not, why. It holds the account lock.
func (e *Evaluator) CanTrade(ctx context.Context, accountID string) (bool, string, error) {
	unlock := e.locks.Lock(accountID)
	defer unlock()
	return e.CanTradeHeld(ctx, accountID)
}

// CanTradeHeld is CanTrade for callers already holding the account lock.
func (e *Evaluator) CanTradeHeld(ctx context.Context, accountID string) (bool, string, error) {
	res, err := e.PreTradeHeld(ctx, accountID)
	if err != nil {
		return false, "", err
	}
	return res.Allowed, res.Reason, nil
}

// PreTradeHeld is CanTradeHeld returning the whole evaluation, so callers
// can size an order against the equity it computed. The caller must hold
// the account lock.
func (e *Evaluator) PreTradeHeld(ctx context.Context, accountID string) (Result, error) {
	account, rules, err := e.store.Load(ctx, accountID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}

	if account.Status.Terminal() {
		res := Result{Status: account.Status, Reason: failureReason(account), Violations: []Violation{}}
		if account.Status == models.StatusPassed {
			res.Reason = reasonChallengeWon
		}
		return res, nil
	}

	return e.evaluate(ctx, account, rules)
}

func (e *Evaluator) evaluate(ctx context.Context, account *models.Account, rules *models.RuleSet) (Result, error) {
	if !account.Status.Valid() {
		return Result{}, fmt.Errorf("account %s has unknown status %q", account.ID, account.Status)
	}
	// Terminal accounts are reported as stored: no daily reset, no price reads.
	if account.Status.Terminal() {
		res := Result{Status: account.Status, Reason: reasonAlreadyWon, Violations: []Violation{}}
		if account.Status == models.StatusFailed {
			res.Reason = failureReason(account)
		}
		return res, nil
	}

	if account.InitialCapital <= 0 {
		return Result{}, &ConfigError{AccountID: account.ID, Err: fmt.Errorf("%w (got %.2f)", ErrInvalidCapital, account.InitialCapital)}
	}

	positions, err := e.store.OpenPositions(ctx, account.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load open positions for account %s: %w", account.ID, err)
	}

	l := e.logger.With(zap.String("account_id", account.ID))

	// Prices are read once per pass: the daily reset and the rule checks
	// see the same equity.
	var (
		equity float64
		marked bool
	)
	markToMarket := func() float64 {
		if !marked {
			equity = e.equity.Compute(ctx, account.CashBalance, positions)
			marked = true
		}
		return equity
	}

	baselineReset := e.window.MaybeReset(account, markToMarket)
	if baselineReset {
		l.Info("Daily equity baseline reset", zap.Float64("daily_starting_equity", account.DailyStartingEquity))
	}
	equity = markToMarket()

	metrics := computeMetrics(account, rules, equity)
	violations := checkLimits(account, rules, equity)

	if len(violations) > 0 {
		messages := make([]string, len(violations))
		for i, v := range violations {
			messages[i] = v.Message()
		}
		account.Status = models.StatusFailed
		account.FailureReason = strings.Join(messages, " | ")

		if err := e.store.SaveRiskState(ctx, account); err != nil {
			return Result{}, fmt.Errorf("failed to save FAILED status for account %s: %w", account.ID, err)
		}
		l.Warn("Challenge failed",
			zap.String("reason", account.FailureReason),
			zap.Float64("equity", equity),
			zap.Int("violations", len(violations)),
		)
		return Result{
			Status:     models.StatusFailed,
			Reason:     account.FailureReason,
			Violations: violations,
			Metrics:    &metrics,
		}, nil
	}

	if metrics.ProfitPct >= rules.ProfitTargetPercent {
		account.Status = models.StatusPassed
		account.FailureReason = ""

		if err := e.store.SaveRiskState(ctx, account); err != nil {
			return Result{}, fmt.Errorf("failed to save PASSED status for account %s: %w", account.ID, err)
		}
		l.Info("Challenge passed", zap.Float64("equity", equity), zap.Float64("profit_percent", metrics.ProfitPct))
		return Result{
			Status:     models.StatusPassed,
			Reason:     fmt.Sprintf("target reached: +%.2f%% against the %s%% profit target", metrics.ProfitPct, formatPct(rules.ProfitTargetPercent)),
			Violations: []Violation{},
			Metrics:    &metrics,
		}, nil
	}

	if baselineReset {
		if err := e.store.SaveRiskState(ctx, account); err != nil {
			return Result{}, fmt.Errorf("failed to save daily baseline for account %s: %w", account.ID, err)
		}
	}

	return Result{
		Allowed:    true,
		Status:     models.StatusActive,
		Violations: []Violation{},
		Metrics:    &metrics,
	}, nil
}

// computeMetrics expects a positive initial capital. Daily loss is
// normalized on initial capital, not on the daily baseline.
func computeMetrics(account *models.Account, rules *models.RuleSet, equity float64) Metrics {
	capital := account.InitialCapital
	profit := equity - capital
	profitPct := profit / capital * 100
	return Metrics{
		Equity:           equity,
		TotalDrawdownPct: (capital - equity) / capital * 100,
		DailyLossPct:     (account.DailyStartingEquity - equity) / capital * 100,
		ProfitPct:        profitPct,
		ProfitAmount:     profit,
		ProfitRemaining:  rules.ProfitTargetPercent - profitPct,
	}
}

// checkLimits returns every breached loss limit, total drawdown first.
func checkLimits(account *models.Account, rules *models.RuleSet, equity float64) []Violation {
	capital := account.InitialCapital
	var violations []Violation

	totalLoss := capital - equity
	if pct := totalLoss / capital * 100; pct >= rules.MaxTotalDrawdownPercent {
		violations = append(violations, Violation{
			Rule:       RuleMaxTotalDrawdown,
			LimitPct:   rules.MaxTotalDrawdownPercent,
			CurrentPct: pct,
			Amount:     totalLoss,
		})
	}

	dailyLoss := account.DailyStartingEquity - equity
	if pct := dailyLoss / capital * 100; pct >= rules.MaxDailyLossPercent {
		violations = append(violations, Violation{
			Rule:       RuleMaxDailyLoss,
			LimitPct:   rules.MaxDailyLossPercent,
			CurrentPct: pct,
			Amount:     dailyLoss,
		})
	}

	return violations
}

func failureReason(account *models.Account) string {
	if account.FailureReason != "" {
		return account.FailureReason
	}
	return reasonAlreadyFailed
}
