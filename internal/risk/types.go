package risk

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"prop-risk-engine-go/internal/models"
)

// Quote is the latest known trade price of an instrument.
type Quote struct {
	Price float64   `json:"price"`
	AsOf  time.Time `json:"as_of"`
}

// PriceOracle returns the latest price for an instrument, or false when
// none is available. Callers must not assume anything about freshness.
type PriceOracle interface {
	LatestPrice(ctx context.Context, instrument string) (Quote, bool)
}

// Store is the persistence the evaluator reads and writes.
type Store interface {
	Load(ctx context.Context, accountID string) (*models.Account, *models.RuleSet, error)
	OpenPositions(ctx context.Context, accountID string) ([]models.Position, error)
	// SaveRiskState overwrites status, failure reason and the daily baseline.
	SaveRiskState(ctx context.Context, account *models.Account) error
}

// Rule identifies a loss limit.
type Rule string

const (
	RuleMaxTotalDrawdown Rule = "MAX_TOTAL_DRAWDOWN"
	RuleMaxDailyLoss     Rule = "MAX_DAILY_LOSS"
)

// Violation is one breached loss limit.
type Violation struct {
	Rule       Rule    `json:"rule"`
	LimitPct   float64 `json:"limit_percent"`
	CurrentPct float64 `json:"current_percent"`
	Amount     float64 `json:"amount"`
}

// Message renders the violation for the account's failure reason.
func (v Violation) Message() string {
	label := "total drawdown"
	if v.Rule == RuleMaxDailyLoss {
		label = "daily loss"
	}
	return fmt.Sprintf("%s of %.2f%% ($%.2f) exceeds the %s%% limit", label, v.CurrentPct, v.Amount, formatPct(v.LimitPct))
}

// Metrics are the figures computed during an evaluation pass.
type Metrics struct {
	Equity           float64 `json:"current_equity"`
	TotalDrawdownPct float64 `json:"total_drawdown_percent"`
	DailyLossPct     float64 `json:"daily_loss_percent"`
	ProfitPct        float64 `json:"profit_percent"`
	ProfitAmount     float64 `json:"profit_amount"`
	ProfitRemaining  float64 `json:"profit_to_target"`
}

// Result is the outcome of an evaluation. FAILED and PASSED are ordinary
// results, not errors. Metrics is nil when the pass short-circuited.
type Result struct {
	Allowed    bool                 `json:"allowed"`
	Status     models.AccountStatus `json:"status"`
	Reason     string               `json:"reason,omitempty"`
	Violations []Violation          `json:"violations"`
	Metrics    *Metrics             `json:"metrics,omitempty"`
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
