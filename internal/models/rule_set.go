package models

import (
	"time"

	"gorm.io/gorm"
)

// RuleSet holds the parameters of a purchased challenge.
// Only one rule set per account is Active; archived ones are history.
type RuleSet struct {
	gorm.Model
	AccountID               string        `gorm:"size:36;not null;index" json:"account_id"`
	PlanName                string        `gorm:"not null" json:"plan_name"`
	PlanPrice               float64       `json:"plan_price"`
	StartingCapital         float64       `gorm:"not null" json:"starting_capital"`
	MaxTotalDrawdownPercent float64       `gorm:"not null" json:"max_total_drawdown_percent"`
	MaxDailyLossPercent     float64       `gorm:"not null" json:"max_daily_loss_percent"`
	ProfitTargetPercent     float64       `gorm:"not null" json:"profit_target_percent"`
	Active                  bool          `gorm:"not null;index" json:"active"`
	ArchivedAt              *time.Time    `json:"archived_at,omitempty"`
	Outcome                 AccountStatus `gorm:"size:16" json:"outcome,omitempty"` // account status when archived
}
