package models

import "time"

// Account is a simulated funded account attempting a challenge.
type Account struct {
	ID                  string        `gorm:"primaryKey;size:36" json:"id"`
	Username            string        `gorm:"uniqueIndex;not null" json:"username"`
	CashBalance         float64       `gorm:"not null" json:"cash_balance"`
	InitialCapital      float64       `gorm:"not null" json:"initial_capital"`
	DailyStartingEquity float64       `gorm:"not null" json:"daily_starting_equity"`
	LastEquityReset     *time.Time    `json:"last_equity_reset,omitempty"`
	Status              AccountStatus `gorm:"size:16;not null;default:ACTIVE;index" json:"status"`
	FailureReason       string        `gorm:"size:1024" json:"failure_reason,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}
