package models

import (
	"time"

	"gorm.io/gorm"
)

// Position is a simulated trade. Quantity, EntryPrice and Side never change
// after creation; RealizedPnL is written once, when the position closes.
type Position struct {
	gorm.Model
	AccountID   string         `gorm:"size:36;not null;index:idx_account_status" json:"account_id"`
	Instrument  string         `gorm:"not null" json:"instrument"`
	Side        Side           `gorm:"size:4;not null" json:"side"`
	Quantity    float64        `gorm:"not null" json:"quantity"`
	EntryPrice  float64        `gorm:"not null" json:"entry_price"`
	Status      PositionStatus `gorm:"size:8;not null;default:OPEN;index:idx_account_status" json:"status"`
	ClosePrice  *float64       `json:"close_price,omitempty"`
	RealizedPnL float64        `gorm:"column:realized_pnl" json:"realized_pnl"`
	OpenedAt    time.Time      `json:"opened_at"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`
	// Voided marks a position closed by a challenge reset rather than a trade.
	Voided bool `gorm:"not null;default:false" json:"voided,omitempty"`
}

// PnLAt returns the profit or loss of the position if it were marked at price.
func (p *Position) PnLAt(price float64) float64 {
	if p.Side == SideSell {
		return (p.EntryPrice - price) * p.Quantity
	}
	return (price - p.EntryPrice) * p.Quantity
}
