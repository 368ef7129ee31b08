package trading

import (
	"context"
	"time"

	"prop-risk-engine-go/internal/models"
)

// StatsDetail holds realized trade figures for one period.
type StatsDetail struct {
	TotalTrades      int64   `json:"total_trades"`
	ProfitableTrades int64   `json:"profitable_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalProfit      float64 `json:"total_profit"`
}

// Statistics compares the last 24 hours with the account's whole history.
type Statistics struct {
	Since24h StatsDetail `json:"since_24h"`
	AllTime  StatsDetail `json:"all_time"`
}

// Statistics summarizes the account's closed positions. Positions voided
// by a challenge reset were never traded out and are left out.
func (s *Service) Statistics(ctx context.Context, accountID string) (Statistics, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return Statistics{}, err
	}

	closed := models.PositionClosed
	positions, err := s.store.Positions(ctx, accountID, &closed)
	if err != nil {
		return Statistics{}, err
	}
	return summarize(positions, s.now()), nil
}

func summarize(positions []models.Position, now time.Time) Statistics {
	since24h := now.Add(-24 * time.Hour)

	var stats Statistics
	for _, p := range positions {
		if p.Voided {
			continue
		}

		stats.AllTime.add(p.RealizedPnL)
		if p.ClosedAt != nil && p.ClosedAt.After(since24h) {
			stats.Since24h.add(p.RealizedPnL)
		}
	}

	stats.AllTime.finish()
	stats.Since24h.finish()
	return stats
}

func (d *StatsDetail) add(pnl float64) {
	d.TotalTrades++
	if pnl > 0 {
		d.ProfitableTrades++
	}
	d.TotalProfit += pnl
}

func (d *StatsDetail) finish() {
	if d.TotalTrades > 0 {
		d.WinRate = float64(d.ProfitableTrades) / float64(d.TotalTrades)
	}
}
