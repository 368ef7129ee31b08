package risk

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"prop-risk-engine-go/internal/models"
)

// EquityCalculator marks open positions to market.
type EquityCalculator struct {
	oracle      PriceOracle
	logger      *zap.Logger
	concurrency int
}

// NewEquityCalculator creates a calculator that prices at most concurrency
// instruments in parallel.
func NewEquityCalculator(oracle PriceOracle, logger *zap.Logger, concurrency int) *EquityCalculator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &EquityCalculator{
		oracle:      oracle,
		logger:      logger.Named("equity"),
		concurrency: concurrency,
	}
}

// Compute returns cash plus the unrealized PnL of every OPEN position.
// A position whose instrument has no price is marked at its entry price,
// so it contributes exactly zero. Compute has no side effects.
func (c *EquityCalculator) Compute(ctx context.Context, cash float64, positions []models.Position) float64 {
	prices := c.currentPrices(ctx, positions)

	equity := cash
	for i := range positions {
		p := &positions[i]
		if p.Status != models.PositionOpen {
			continue
		}
		price, ok := prices[p.Instrument]
		if !ok {
			price = p.EntryPrice
		}
		equity += p.PnLAt(price)
	}
	return equity
}

// currentPrices fetches one quote per distinct instrument of the open positions.
func (c *EquityCalculator) currentPrices(ctx context.Context, positions []models.Position) map[string]float64 {
	instruments := make([]string, 0, len(positions))
	seen := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		if p.Status != models.PositionOpen {
			continue
		}
		if _, dup := seen[p.Instrument]; dup {
			continue
		}
		seen[p.Instrument] = struct{}{}
		instruments = append(instruments, p.Instrument)
	}

	quotes := make([]float64, len(instruments))
	found := make([]bool, len(instruments))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, instrument := range instruments {
		i, instrument := i, instrument
		g.Go(func() error {
			q, ok := c.oracle.LatestPrice(ctx, instrument)
			if ok && q.Price > 0 {
				quotes[i] = q.Price
				found[i] = true
			}
			return nil
		})
	}
	// Lookups never fail; a missing quote is handled by the caller.
	_ = g.Wait()

	prices := make(map[string]float64, len(instruments))
	for i, instrument := range instruments {
		if !found[i] {
			c.logger.Debug("No price for instrument, marking at entry price", zap.String("instrument", instrument))
			continue
		}
		prices[instrument] = quotes[i]
	}
	return prices
}
