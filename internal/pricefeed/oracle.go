package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"prop-risk-engine-go/internal/config"
	"prop-risk-engine-go/internal/risk"
)

// Source fetches a live price for a normalized symbol.
type Source interface {
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)
}

// clockSource is a Source with a cheap endpoint for connectivity checks.
type clockSource interface {
	GetServerTime(ctx context.Context) (int64, error)
}

// Feed is a price oracle that can report whether its upstream is reachable.
type Feed interface {
	risk.PriceOracle
	Ping(ctx context.Context) error
}

// Oracle serves quotes from a Source through a short-lived cache.
// Concurrent lookups of one symbol share a single fetch, and every fetch
// is bounded by a timeout. Any failure is reported as "no data".
type Oracle struct {
	source  Source
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]risk.Quote
	group singleflight.Group
}

var _ Feed = (*Oracle)(nil)

// NewOracle creates an Oracle over source using the cache TTL and timeout from cfg.
func NewOracle(source Source, cfg *config.PriceFeed, logger *zap.Logger) *Oracle {
	return &Oracle{
		source:  source,
		ttl:     cfg.CacheTTL,
		timeout: cfg.Timeout,
		logger:  logger.Named("oracle"),
		now:     time.Now,
		cache:   make(map[string]risk.Quote),
	}
}

// LatestPrice implements risk.PriceOracle.
func (o *Oracle) LatestPrice(ctx context.Context, instrument string) (risk.Quote, bool) {
	symbol := NormalizeSymbol(instrument)
	if symbol == "" {
		return risk.Quote{}, false
	}

	if q, ok := o.cached(symbol); ok {
		return q, true
	}

	v, err, _ := o.group.Do(symbol, func() (interface{}, error) {
		// The fetch is shared, so one caller giving up must not fail the others.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
		defer cancel()

		price, err := o.source.GetTickerPrice(fetchCtx, symbol)
		if err != nil {
			return nil, err
		}
		if price <= 0 {
			return nil, fmt.Errorf("non-positive price %v for %s", price, symbol)
		}

		q := risk.Quote{Price: price, AsOf: o.now()}
		o.mu.Lock()
		o.cache[symbol] = q
		o.mu.Unlock()
		return q, nil
	})
	if err != nil {
		o.logger.Warn("No price available", zap.String("instrument", instrument), zap.String("symbol", symbol), zap.Error(err))
		return risk.Quote{}, false
	}
	return v.(risk.Quote), true
}

// Ping checks that the source answers within the fetch timeout. Sources
// without a clock endpoint are assumed reachable.
func (o *Oracle) Ping(ctx context.Context) error {
	cs, ok := o.source.(clockSource)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if _, err := cs.GetServerTime(ctx); err != nil {
		return fmt.Errorf("price feed unreachable: %w", err)
	}
	return nil
}

func (o *Oracle) cached(symbol string) (risk.Quote, bool) {
	if o.ttl <= 0 {
		return risk.Quote{}, false
	}
	o.mu.RLock()
	q, ok := o.cache[symbol]
	o.mu.RUnlock()
	if !ok || o.now().Sub(q.AsOf) >= o.ttl {
		return risk.Quote{}, false
	}
	return q, true
}

// StaticOracle serves prices from a fixed table. It backs dry runs and tests.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]float64
	now    func() time.Time
}

var _ Feed = (*StaticOracle)(nil)

// NewStaticOracle creates a StaticOracle; keys are normalized like instruments.
func NewStaticOracle(prices map[string]float64) *StaticOracle {
	o := &StaticOracle{prices: make(map[string]float64, len(prices)), now: time.Now}
	for instrument, price := range prices {
		o.prices[NormalizeSymbol(instrument)] = price
	}
	return o
}

// Set replaces the price of one instrument.
func (o *StaticOracle) Set(instrument string, price float64) {
	o.mu.Lock()
	o.prices[NormalizeSymbol(instrument)] = price
	o.mu.Unlock()
}

// Delete removes an instrument so it reports no data.
func (o *StaticOracle) Delete(instrument string) {
	o.mu.Lock()
	delete(o.prices, NormalizeSymbol(instrument))
	o.mu.Unlock()
}

// LatestPrice implements risk.PriceOracle.
func (o *StaticOracle) LatestPrice(ctx context.Context, instrument string) (risk.Quote, bool) {
	o.mu.RLock()
	price, ok := o.prices[NormalizeSymbol(instrument)]
	o.mu.RUnlock()
	if !ok || price <= 0 {
		return risk.Quote{}, false
	}
	return risk.Quote{Price: price, AsOf: o.now()}, true
}

// Ping implements Feed; a static table is always available.
func (o *StaticOracle) Ping(ctx context.Context) error {
	return nil
}

// NewFromConfig builds the oracle selected by cfg.Source.
func NewFromConfig(cfg *config.PriceFeed, logger *zap.Logger) (Feed, error) {
	switch cfg.Source {
	case "static":
		logger.Warn("Using static price table", zap.Int("instruments", len(cfg.StaticPrices)))
		return NewStaticOracle(cfg.StaticPrices), nil
	case "binance":
		return NewOracle(NewRestClient(cfg, logger), cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown price feed source %q", cfg.Source)
}
