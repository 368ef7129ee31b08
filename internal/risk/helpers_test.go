package risk

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"prop-risk-engine-go/internal/models"
)

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// MockOracle is a mock implementation of PriceOracle.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) LatestPrice(ctx context.Context, instrument string) (Quote, bool) {
	args := m.Called(instrument)
	return args.Get(0).(Quote), args.Bool(1)
}

// priceTable is a PriceOracle backed by a fixed map.
type priceTable map[string]float64

func (t priceTable) LatestPrice(ctx context.Context, instrument string) (Quote, bool) {
	p, ok := t[instrument]
	return Quote{Price: p, AsOf: testNow}, ok
}

// memStore is an in-memory Store that hands out copies, like a database would.
type memStore struct {
	mu        sync.Mutex
	accounts  map[string]models.Account
	rules     map[string]models.RuleSet
	positions map[string][]models.Position
	saves     int
}

func newMemStore() *memStore {
	return &memStore{
		accounts:  make(map[string]models.Account),
		rules:     make(map[string]models.RuleSet),
		positions: make(map[string][]models.Position),
	}
}

func (s *memStore) put(a models.Account, r models.RuleSet, positions ...models.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	s.rules[a.ID] = r
	s.positions[a.ID] = positions
}

func (s *memStore) account(id string) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

func (s *memStore) Load(ctx context.Context, accountID string) (*models.Account, *models.RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, nil, models.ErrAccountNotFound
	}
	r, ok := s.rules[accountID]
	if !ok {
		return nil, nil, models.ErrRuleSetNotFound
	}
	return &a, &r, nil
}

func (s *memStore) OpenPositions(ctx context.Context, accountID string) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []models.Position
	for _, p := range s.positions[accountID] {
		if p.Status == models.PositionOpen {
			open = append(open, p)
		}
	}
	return open, nil
}

func (s *memStore) SaveRiskState(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.accounts[account.ID]
	stored.Status = account.Status
	stored.FailureReason = account.FailureReason
	stored.DailyStartingEquity = account.DailyStartingEquity
	stored.LastEquityReset = account.LastEquityReset
	s.accounts[account.ID] = stored
	s.saves++
	return nil
}

func standardRules() models.RuleSet {
	return models.RuleSet{
		MaxTotalDrawdownPercent: 10,
		MaxDailyLossPercent:     5,
		ProfitTargetPercent:     10,
		Active:                  true,
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func newTestEvaluator(store Store, oracle PriceOracle) *Evaluator {
	log := zap.NewNop()
	return NewEvaluator(
		store,
		NewEquityCalculator(oracle, log, 4),
		NewDailyWindow(fixedClock),
		NewLocker(),
		log,
	)
}
