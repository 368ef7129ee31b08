package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prop-risk-engine-go/internal/config"
	"prop-risk-engine-go/internal/models"
	"prop-risk-engine-go/internal/risk"
	"prop-risk-engine-go/internal/store"
)

var (
	ErrInvalidOrder  = errors.New("invalid order")
	ErrUnknownPlan   = errors.New("unknown challenge plan")
	ErrNoMarketData  = errors.New("no market data for instrument")
	ErrInvalidSignup = errors.New("invalid account registration")
	// ErrInsufficientEquity rejects an order whose notional exceeds the account equity.
	ErrInsufficientEquity = errors.New("insufficient equity for order")
)

// OpenRequest asks for a new position. Either Quantity or Amount (quote
// currency to spend at the current price) must be positive.
type OpenRequest struct {
	AccountID  string      `json:"-"`
	Instrument string      `json:"instrument"`
	Side       models.Side `json:"side"`
	Quantity   float64     `json:"quantity"`
	Amount     float64     `json:"amount"`
}

// TradeResult is the outcome of a trade request. A trade refused by the
// risk rules is a result with Allowed false, not an error.
type TradeResult struct {
	Allowed    bool             `json:"allowed"`
	Reason     string           `json:"reason,omitempty"`
	Position   *models.Position `json:"position,omitempty"`
	Evaluation *risk.Result     `json:"evaluation,omitempty"`
}

// Service runs the flows that change an account: opening and closing
// trades, registration and challenge purchases. Every flow re-evaluates
// the account while still holding its lock.
type Service struct {
	logger    *zap.Logger
	store     *store.Store
	oracle    risk.PriceOracle
	evaluator *risk.Evaluator
	locks     *risk.Locker
	plans     *config.Config
	now       func() time.Time
}

// NewService creates a Service. locks must be the Locker the evaluator uses.
func NewService(logger *zap.Logger, cfg *config.Config, st *store.Store, oracle risk.PriceOracle, evaluator *risk.Evaluator, locks *risk.Locker) *Service {
	return &Service{
		logger:    logger.Named("trading"),
		store:     st,
		oracle:    oracle,
		evaluator: evaluator,
		locks:     locks,
		plans:     cfg,
		now:       time.Now,
	}
}

// Plans returns the purchasable challenge plans.
func (s *Service) Plans() []config.Plan {
	return s.plans.Plans
}

// OpenTrade opens a position if the account is allowed to trade, then
// evaluates the account against the new exposure.
func (s *Service) OpenTrade(ctx context.Context, req OpenRequest) (TradeResult, error) {
	side, err := models.ParseSide(string(req.Side))
	if err != nil {
		return TradeResult{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	instrument := strings.TrimSpace(req.Instrument)
	if instrument == "" {
		return TradeResult{}, fmt.Errorf("%w: instrument is required", ErrInvalidOrder)
	}
	if req.Quantity < 0 || req.Amount < 0 || (req.Quantity == 0 && req.Amount == 0) {
		return TradeResult{}, fmt.Errorf("%w: quantity or amount must be positive", ErrInvalidOrder)
	}

	l := s.logger.With(
		zap.String("account_id", req.AccountID),
		zap.String("instrument", instrument),
		zap.String("side", string(side)),
	)

	unlock := s.locks.Lock(req.AccountID)
	defer unlock()

	check, err := s.evaluator.PreTradeHeld(ctx, req.AccountID)
	if err != nil {
		return TradeResult{}, err
	}
	if !check.Allowed || check.Metrics == nil {
		l.Info("Trade blocked", zap.String("reason", check.Reason))
		return TradeResult{Allowed: false, Reason: check.Reason}, nil
	}

	quote, ok := s.oracle.LatestPrice(ctx, instrument)
	if !ok || quote.Price <= 0 {
		return TradeResult{}, fmt.Errorf("%w: %s", ErrNoMarketData, instrument)
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = req.Amount / quote.Price
	}

	// Opening does not debit cash, but no single order may be larger than
	// the account is worth.
	if notional := quantity * quote.Price; notional > check.Metrics.Equity {
		return TradeResult{}, fmt.Errorf("%w: notional %.2f exceeds equity %.2f", ErrInsufficientEquity, notional, check.Metrics.Equity)
	}

	position := &models.Position{
		AccountID:  req.AccountID,
		Instrument: instrument,
		Side:       side,
		Quantity:   quantity,
		EntryPrice: quote.Price,
		OpenedAt:   s.now().UTC(),
	}
	if err := s.store.CreatePosition(ctx, position); err != nil {
		return TradeResult{}, err
	}
	l.Info("Position opened",
		zap.Uint("position_id", position.ID),
		zap.Float64("quantity", quantity),
		zap.Float64("entry_price", quote.Price),
	)

	res, err := s.evaluator.EvaluateHeld(ctx, req.AccountID)
	if err != nil {
		return TradeResult{}, err
	}
	return TradeResult{Allowed: true, Reason: res.Reason, Position: position, Evaluation: &res}, nil
}

// CloseTrade closes a position at the current price, credits its realized
// PnL and evaluates the account. Closing is allowed in every status.
func (s *Service) CloseTrade(ctx context.Context, accountID string, positionID uint) (TradeResult, error) {
	unlock := s.locks.Lock(accountID)
	defer unlock()

	position, err := s.store.GetPosition(ctx, accountID, positionID)
	if err != nil {
		return TradeResult{}, err
	}
	if position.Status != models.PositionOpen {
		return TradeResult{}, fmt.Errorf("position %d: %w", positionID, models.ErrPositionClosed)
	}

	quote, ok := s.oracle.LatestPrice(ctx, position.Instrument)
	if !ok || quote.Price <= 0 {
		return TradeResult{}, fmt.Errorf("%w: %s", ErrNoMarketData, position.Instrument)
	}

	closed, err := s.store.ClosePosition(ctx, accountID, positionID, quote.Price, s.now())
	if err != nil {
		return TradeResult{}, err
	}
	s.logger.Info("Position closed",
		zap.String("account_id", accountID),
		zap.Uint("position_id", positionID),
		zap.Float64("close_price", quote.Price),
		zap.Float64("realized_pnl", closed.RealizedPnL),
	)

	res, err := s.evaluator.EvaluateHeld(ctx, accountID)
	if err != nil {
		return TradeResult{}, err
	}
	return TradeResult{Allowed: true, Reason: res.Reason, Position: closed, Evaluation: &res}, nil
}

// RegisterAccount creates an account funded by the named plan. An empty
// plan name selects the configured default.
func (s *Service) RegisterAccount(ctx context.Context, username, planName string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidSignup)
	}
	if planName == "" {
		planName = s.plans.Risk.DefaultPlan
	}
	plan, ok := s.plans.FindPlan(planName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planName)
	}

	now := s.now().UTC()
	account := &models.Account{
		ID:                  uuid.NewString(),
		Username:            username,
		CashBalance:         plan.Capital,
		InitialCapital:      plan.Capital,
		DailyStartingEquity: plan.Capital,
		LastEquityReset:     &now,
		Status:              models.StatusActive,
	}
	if err := s.store.CreateAccount(ctx, account, ruleSetFor(plan)); err != nil {
		return nil, err
	}
	s.logger.Info("Account registered",
		zap.String("account_id", account.ID),
		zap.String("plan", plan.Name),
		zap.Float64("capital", plan.Capital),
	)
	return account, nil
}

// PurchaseChallenge starts a new challenge on the named plan: the previous
// rule set is archived and the account restarts ACTIVE on the plan capital.
func (s *Service) PurchaseChallenge(ctx context.Context, accountID, planName string) (*models.Account, error) {
	plan, ok := s.plans.FindPlan(planName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planName)
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	if err := s.store.ResetAccountForNewChallenge(ctx, accountID, ruleSetFor(plan)); err != nil {
		return nil, err
	}
	s.logger.Info("Challenge purchased",
		zap.String("account_id", accountID),
		zap.String("plan", plan.Name),
		zap.Float64("price", plan.Price),
	)
	return s.store.GetAccount(ctx, accountID)
}

func ruleSetFor(plan config.Plan) *models.RuleSet {
	return &models.RuleSet{
		PlanName:                plan.Name,
		PlanPrice:               plan.Price,
		StartingCapital:         plan.Capital,
		ProfitTargetPercent:     plan.ProfitTargetPercent,
		MaxDailyLossPercent:     plan.MaxDailyLossPercent,
		MaxTotalDrawdownPercent: plan.MaxTotalDrawdownPercent,
	}
}
