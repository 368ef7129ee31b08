package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"prop-risk-engine-go/internal/models"
	"prop-risk-engine-go/internal/risk"
)

// Store persists accounts, their challenge rule sets and the trade ledger.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// ensure Store implements the evaluator's persistence contract
var _ risk.Store = (*Store)(nil)

// New creates a Store over an already migrated database.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// CreateAccount inserts an account together with its first active rule set.
func (s *Store) CreateAccount(ctx context.Context, account *models.Account, rules *models.RuleSet) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("username %s: %w", account.Username, models.ErrUsernameTaken)
			}
			return fmt.Errorf("failed to create account %s: %w", account.Username, err)
		}
		rules.AccountID = account.ID
		rules.Active = true
		if err := tx.Create(rules).Error; err != nil {
			return fmt.Errorf("failed to create rule set for account %s: %w", account.ID, err)
		}
		return nil
	})
}

// GetAccount returns one account.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %s: %w", accountID, models.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}
	return &account, nil
}

// GetAccountByUsername returns the account registered under username.
func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("username %s: %w", username, models.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to get account %s: %w", username, err)
	}
	return &account, nil
}

// ListAccounts returns accounts, optionally only those with the given status.
func (s *Store) ListAccounts(ctx context.Context, status *models.AccountStatus) ([]models.Account, error) {
	q := s.db.WithContext(ctx).Order("created_at asc")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var accounts []models.Account
	if err := q.Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// ActiveRuleSet returns the account's current challenge parameters.
func (s *Store) ActiveRuleSet(ctx context.Context, accountID string) (*models.RuleSet, error) {
	return activeRuleSet(s.db.WithContext(ctx), accountID)
}

func activeRuleSet(db *gorm.DB, accountID string) (*models.RuleSet, error) {
	var rules models.RuleSet
	if err := db.Where("account_id = ? AND active = ?", accountID, true).First(&rules).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %s: %w", accountID, models.ErrRuleSetNotFound)
		}
		return nil, fmt.Errorf("failed to get rule set for account %s: %w", accountID, err)
	}
	return &rules, nil
}

// RuleSets returns every rule set the account has held, newest first.
func (s *Store) RuleSets(ctx context.Context, accountID string) ([]models.RuleSet, error) {
	var rules []models.RuleSet
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id desc").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list rule sets for account %s: %w", accountID, err)
	}
	return rules, nil
}

// Load implements risk.Store.
func (s *Store) Load(ctx context.Context, accountID string) (*models.Account, *models.RuleSet, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	rules, err := s.ActiveRuleSet(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	return account, rules, nil
}

// SaveRiskState implements risk.Store. Only the columns the evaluator owns
// are written, so a concurrent cash update is never overwritten.
func (s *Store) SaveRiskState(ctx context.Context, account *models.Account) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", account.ID).Updates(map[string]interface{}{
		"status":                account.Status,
		"failure_reason":        account.FailureReason,
		"daily_starting_equity": account.DailyStartingEquity,
		"last_equity_reset":     account.LastEquityReset,
		"updated_at":            s.now(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to save risk state for account %s: %w", account.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account %s: %w", account.ID, models.ErrAccountNotFound)
	}
	return nil
}

// ResetAccountForNewChallenge installs rules as the account's only active
// rule set and restarts the account on its starting capital. The previous
// rule set is archived with the status the account ended on, and positions
// still open are voided at their entry price.
func (s *Store) ResetAccountForNewChallenge(ctx context.Context, accountID string, rules *models.RuleSet) error {
	now := s.now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("account %s: %w", accountID, models.ErrAccountNotFound)
			}
			return fmt.Errorf("failed to load account %s: %w", accountID, err)
		}

		if err := tx.Model(&models.RuleSet{}).
			Where("account_id = ? AND active = ?", accountID, true).
			Updates(map[string]interface{}{"active": false, "archived_at": now, "outcome": account.Status}).Error; err != nil {
			return fmt.Errorf("failed to archive rule set for account %s: %w", accountID, err)
		}

		rules.ID = 0
		rules.AccountID = accountID
		rules.Active = true
		rules.ArchivedAt = nil
		rules.Outcome = ""
		if err := tx.Create(rules).Error; err != nil {
			return fmt.Errorf("failed to create rule set for account %s: %w", accountID, err)
		}

		if err := tx.Model(&models.Position{}).
			Where("account_id = ? AND status = ?", accountID, models.PositionOpen).
			Updates(map[string]interface{}{
				"status":       models.PositionClosed,
				"close_price":  gorm.Expr("entry_price"),
				"realized_pnl": 0,
				"closed_at":    now,
				"voided":       true,
			}).Error; err != nil {
			return fmt.Errorf("failed to void open positions for account %s: %w", accountID, err)
		}

		if err := tx.Model(&models.Account{}).Where("id = ?", accountID).Updates(map[string]interface{}{
			"status":                models.StatusActive,
			"failure_reason":        "",
			"cash_balance":          rules.StartingCapital,
			"initial_capital":       rules.StartingCapital,
			"daily_starting_equity": rules.StartingCapital,
			"last_equity_reset":     now,
			"updated_at":            now,
		}).Error; err != nil {
			return fmt.Errorf("failed to reset account %s: %w", accountID, err)
		}
		return nil
	})
}
