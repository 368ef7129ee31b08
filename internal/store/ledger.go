package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"prop-risk-engine-go/internal/models"
)

// CreatePosition records a newly opened position.
func (s *Store) CreatePosition(ctx context.Context, position *models.Position) error {
	position.Status = models.PositionOpen
	position.ClosePrice = nil
	position.ClosedAt = nil
	position.RealizedPnL = 0
	position.Voided = false
	if position.OpenedAt.IsZero() {
		position.OpenedAt = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(position).Error; err != nil {
		return fmt.Errorf("failed to create position for account %s: %w", position.AccountID, err)
	}
	return nil
}

// GetPosition returns one of the account's positions.
func (s *Store) GetPosition(ctx context.Context, accountID string, positionID uint) (*models.Position, error) {
	return getPosition(s.db.WithContext(ctx), accountID, positionID)
}

func getPosition(db *gorm.DB, accountID string, positionID uint) (*models.Position, error) {
	var position models.Position
	if err := db.Where("id = ? AND account_id = ?", positionID, accountID).First(&position).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("position %d: %w", positionID, models.ErrPositionNotFound)
		}
		return nil, fmt.Errorf("failed to get position %d: %w", positionID, err)
	}
	return &position, nil
}

// OpenPositions implements risk.Store.
func (s *Store) OpenPositions(ctx context.Context, accountID string) ([]models.Position, error) {
	status := models.PositionOpen
	return s.Positions(ctx, accountID, &status)
}

// Positions returns the account's positions, optionally filtered by status,
// most recently opened first.
func (s *Store) Positions(ctx context.Context, accountID string, status *models.PositionStatus) ([]models.Position, error) {
	q := s.db.WithContext(ctx).Where("account_id = ?", accountID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var positions []models.Position
	if err := q.Order("opened_at desc").Order("id desc").Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to list positions for account %s: %w", accountID, err)
	}
	return positions, nil
}

// ClosePosition marks an open position closed at price, records its
// realized PnL and credits it to the account's cash, in one transaction.
// A position that is already closed is left untouched.
func (s *Store) ClosePosition(ctx context.Context, accountID string, positionID uint, price float64, at time.Time) (*models.Position, error) {
	var closed *models.Position

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		position, err := getPosition(tx, accountID, positionID)
		if err != nil {
			return err
		}
		if position.Status != models.PositionOpen {
			return fmt.Errorf("position %d: %w", positionID, models.ErrPositionClosed)
		}

		pnl := position.PnLAt(price)
		closedAt := at.UTC()

		res := tx.Model(&models.Position{}).
			Where("id = ? AND status = ?", position.ID, models.PositionOpen).
			Updates(map[string]interface{}{
				"status":       models.PositionClosed,
				"close_price":  price,
				"realized_pnl": pnl,
				"closed_at":    closedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to close position %d: %w", positionID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("position %d: %w", positionID, models.ErrPositionClosed)
		}

		res = tx.Model(&models.Account{}).
			Where("id = ?", accountID).
			Update("cash_balance", gorm.Expr("cash_balance + ?", pnl))
		if res.Error != nil {
			return fmt.Errorf("failed to credit realized pnl to account %s: %w", accountID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("account %s: %w", accountID, models.ErrAccountNotFound)
		}

		position.Status = models.PositionClosed
		position.ClosePrice = &price
		position.RealizedPnL = pnl
		position.ClosedAt = &closedAt
		closed = position
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}
