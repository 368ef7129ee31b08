package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prop-risk-engine-go/internal/models"
)

func TestClosePosition(t *testing.T) {
	testCases := []struct {
		name        string
		side        models.Side
		closePrice  float64
		expectedPnL float64
	}{
		{name: "Long in profit", side: models.SideBuy, closePrice: 52000, expectedPnL: 200},
		{name: "Long at a loss", side: models.SideBuy, closePrice: 45000, expectedPnL: -500},
		{name: "Short in profit", side: models.SideSell, closePrice: 48000, expectedPnL: 200},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := setupTest(t)
			ctx := context.Background()
			seedAccount(t, s, "acct-1", 100000)

			position := &models.Position{AccountID: "acct-1", Instrument: "BTCUSDT", Side: tc.side, Quantity: 0.1, EntryPrice: 50000}
			require.NoError(t, s.CreatePosition(ctx, position))
			assert.Equal(t, models.PositionOpen, position.Status)
			assert.Equal(t, testNow, position.OpenedAt)

			closed, err := s.ClosePosition(ctx, "acct-1", position.ID, tc.closePrice, testNow)
			require.NoError(t, err)
			assert.Equal(t, models.PositionClosed, closed.Status)
			assert.InDelta(t, tc.expectedPnL, closed.RealizedPnL, 1e-9)
			require.NotNil(t, closed.ClosePrice)
			assert.Equal(t, tc.closePrice, *closed.ClosePrice)

			account, err := s.GetAccount(ctx, "acct-1")
			require.NoError(t, err)
			assert.InDelta(t, 100000+tc.expectedPnL, account.CashBalance, 1e-9)

			stored, err := s.GetPosition(ctx, "acct-1", position.ID)
			require.NoError(t, err)
			assert.InDelta(t, tc.expectedPnL, stored.RealizedPnL, 1e-9)
			assert.False(t, stored.Voided)
		})
	}
}

func TestClosePosition_RealizesOnce(t *testing.T) {
	s := setupTest(t)
	ctx := context.Background()
	seedAccount(t, s, "acct-1", 100000)

	position := &models.Position{AccountID: "acct-1", Instrument: "ETHUSDT", Side: models.SideBuy, Quantity: 2, EntryPrice: 2500}
	require.NoError(t, s.CreatePosition(ctx, position))

	_, err := s.ClosePosition(ctx, "acct-1", position.ID, 2600, testNow)
	require.NoError(t, err)

	_, err = s.ClosePosition(ctx, "acct-1", position.ID, 3000, testNow)
	assert.ErrorIs(t, err, models.ErrPositionClosed)

	account, err := s.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 100200.0, account.CashBalance)

	stored, err := s.GetPosition(ctx, "acct-1", position.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, stored.RealizedPnL)
	assert.Equal(t, 2600.0, *stored.ClosePrice)
}

func TestClosePosition_WrongAccount(t *testing.T) {
	s := setupTest(t)
	ctx := context.Background()
	seedAccount(t, s, "acct-1", 100000)
	seedAccount(t, s, "acct-2", 100000)

	position := &models.Position{AccountID: "acct-1", Instrument: "ETHUSDT", Side: models.SideBuy, Quantity: 2, EntryPrice: 2500}
	require.NoError(t, s.CreatePosition(ctx, position))

	_, err := s.ClosePosition(ctx, "acct-2", position.ID, 2600, testNow)
	assert.ErrorIs(t, err, models.ErrPositionNotFound)
}

func TestPositions(t *testing.T) {
	s := setupTest(t)
	ctx := context.Background()
	seedAccount(t, s, "acct-1", 100000)

	for _, instrument := range []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"} {
		require.NoError(t, s.CreatePosition(ctx, &models.Position{
			AccountID: "acct-1", Instrument: instrument, Side: models.SideBuy, Quantity: 1, EntryPrice: 100,
		}))
	}
	_, err := s.ClosePosition(ctx, "acct-1", 2, 110, testNow)
	require.NoError(t, err)

	open, err := s.OpenPositions(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, open, 2)

	closedStatus := models.PositionClosed
	closed, err := s.Positions(ctx, "acct-1", &closedStatus)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "ETHUSDT", closed[0].Instrument)

	all, err := s.Positions(ctx, "acct-1", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Same open time: newest id first.
	assert.Equal(t, "SOLUSDT", all[0].Instrument)
}
