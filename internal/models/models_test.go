package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionPnLAt(t *testing.T) {
	testCases := []struct {
		name     string
		position Position
		price    float64
		expected float64
	}{
		{
			name:     "Buy in profit",
			position: Position{Side: SideBuy, EntryPrice: 50000, Quantity: 0.1},
			price:    52000,
			expected: 200,
		},
		{
			name:     "Buy at a loss",
			position: Position{Side: SideBuy, EntryPrice: 50000, Quantity: 0.1},
			price:    49000,
			expected: -100,
		},
		{
			name:     "Sell in profit",
			position: Position{Side: SideSell, EntryPrice: 2500, Quantity: 2},
			price:    2400,
			expected: 200,
		},
		{
			name:     "Sell at a loss",
			position: Position{Side: SideSell, EntryPrice: 2500, Quantity: 2},
			price:    2600,
			expected: -200,
		},
		{
			name:     "Flat at entry",
			position: Position{Side: SideSell, EntryPrice: 1.1, Quantity: 1000},
			price:    1.1,
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, tc.position.PnLAt(tc.price), 1e-9)
		})
	}
}

func TestParseSide(t *testing.T) {
	side, err := ParseSide(" buy ")
	assert.NoError(t, err)
	assert.Equal(t, SideBuy, side)

	side, err = ParseSide("SELL")
	assert.NoError(t, err)
	assert.Equal(t, SideSell, side)

	_, err = ParseSide("hold")
	assert.Error(t, err)
}

func TestParsePositionStatus(t *testing.T) {
	status, err := ParsePositionStatus("open")
	assert.NoError(t, err)
	assert.Equal(t, PositionOpen, status)

	_, err = ParsePositionStatus("pending")
	assert.Error(t, err)
}

func TestAccountStatus(t *testing.T) {
	assert.True(t, StatusActive.Valid())
	assert.False(t, StatusActive.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusPassed.Terminal())
	assert.False(t, AccountStatus("SUSPENDED").Valid())
}
