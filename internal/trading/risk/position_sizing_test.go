package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePositionSize(t *testing.T) {
	res, err := CalculatePositionSize(10000, 0.01, 100, 95, 5)
	require.NoError(t, err)
	assert.InDelta(t, 2000, res.Notional, 1e-9)
	assert.InDelta(t, 400, res.Margin, 1e-9)
	assert.InDelta(t, 20, res.Quantity, 1e-9)
	assert.InDelta(t, 100, res.RiskAmount, 1e-9)
	assert.InDelta(t, 0.2, res.LiquidationDist, 1e-12)
}

func TestCalculatePositionSizeCappedByMargin(t *testing.T) {
	res, err := CalculatePositionSize(1000, 0.05, 100, 99, 2)
	require.NoError(t, err)
	assert.InDelta(t, 2000, res.Notional, 1e-9, "account times leverage bounds the notional")
	assert.InDelta(t, 1000, res.Margin, 1e-9)
	assert.InDelta(t, 20, res.RiskAmount, 1e-9, "less than the budget when capped")
}

func TestCalculatePositionSizeErrors(t *testing.T) {
	tests := []struct {
		name                            string
		account, risk, entry, stop, lev float64
	}{
		{"no account", 0, 0.01, 100, 95, 2},
		{"risk of whole account", 1000, 1, 100, 95, 2},
		{"stop above entry", 1000, 0.01, 100, 101, 2},
		{"stop at entry", 1000, 0.01, 100, 100, 2},
		{"leverage below one", 1000, 0.01, 100, 95, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculatePositionSize(tt.account, tt.risk, tt.entry, tt.stop, tt.lev)
			assert.Error(t, err)
		})
	}
}
