package risk

import (
	"fmt"
	"math"
)

// PositionSizingResult holds position sizing calculation results
type PositionSizingResult struct {
	Margin          float64 `json:"margin"`
	Notional        float64 `json:"notional"`
	Quantity        float64 `json:"quantity"`
	Leverage        float64 `json:"leverage"`
	RiskAmount      float64 `json:"risk_amount"`
	LiquidationDist float64 `json:"liquidation_distance"` // fraction of entry price, isolated margin
}

// CalculatePositionSize sizes a long so that hitting the stop loses
// riskPerTrade of the account, never using more margin than the account
// holds at the given leverage.
func CalculatePositionSize(accountSize, riskPerTrade, entry, stopLoss, leverage float64) (*PositionSizingResult, error) {
	if accountSize <= 0 || riskPerTrade <= 0 || riskPerTrade >= 1 {
		return nil, fmt.Errorf("account size must be positive and risk per trade within (0, 1)")
	}
	if entry <= 0 || stopLoss <= 0 || stopLoss >= entry {
		return nil, fmt.Errorf("stop loss %.8f must be below entry %.8f for a long", stopLoss, entry)
	}
	if leverage < 1 {
		return nil, fmt.Errorf("leverage must be at least 1, got %v", leverage)
	}

	riskAmount := accountSize * riskPerTrade
	stopFraction := (entry - stopLoss) / entry

	// Notional that loses exactly riskAmount at the stop
	notional := riskAmount / stopFraction
	notional = math.Min(notional, accountSize*leverage)

	return &PositionSizingResult{
		Margin:          notional / leverage,
		Notional:        notional,
		Quantity:        notional / entry,
		Leverage:        leverage,
		RiskAmount:      notional * stopFraction,
		LiquidationDist: 1 / leverage,
	}, nil
}
