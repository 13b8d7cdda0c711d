// Package correlation measures how closely an altcoin follows BTC and what a
// BTC sell-off would likely do to it.
package correlation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Alias1177/LeverageAdvisor/models"
)

// MinAlignedReturns is the smallest overlap AnalyzeBTC accepts
const MinAlignedReturns = 10

// ErrInsufficientOverlap means the two series share too few timestamps
var ErrInsufficientOverlap = errors.New("not enough overlapping bars between altcoin and BTC")

// Horizons are the minutes-ahead points of PredictedAltcoinDrop. Shorter
// horizons realize only part of the full move.
var Horizons = map[int]float64{
	15:  0.5,
	60:  0.8,
	240: 1.0,
}

// LiquidationLeverage is the reference leverage behind LiquidationRisk: a
// position at this leverage is wiped out by a 100/LiquidationLeverage % drop.
const LiquidationLeverage = 10.0

// AnalyzeBTC correlates the returns of alt and btc on shared timestamps and
// projects a BTC move of scenarioPct percent (negative for a drop) onto the
// altcoin.
func AnalyzeBTC(symbol string, alt, btc []models.Candle, scenarioPct float64) (*models.BTCCorrelationRisk, error) {
	altRets, btcRets := alignedReturns(alt, btc)
	if len(altRets) < MinAlignedReturns {
		return nil, fmt.Errorf("%s: %w (%d returns, need %d)", symbol, ErrInsufficientOverlap, len(altRets), MinAlignedReturns)
	}

	r, beta := pearsonBeta(altRets, btcRets)
	strength := math.Min(1, math.Abs(r))

	drops := make(map[int]float64, len(Horizons))
	liquidation := make(map[int]float64, len(Horizons))
	var worst float64
	for minutes, share := range Horizons {
		move := beta * scenarioPct * share
		// the projection only counts when it moves with BTC
		if move*scenarioPct < 0 {
			move = 0
		}
		drops[minutes] = move
		liquidation[minutes] = math.Min(1, math.Abs(move)/(100/LiquidationLeverage))
		worst = math.Max(worst, math.Abs(move))
	}

	return &models.BTCCorrelationRisk{
		Symbol:               symbol,
		BTCDropScenario:      scenarioPct,
		PredictedAltcoinDrop: drops,
		CorrelationStrength:  strength,
		RiskLevel:            classify(worst, strength),
		LiquidationRisk:      liquidation,
	}, nil
}

// classify grades the worst projected move in percent
func classify(worstPct, strength float64) models.RiskLevel {
	switch {
	case strength < 0.3 || worstPct < 3:
		return models.RiskLow
	case worstPct < 7:
		return models.RiskMedium
	case worstPct < 12:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

// alignedReturns returns close-to-close returns over bars present in both
// series, in alt's order
func alignedReturns(alt, btc []models.Candle) (altRets, btcRets []float64) {
	btcClose := make(map[time.Time]float64, len(btc))
	for _, c := range btc {
		btcClose[c.Timestamp.UTC()] = c.Close
	}

	var prevAlt, prevBTC float64
	havePrev := false
	for _, c := range alt {
		b, ok := btcClose[c.Timestamp.UTC()]
		if !ok || !(c.Close > 0) || !(b > 0) {
			continue
		}
		if havePrev {
			altRets = append(altRets, c.Close/prevAlt-1)
			btcRets = append(btcRets, b/prevBTC-1)
		}
		prevAlt, prevBTC, havePrev = c.Close, b, true
	}
	return altRets, btcRets
}

// pearsonBeta returns the correlation of x with y and the beta of x on y
func pearsonBeta(x, y []float64) (r, beta float64) {
	n := float64(len(x))
	var sx, sy float64
	for i := range x {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/n, sy/n

	var cov, vx, vy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, 0
	}
	return cov / math.Sqrt(vx*vy), cov / vy
}
