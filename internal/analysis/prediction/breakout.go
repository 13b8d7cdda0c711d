// Package prediction estimates whether price breaks through or bounces off
// detected support and resistance levels.
package prediction

import (
	"math"
	"sort"
	"time"

	"github.com/Alias1177/LeverageAdvisor/internal/analysis/technical"
	"github.com/Alias1177/LeverageAdvisor/models"
)

// ModelName identifies predictions made by EstimateBreakouts
const ModelName = "touch_heuristic"

const (
	rsiPeriod       = 14
	atrPeriod       = 14
	horizonBars     = 10
	defaultHorizon  = 60 // minutes, when bar spacing is unknown
	touchDecay      = 0.08
	strengthWeight  = 0.3
	momentumWeight  = 0.25
	minProbability  = 0.05
	maxProbability  = 0.95
	baseConfidence  = 0.3
	touchConfidence = 0.1
	maxConfidence   = 0.85
)

// EstimateBreakouts scores every level. Well-tested, strong levels are more
// likely to hold; momentum toward a level (RSI above 50 into resistance,
// below 50 into support) raises the breakout odds. The bounce probability is
// always the complement of the breakout probability.
func EstimateBreakouts(candles []models.Candle, levels []models.SupportResistanceLevel) []models.BreakoutPrediction {
	if len(candles) == 0 || len(levels) == 0 {
		return nil
	}

	rsi := technical.CalculateRSI(candles, rsiPeriod)
	atr := technical.CalculateATR(candles, atrPeriod)
	horizon := horizonMinutes(candles)

	out := make([]models.BreakoutPrediction, 0, len(levels))
	for _, lvl := range levels {
		momentum := (rsi - 50) / 50
		if lvl.LevelType == models.LevelSupport {
			momentum = -momentum
		}
		touches := math.Max(0, float64(lvl.TouchCount-1))
		strength := math.Max(0, math.Min(1, lvl.Strength))

		breakout := 0.5 - touchDecay*touches - strengthWeight*strength + momentumWeight*momentum
		breakout = math.Max(minProbability, math.Min(maxProbability, breakout))

		confidence := math.Min(maxConfidence, baseConfidence+touchConfidence*float64(lvl.TouchCount))

		out = append(out, models.BreakoutPrediction{
			Level:                lvl,
			BreakoutProbability:  breakout,
			BounceProbability:    1 - breakout,
			PredictionConfidence: confidence,
			PredictedPriceTarget: priceTarget(lvl, breakout, atr),
			TimeHorizonMinutes:   horizon,
			ModelName:            ModelName,
		})
	}
	return out
}

// priceTarget is one ATR past the level on a breakout, one ATR back on a bounce
func priceTarget(lvl models.SupportResistanceLevel, breakout, atr float64) float64 {
	dir := 1.0
	if lvl.LevelType == models.LevelSupport {
		dir = -1.0
	}
	if breakout < 0.5 {
		dir = -dir
	}
	return lvl.Price + dir*atr
}

// horizonMinutes is horizonBars times the median bar spacing
func horizonMinutes(candles []models.Candle) int {
	var gaps []time.Duration
	for i := 1; i < len(candles); i++ {
		if d := candles[i].Timestamp.Sub(candles[i-1].Timestamp); d > 0 {
			gaps = append(gaps, d)
		}
	}
	if len(gaps) == 0 {
		return defaultHorizon
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	median := gaps[len(gaps)/2]
	return int(math.Max(1, (median * horizonBars).Minutes()))
}
