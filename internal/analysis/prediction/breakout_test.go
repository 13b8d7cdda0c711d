package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/LeverageAdvisor/models"
)

func trend(n int, step float64, spacing time.Duration) []models.Candle {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	for i := range candles {
		c := 100 + step*float64(i)
		candles[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * spacing),
			Open:      c - step/2,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    500,
		}
	}
	return candles
}

func TestEstimateBreakouts(t *testing.T) {
	candles := trend(30, 0.5, 15*time.Minute)
	resistance := models.SupportResistanceLevel{Price: 120, Strength: 0.2, TouchCount: 1, LevelType: models.LevelResistance}
	support := models.SupportResistanceLevel{Price: 110, Strength: 0.2, TouchCount: 1, LevelType: models.LevelSupport}

	preds := EstimateBreakouts(candles, []models.SupportResistanceLevel{resistance, support})
	require.Len(t, preds, 2)

	for _, p := range preds {
		assert.Equal(t, ModelName, p.ModelName)
		assert.Equal(t, 150, p.TimeHorizonMinutes)
		assert.InDelta(t, 1.0, p.BreakoutProbability+p.BounceProbability, 1e-12)
		assert.GreaterOrEqual(t, p.BreakoutProbability, 0.05)
		assert.LessOrEqual(t, p.BreakoutProbability, 0.95)
	}

	// rising series: momentum pushes through resistance and away from support
	assert.Greater(t, preds[0].BreakoutProbability, preds[1].BreakoutProbability)
	assert.Greater(t, preds[0].PredictedPriceTarget, resistance.Price)
	assert.Greater(t, preds[1].PredictedPriceTarget, support.Price)
	assert.Equal(t, resistance, preds[0].Level)
}

func TestEstimateBreakoutsStrongLevelsHold(t *testing.T) {
	candles := trend(30, 0, time.Hour)
	weak := models.SupportResistanceLevel{Price: 105, Strength: 0.2, TouchCount: 1, LevelType: models.LevelResistance}
	strong := models.SupportResistanceLevel{Price: 106, Strength: 1, TouchCount: 5, LevelType: models.LevelResistance}

	preds := EstimateBreakouts(candles, []models.SupportResistanceLevel{weak, strong})
	require.Len(t, preds, 2)
	assert.Less(t, preds[1].BreakoutProbability, preds[0].BreakoutProbability)
	assert.Greater(t, preds[1].PredictionConfidence, preds[0].PredictionConfidence)
}

func TestEstimateBreakoutsEmpty(t *testing.T) {
	assert.Nil(t, EstimateBreakouts(nil, []models.SupportResistanceLevel{{Price: 1}}))
	assert.Nil(t, EstimateBreakouts(trend(5, 1, time.Minute), nil))
}
