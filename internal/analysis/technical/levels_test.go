package technical

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/LeverageAdvisor/models"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// oscillating builds a sine series with period 8 bars around 100, so swing
// lows sit at 94.5 and swing highs at 105.5.
func oscillating(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		c := 100 + 5*math.Sin(float64(i)*math.Pi/4)
		candles[i] = models.Candle{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    1000,
		}
	}
	return candles
}

func TestDetectLevels(t *testing.T) {
	supports, resistances := DetectLevels(oscillating(40), 100, DefaultLevelOptions())
	require.Len(t, supports, 1)
	require.Len(t, resistances, 1)

	s := supports[0]
	assert.InDelta(t, 94.5, s.Price, 1e-6)
	assert.Equal(t, models.LevelSupport, s.LevelType)
	assert.Equal(t, 4, s.TouchCount)
	assert.InDelta(t, 0.8, s.Strength, 1e-9)
	assert.Equal(t, t0.Add(6*time.Hour), s.FirstTouch)
	assert.Equal(t, t0.Add(30*time.Hour), s.LastTouch)
	assert.InDelta(t, 5.5, s.DistanceFromCurrent, 1e-6)
	assert.Equal(t, 4000.0, s.VolumeAtLevel)

	r := resistances[0]
	assert.InDelta(t, 105.5, r.Price, 1e-6)
	assert.Equal(t, models.LevelResistance, r.LevelType)
	assert.Equal(t, 5, r.TouchCount)
	assert.Equal(t, 1.0, r.Strength)
}

func TestDetectLevelsStrengthIsClamped(t *testing.T) {
	opts := DefaultLevelOptions()
	opts.MaxTouches = 2
	supports, resistances := DetectLevels(oscillating(40), 100, opts)
	for _, l := range append(supports, resistances...) {
		assert.LessOrEqual(t, l.Strength, 1.0)
		assert.GreaterOrEqual(t, l.Strength, 0.0)
	}
}

func TestDetectLevelsSplitsAroundPrice(t *testing.T) {
	// above every level: both clusters become supports, nearest first
	supports, resistances := DetectLevels(oscillating(40), 110, DefaultLevelOptions())
	assert.Empty(t, resistances)
	require.Len(t, supports, 2)
	assert.Greater(t, supports[0].Price, supports[1].Price)
}

func TestDetectLevelsNotEnoughData(t *testing.T) {
	supports, resistances := DetectLevels(oscillating(4), 100, DefaultLevelOptions())
	assert.Nil(t, supports)
	assert.Nil(t, resistances)
}

func TestCalculateRSI(t *testing.T) {
	rising := make([]models.Candle, 20)
	flat := make([]models.Candle, 20)
	for i := range rising {
		rising[i] = models.Candle{Close: 100 + float64(i)}
		flat[i] = models.Candle{Close: 100}
	}

	assert.Equal(t, 100.0, CalculateRSI(rising, 14))
	assert.Equal(t, 50.0, CalculateRSI(flat, 14))
	assert.Equal(t, 50.0, CalculateRSI(rising[:5], 14))
}

func TestCalculateATR(t *testing.T) {
	candles := make([]models.Candle, 10)
	for i := range candles {
		candles[i] = models.Candle{High: 102, Low: 98, Close: 100}
	}
	assert.InDelta(t, 4.0, CalculateATR(candles, 5), 1e-9)
	assert.Equal(t, 0.0, CalculateATR(candles[:1], 5))
}
