package technical

import (
	"math"

	"github.com/Alias1177/LeverageAdvisor/models"
)

// CalculateRSI calculates the Relative Strength Index with Wilder smoothing
func CalculateRSI(candles []models.Candle, period int) float64 {
	if period < 1 || len(candles) < period+1 {
		return 50.0 // neutral when there is not enough data
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// CalculateATR calculates Average True Range over the last period bars
func CalculateATR(candles []models.Candle, period int) float64 {
	if period < 1 || len(candles) < 2 {
		return 0
	}

	trueRanges := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		// greatest of high-low and the gaps to the previous close
		highLow := candles[i].High - candles[i].Low
		highPrevClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowPrevClose := math.Abs(candles[i].Low - candles[i-1].Close)
		trueRanges = append(trueRanges, math.Max(highLow, math.Max(highPrevClose, lowPrevClose)))
	}

	n := period
	if len(trueRanges) < n {
		n = len(trueRanges)
	}
	var sum float64
	for _, tr := range trueRanges[len(trueRanges)-n:] {
		sum += tr
	}
	return sum / float64(n)
}
