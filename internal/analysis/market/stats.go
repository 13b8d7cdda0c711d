package market

import (
	"math"

	"github.com/Alias1177/LeverageAdvisor/models"
)

func simpleReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			continue
		}
		rets = append(rets, (candles[i].Close-prev)/prev)
	}
	return rets
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the sample standard deviation (n-1 denominator)
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

func closeSMA(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	var sum float64
	for _, c := range candles[len(candles)-period:] {
		sum += c.Close
	}
	return sum / float64(period)
}

func trailingVolume(candles []models.Candle, window int) float64 {
	start := len(candles) - window
	if start < 0 {
		start = 0
	}
	var total float64
	for _, c := range candles[start:] {
		total += c.Volume
	}
	return total
}
