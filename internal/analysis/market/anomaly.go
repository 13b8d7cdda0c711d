package market

import (
	"fmt"
	"math"

	"github.com/Alias1177/LeverageAdvisor/models"
)

// DetectAnomalies flags single-bar price spikes (return beyond SpikeSigma
// standard deviations) and volume spikes (volume beyond VolumeSpikeMultiplier
// times the trailing average). Findings are advisory and never feed the
// leverage engine.
func (a *Analyzer) DetectAnomalies(candles []models.Candle) []models.MarketAnomaly {
	var anomalies []models.MarketAnomaly
	if len(candles) < 3 {
		return anomalies
	}

	rets := simpleReturns(candles)
	sigma := stdDev(rets)
	m := mean(rets)
	if sigma > 0 && len(rets) == len(candles)-1 {
		for i, r := range rets {
			z := math.Abs(r-m) / sigma
			if z <= a.c.SpikeSigma {
				continue
			}
			bar := candles[i+1]
			anomalies = append(anomalies, models.MarketAnomaly{
				Type:        models.AnomalyPriceSpike,
				Severity:    severity(z, 5.0),
				Description: fmt.Sprintf("Price moved %.2f%% in one bar (%.1f sigma)", r*100, z),
				Timestamp:   bar.Timestamp,
			})
		}
	}

	window := a.c.VolumeAverageWindow
	for i := window; i < len(candles); i++ {
		var total float64
		for _, c := range candles[i-window : i] {
			total += c.Volume
		}
		avg := total / float64(window)
		if avg <= 0 {
			continue
		}
		ratio := candles[i].Volume / avg
		if ratio <= a.c.VolumeSpikeMultiplier {
			continue
		}
		anomalies = append(anomalies, models.MarketAnomaly{
			Type:        models.AnomalyVolumeSpike,
			Severity:    severity(ratio, 5.0),
			Description: fmt.Sprintf("Volume %.1f times the %d-bar average", ratio, window),
			Timestamp:   candles[i].Timestamp,
		})
	}

	return anomalies
}

func severity(score, high float64) string {
	if score > high {
		return "high"
	}
	return "medium"
}
