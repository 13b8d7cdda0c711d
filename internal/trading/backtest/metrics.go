package backtest

import (
	"math"

	"github.com/Alias1177/LeverageAdvisor/models"
)

// Results stores backtesting results
type Results struct {
	Trades      []Trade                  `json:"trades"`
	Wins        int                      `json:"wins"`
	Losses      int                      `json:"losses"`
	Skipped     int                      `json:"skipped"`
	Errors      map[models.ErrorKind]int `json:"errors,omitempty"`
	WinRate     float64                  `json:"win_rate"`     // 0-1 over closed trades
	TotalReturn float64                  `json:"total_return"` // compound, fraction of starting equity
	MaxDrawdown float64                  `json:"max_drawdown"` // fraction of peak equity
	SharpeRatio float64                  `json:"sharpe_ratio"` // per trade, not annualized
	AvgLeverage float64                  `json:"avg_leverage"`
	EquityCurve []float64                `json:"equity_curve,omitempty"`
}

// summarize derives the aggregate metrics from Trades. A winning trade is
// any with a positive return, expired ones included.
func (r *Results) summarize(fraction float64) {
	if len(r.Trades) == 0 {
		return
	}

	equity := 1.0
	peak := equity
	r.EquityCurve = []float64{equity}
	rets := make([]float64, 0, len(r.Trades))
	var leverage float64

	for _, t := range r.Trades {
		switch {
		case t.Return > 0:
			r.Wins++
		case t.Return < 0:
			r.Losses++
		}
		leverage += t.Leverage
		rets = append(rets, t.Return)

		equity *= 1 + t.Return*fraction
		r.EquityCurve = append(r.EquityCurve, equity)
		peak = math.Max(peak, equity)
		if dd := (peak - equity) / peak; dd > r.MaxDrawdown {
			r.MaxDrawdown = dd
		}
	}

	if decided := r.Wins + r.Losses; decided > 0 {
		r.WinRate = float64(r.Wins) / float64(decided)
	}
	r.TotalReturn = equity - 1
	r.AvgLeverage = leverage / float64(len(r.Trades))

	m := mean(rets)
	if sd := sampleStdDev(rets, m); sd > 0 {
		r.SharpeRatio = m / sd
	}
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

func sampleStdDev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
