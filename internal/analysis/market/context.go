package market

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alias1177/LeverageAdvisor/internal/config"
	"github.com/Alias1177/LeverageAdvisor/models"
)

// Mode selects which instant a market context describes. Build it with
// Realtime or Backtest; the zero value is an implicit realtime request and
// is logged as a warning.
type Mode struct {
	kind modeKind
	at   time.Time
}

type modeKind int

const (
	modeImplicit modeKind = iota
	modeRealtime
	modeBacktest
)

// Realtime describes the latest bar
func Realtime() Mode { return Mode{kind: modeRealtime} }

// Backtest describes the bar nearest to at, priced at its open
func Backtest(at time.Time) Mode { return Mode{kind: modeBacktest, at: at} }

// IsBacktest reports whether m targets a historical instant
func (m Mode) IsBacktest() bool { return m.kind == modeBacktest }

// At returns the target instant of a backtest mode
func (m Mode) At() time.Time { return m.at }

func (m Mode) String() string {
	switch m.kind {
	case modeRealtime:
		return "realtime"
	case modeBacktest:
		return "backtest@" + m.at.UTC().Format(time.RFC3339)
	}
	return "implicit_realtime"
}

// DefaultMarketContext returns the analyzer thresholds used when no constants
// document is at hand.
func DefaultMarketContext() config.MarketContextConstants {
	return config.MarketContextConstants{
		SMAPeriod:              20,
		BullishThreshold:       1.02,
		BearishThreshold:       0.98,
		AccumulationVolatility: 0.01,
		MarkupVolatility:       0.03,
		VolumeWindow:           24,
		DefaultVolatility:      0.02,
		SpikeSigma:             3.0,
		VolumeSpikeMultiplier:  3.0,
		VolumeAverageWindow:    20,
	}
}

// Analyzer derives MarketContext snapshots from OHLCV windows. It holds only
// its thresholds and is safe for concurrent use.
type Analyzer struct {
	c      config.MarketContextConstants
	logger zerolog.Logger
}

// NewAnalyzer creates an analyzer with the given thresholds
func NewAnalyzer(c config.MarketContextConstants, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		c:      c,
		logger: logger.With().Str("component", "market_context").Logger(),
	}
}

// Analyze returns the market context of candles at the instant selected by
// mode. Candles must be in ascending time order and are not modified.
func (a *Analyzer) Analyze(candles []models.Candle, mode Mode) (models.MarketContext, error) {
	if mode.kind == modeBacktest && mode.at.IsZero() {
		return models.MarketContext{}, models.ErrMissingTargetTimestamp
	}
	if len(candles) == 0 {
		return models.MarketContext{}, models.NewMarketDataError(models.KindMarketDataEmpty, "", "candles",
			"market data is empty, cannot derive current price")
	}

	var (
		price  float64
		at     time.Time
		window []models.Candle
	)

	switch mode.kind {
	case modeBacktest:
		idx, err := nearestIndex(candles, mode.at)
		if err != nil {
			return models.MarketContext{}, err
		}
		// The open is the price an order placed at the start of the bar gets;
		// statistics only see bars that closed before it.
		price = candles[idx].Open
		at = candles[idx].Timestamp
		window = candles[:idx]
	default:
		if mode.kind == modeImplicit {
			a.logger.Warn().Msg("Market context requested without an explicit mode, using latest bar; backtests must pass Backtest(at)")
		}
		last := candles[len(candles)-1]
		price = last.Close
		at = last.Timestamp
		window = candles
	}

	if !(price > 0) || math.IsInf(price, 0) {
		return models.MarketContext{}, models.NewMarketDataError(models.KindMarketContextAnalysisFailed, "", "current_price",
			fmt.Sprintf("current price must be positive, got %v", price))
	}

	volatility := a.volatility(window)
	trend := a.trend(window, price)

	ctx := models.MarketContext{
		CurrentPrice:   price,
		Volume24h:      trailingVolume(window, a.c.VolumeWindow),
		Volatility:     volatility,
		TrendDirection: trend,
		MarketPhase:    a.phase(volatility, trend),
		Timestamp:      at,
	}

	a.logger.Debug().
		Str("mode", mode.String()).
		Float64("price", ctx.CurrentPrice).
		Float64("volatility", ctx.Volatility).
		Str("trend", string(ctx.TrendDirection)).
		Str("phase", string(ctx.MarketPhase)).
		Msg("Market context analyzed")

	return ctx, nil
}

// volatility is the sample std-dev of simple close-to-close returns. With
// fewer than two returns there is nothing to measure, so the configured
// nominal value is returned instead.
func (a *Analyzer) volatility(window []models.Candle) float64 {
	rets := simpleReturns(window)
	if len(rets) < 2 {
		return a.c.DefaultVolatility
	}
	return stdDev(rets)
}

func (a *Analyzer) trend(window []models.Candle, price float64) models.TrendDirection {
	if len(window) < a.c.SMAPeriod {
		return models.TrendSideways
	}
	sma := closeSMA(window, a.c.SMAPeriod)
	switch {
	case price > sma*a.c.BullishThreshold:
		return models.TrendBullish
	case price < sma*a.c.BearishThreshold:
		return models.TrendBearish
	}
	return models.TrendSideways
}

func (a *Analyzer) phase(volatility float64, trend models.TrendDirection) models.MarketPhase {
	switch {
	case volatility < a.c.AccumulationVolatility:
		return models.PhaseAccumulation
	case volatility < a.c.MarkupVolatility && trend == models.TrendBullish:
		return models.PhaseMarkup
	case volatility < a.c.MarkupVolatility:
		return models.PhaseMarkdown
	}
	return models.PhaseDistribution
}

// nearestIndex finds the row closest to at; ties go to the earlier row.
func nearestIndex(candles []models.Candle, at time.Time) (int, error) {
	best := -1
	var bestDiff time.Duration
	for i, c := range candles {
		if c.Timestamp.IsZero() {
			continue
		}
		diff := c.Timestamp.Sub(at)
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	if best < 0 {
		return 0, models.ErrNoTimestamps
	}
	return best, nil
}
