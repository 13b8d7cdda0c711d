// Package backtest replays a leverage decision function over historical
// candles, opening a long at each recommendation and closing it at the
// recommended stop or target.
package backtest

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/Alias1177/LeverageAdvisor/internal/analysis/market"
	"github.com/Alias1177/LeverageAdvisor/models"
)

// Decision is what a Decider returns for one bar
type Decision struct {
	Recommendation *models.LeverageRecommendation
	EntrySignal    bool
}

// Decider produces a recommendation for the bar selected by mode. candles
// ends at that bar; the decider must only read bars before it.
type Decider func(candles []models.Candle, mode market.Mode) (Decision, error)

// Trade outcomes
const (
	OutcomeTakeProfit = "take_profit"
	OutcomeStopLoss   = "stop_loss"
	OutcomeExpired    = "expired"
)

// Trade is one simulated long
type Trade struct {
	EntryIndex int     `json:"entry_index"`
	ExitIndex  int     `json:"exit_index"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Leverage   float64 `json:"leverage"`
	Outcome    string  `json:"outcome"`
	Return     float64 `json:"return"` // on margin, floored at -1
}

// Options tunes a replay
type Options struct {
	Warmup           int     // bars before the first decision
	Step             int     // bars between decisions while flat
	MaxHold          int     // bars a trade may stay open
	PositionFraction float64 // share of equity posted as margin per trade
	SignalsOnly      bool    // trade only when the entry conditions hold
}

func (o Options) withDefaults() Options {
	if o.Warmup < 2 {
		o.Warmup = 50
	}
	if o.Step < 1 {
		o.Step = 1
	}
	if o.MaxHold < 1 {
		o.MaxHold = 24
	}
	if !(o.PositionFraction > 0) || o.PositionFraction > 1 {
		o.PositionFraction = 0.1
	}
	return o
}

// Engine handles backtesting operations
type Engine struct {
	decide Decider
	opts   Options
	logger zerolog.Logger
}

// NewEngine creates a new backtesting engine
func NewEngine(decide Decider, opts Options, logger zerolog.Logger) *Engine {
	return &Engine{
		decide: decide,
		opts:   opts.withDefaults(),
		logger: logger.With().Str("component", "backtest").Logger(),
	}
}

// Run walks candles forward. Trades never overlap: after an exit the next
// decision is taken on the bar following the exit bar.
func (e *Engine) Run(ctx context.Context, candles []models.Candle) (*Results, error) {
	if len(candles) <= e.opts.Warmup {
		return nil, fmt.Errorf("insufficient historical data for backtesting, got %d candles, need more than %d",
			len(candles), e.opts.Warmup)
	}

	results := &Results{Errors: make(map[models.ErrorKind]int)}
	for i := e.opts.Warmup; i < len(candles); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		d, err := e.decide(candles[:i+1], market.Backtest(candles[i].Timestamp))
		if err != nil {
			kind := models.KindOf(err)
			results.Errors[kind]++
			results.Skipped++
			e.logger.Debug().Err(err).Int("bar", i).Str("error_kind", string(kind)).Msg("No decision")
			i += e.opts.Step
			continue
		}
		if d.Recommendation == nil || (e.opts.SignalsOnly && !d.EntrySignal) {
			results.Skipped++
			i += e.opts.Step
			continue
		}

		t := e.simulate(candles, i, d.Recommendation)
		results.Trades = append(results.Trades, t)
		i = t.ExitIndex + 1
	}

	results.summarize(e.opts.PositionFraction)
	e.logger.Info().
		Int("trades", len(results.Trades)).
		Int("skipped", results.Skipped).
		Float64("win_rate", results.WinRate).
		Float64("total_return", results.TotalReturn).
		Float64("max_drawdown", results.MaxDrawdown).
		Msg("Backtest finished")
	return results, nil
}

// simulate fills at the recommendation price on bar i and scans forward. A
// bar touching both levels counts as a stop since the intrabar order is
// unknown.
func (e *Engine) simulate(candles []models.Candle, i int, rec *models.LeverageRecommendation) Trade {
	t := Trade{
		EntryIndex: i,
		EntryPrice: rec.MarketConditions.CurrentPrice,
		StopLoss:   rec.StopLossPrice,
		TakeProfit: rec.TakeProfitPrice,
		Leverage:   rec.RecommendedLeverage,
		Outcome:    OutcomeExpired,
	}

	last := min(len(candles)-1, i+e.opts.MaxHold-1)
	t.ExitIndex = last
	t.ExitPrice = candles[last].Close
	for j := i; j <= last; j++ {
		c := candles[j]
		if c.Low <= t.StopLoss {
			t.ExitIndex, t.ExitPrice, t.Outcome = j, t.StopLoss, OutcomeStopLoss
			break
		}
		if c.High >= t.TakeProfit {
			t.ExitIndex, t.ExitPrice, t.Outcome = j, t.TakeProfit, OutcomeTakeProfit
			break
		}
	}

	t.Return = math.Max(-1, t.Leverage*(t.ExitPrice-t.EntryPrice)/t.EntryPrice)
	return t
}
