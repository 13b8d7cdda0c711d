// Package leverage turns support/resistance geometry, breakout odds, BTC
// correlation risk and market regime into one bounded leverage
// recommendation for a long position.
package leverage

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/Alias1177/LeverageAdvisor/internal/config"
	"github.com/Alias1177/LeverageAdvisor/internal/trading/risk"
	"github.com/Alias1177/LeverageAdvisor/models"
)

// Stage labels carried by LeverageAnalysisError
const (
	StageInput          = "input_validation"
	StageDownside       = "downside_risk"
	StageUpside         = "upside_potential"
	StageBTCCorrelation = "btc_correlation"
	StageMarketRisk     = "market_risk"
	StageSynthesis      = "synthesis"
	StageBracket        = "stop_loss_take_profit"
)

var (
	// ErrDegenerateRisk means profit potential or downside risk collapsed to
	// zero or below, leaving the risk/reward ratio undefined.
	ErrDegenerateRisk = errors.New("profit potential and downside risk must both be positive")
	// ErrNonFinite means an intermediate or output value became NaN or Inf.
	ErrNonFinite = errors.New("non-finite value in leverage computation")
)

// Request carries every market-specific input of one computation. The
// engine reads it and never modifies the slices or maps it references.
type Request struct {
	Symbol              string
	SupportLevels       []models.SupportResistanceLevel
	ResistanceLevels    []models.SupportResistanceLevel
	BreakoutPredictions []models.BreakoutPrediction
	BTCCorrelationRisk  *models.BTCCorrelationRisk // optional
	MarketContext       models.MarketContext
}

// Engine computes leverage recommendations from one frozen constants bundle.
// It holds no per-call state, so a single instance may serve concurrent
// callers.
type Engine struct {
	c      config.Constants
	stops  risk.BracketCalculator
	logger zerolog.Logger
}

// Option customizes an Engine at construction
type Option func(*Engine)

// WithStopLossCalculator replaces the default stop-loss / take-profit logic
func WithStopLossCalculator(calc risk.BracketCalculator) Option {
	return func(e *Engine) {
		if calc != nil {
			e.stops = calc
		}
	}
}

// WithLogger sets the engine logger; the default discards output
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With().Str("component", "leverage_engine").Logger()
	}
}

// NewEngine validates c and builds an engine around it
func NewEngine(c config.Constants, opts ...Option) (*Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{c: c, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.stops == nil {
		e.stops = risk.NewStructureBracket(c.StopLossTakeProfit)
	}
	return e, nil
}

// Constants returns the bundle the engine was built from
func (e *Engine) Constants() config.Constants {
	return e.c
}

// CalculateSafeLeverage runs the downside, upside, correlation and market
// stages and synthesizes them into a recommendation. Missing or inconsistent
// market inputs fail with *models.InsufficientMarketDataError; anything that
// goes wrong afterwards fails with *models.LeverageAnalysisError. No error is
// ever replaced by a default recommendation.
func (e *Engine) CalculateSafeLeverage(req Request) (rec *models.LeverageRecommendation, err error) {
	stage := StageInput
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = &models.LeverageAnalysisError{Stage: stage, Symbol: req.Symbol, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	price := req.MarketContext.CurrentPrice
	if !finite(price) || price <= 0 {
		return nil, models.NewMarketDataError(models.KindMarketContextAnalysisFailed, req.Symbol,
			"market_context.current_price", fmt.Sprintf("current price must be positive, got %v", price))
	}

	reasoning := make([]string, 0, 16)

	stage = StageDownside
	down, err := e.analyzeDownside(req)
	if err != nil {
		return nil, err
	}
	reasoning = append(reasoning, fmt.Sprintf(
		"Nearest support %.8g is %.2f%% below price (strength %.2f, bounce %.2f, multi-layer %t), support cap %.2fx",
		down.support.Price, down.distance*100, down.strength, down.bounce, down.multiLayer, down.leverageCap))
	if down.strength < e.c.MinSupportStrength {
		reasoning = append(reasoning, fmt.Sprintf("Support strength %.2f is below the %.2f minimum",
			down.strength, e.c.MinSupportStrength))
	}

	stage = StageUpside
	up, err := e.analyzeUpside(req)
	if err != nil {
		return nil, err
	}
	reasoning = append(reasoning, fmt.Sprintf(
		"Nearest resistance %.8g is %.2f%% above price (strength %.2f, breakout %.2f), profit potential %.2f%%",
		up.resistance.Price, up.distance*100, up.strength, up.breakout, up.profitPotential*100))

	stage = StageBTCCorrelation
	corr, err := e.analyzeCorrelation(req.BTCCorrelationRisk)
	if err != nil {
		return nil, &models.LeverageAnalysisError{Stage: stage, Symbol: req.Symbol, Err: err}
	}
	if corr.defaulted {
		reasoning = append(reasoning, fmt.Sprintf(
			"No BTC correlation data, assuming %s risk with correlation %.2f", corr.level, corr.strength))
		e.logger.Debug().Str("symbol", req.Symbol).Msg("BTC correlation risk missing, using configured defaults")
	} else {
		reasoning = append(reasoning, fmt.Sprintf(
			"BTC correlation %.2f, %s risk (factor %.2f), worst predicted drop %.2f%%",
			corr.strength, corr.level, corr.riskFactor, corr.maxDrop*100))
	}
	if corr.strength >= e.c.BTCCorrelationThreshold {
		reasoning = append(reasoning, fmt.Sprintf("Correlation %.2f reaches the %.2f BTC threshold",
			corr.strength, e.c.BTCCorrelationThreshold))
	}

	stage = StageMarketRisk
	mkt, err := e.analyzeMarket(req.MarketContext)
	if err != nil {
		return nil, &models.LeverageAnalysisError{Stage: stage, Symbol: req.Symbol, Err: err}
	}
	reasoning = append(reasoning, fmt.Sprintf(
		"Market %s/%s, volatility %.4f, market risk factor %.3f",
		req.MarketContext.TrendDirection, req.MarketContext.MarketPhase, req.MarketContext.Volatility, mkt.riskFactor))

	stage = StageSynthesis
	syn, err := e.synthesize(down, up, corr, mkt, req.MarketContext.Volatility)
	if err != nil {
		return nil, &models.LeverageAnalysisError{Stage: stage, Symbol: req.Symbol, Err: err}
	}
	reasoning = append(reasoning, fmt.Sprintf(
		"Caps: support %.2fx, risk/reward %.2fx, BTC %.2fx, market %.2fx -> max safe %.2fx",
		syn.supportCap, syn.rrCap, syn.btcCap, syn.marketCap, syn.maxSafe))
	reasoning = append(reasoning, fmt.Sprintf(
		"Risk/reward %.2f, conservatism %.2f -> recommended %.2fx, confidence %.2f",
		syn.riskReward, syn.conservatism, syn.recommended, syn.confidence))
	if syn.riskReward < e.c.MinRiskReward {
		reasoning = append(reasoning, fmt.Sprintf("Risk/reward %.2f is below the %.2f target",
			syn.riskReward, e.c.MinRiskReward))
	}

	stage = StageBracket
	bracket, err := e.stops.Calculate(risk.BracketParams{
		CurrentPrice:        price,
		SupportDistance:     down.distance,
		SupportStrength:     down.strength,
		ResistanceDistance:  up.distance,
		BreakoutProbability: up.breakout,
		Leverage:            syn.recommended,
	})
	if err != nil {
		return nil, &models.LeverageAnalysisError{Stage: stage, Symbol: req.Symbol, Err: err}
	}
	if !finite(bracket.StopLossPrice) || !finite(bracket.TakeProfitPrice) ||
		bracket.StopLossPrice <= 0 || bracket.StopLossPrice >= price || bracket.TakeProfitPrice <= price {
		return nil, &models.LeverageAnalysisError{Stage: stage, Symbol: req.Symbol, Err: fmt.Errorf(
			"bracket %.8g / %.8g does not enclose price %.8g", bracket.StopLossPrice, bracket.TakeProfitPrice, price)}
	}
	stopDistance := (price - bracket.StopLossPrice) / price
	reasoning = append(reasoning, fmt.Sprintf("Stop loss %.8g (-%.2f%%), take profit %.8g (+%.2f%%)",
		bracket.StopLossPrice, stopDistance*100, bracket.TakeProfitPrice, (bracket.TakeProfitPrice-price)/price*100))
	if drawdown := stopDistance * syn.recommended; drawdown > e.c.MaxDrawdownTolerance {
		reasoning = append(reasoning, fmt.Sprintf("Stop at %.2fx leverage risks %.1f%% of margin, above the %.1f%% tolerance",
			syn.recommended, drawdown*100, e.c.MaxDrawdownTolerance*100))
	}

	e.logger.Debug().
		Str("symbol", req.Symbol).
		Float64("recommended", syn.recommended).
		Float64("max_safe", syn.maxSafe).
		Float64("confidence", syn.confidence).
		Msg("Leverage calculated")

	return &models.LeverageRecommendation{
		RecommendedLeverage: syn.recommended,
		MaxSafeLeverage:     syn.maxSafe,
		RiskRewardRatio:     syn.riskReward,
		StopLossPrice:       bracket.StopLossPrice,
		TakeProfitPrice:     bracket.TakeProfitPrice,
		ConfidenceLevel:     syn.confidence,
		Reasoning:           reasoning,
		MarketConditions:    req.MarketContext,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// clamp01 maps NaN to 0 so a corrupt factor can only lower confidence
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, 0, 1)
}
