package leverage

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/LeverageAdvisor/internal/config"
	"github.com/Alias1177/LeverageAdvisor/internal/trading/risk"
	"github.com/Alias1177/LeverageAdvisor/models"
)

func loadConstants(t *testing.T) config.Constants {
	t.Helper()
	m, err := config.NewLeverageConfigManager("../../config/leverage_constants.yaml", "../../config/leverage_defaults.yaml")
	require.NoError(t, err)
	c, err := m.GetAdjustedConstants("1h", "")
	require.NoError(t, err)
	return c
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(loadConstants(t), opts...)
	require.NoError(t, err)
	return e
}

func level(price, strength float64, kind string) models.SupportResistanceLevel {
	return models.SupportResistanceLevel{
		Price:      price,
		Strength:   strength,
		TouchCount: 3,
		LevelType:  kind,
		FirstTouch: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LastTouch:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

// baseRequest is the reference long setup: price 100 between a 95 support
// and a 105 resistance, medium BTC risk, bullish markup.
func baseRequest() Request {
	resistance := level(105, 0.7, models.LevelResistance)
	return Request{
		Symbol:           "ETH/USD",
		SupportLevels:    []models.SupportResistanceLevel{level(95, 0.8, models.LevelSupport)},
		ResistanceLevels: []models.SupportResistanceLevel{resistance},
		BreakoutPredictions: []models.BreakoutPrediction{{
			Level:                resistance,
			BreakoutProbability:  0.3,
			BounceProbability:    0.7,
			PredictionConfidence: 0.6,
			TimeHorizonMinutes:   60,
			ModelName:            "test",
		}},
		BTCCorrelationRisk: &models.BTCCorrelationRisk{
			Symbol:               "ETH/USD",
			BTCDropScenario:      -10,
			PredictedAltcoinDrop: map[int]float64{15: -3, 60: -6, 240: -9},
			CorrelationStrength:  0.6,
			RiskLevel:            models.RiskMedium,
			LiquidationRisk:      map[int]float64{5: 0.1, 10: 0.4},
		},
		MarketContext: models.MarketContext{
			CurrentPrice:   100,
			Volume24h:      1_000_000,
			Volatility:     0.02,
			TrendDirection: models.TrendBullish,
			MarketPhase:    models.PhaseMarkup,
			Timestamp:      time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestCalculateSafeLeverageReferenceSetup(t *testing.T) {
	e := newTestEngine(t)

	rec, err := e.CalculateSafeLeverage(baseRequest())
	require.NoError(t, err)

	assert.Greater(t, rec.RecommendedLeverage, 1.0)
	assert.Less(t, rec.RecommendedLeverage, e.Constants().MaxLeverage)
	assert.Less(t, rec.StopLossPrice, 100.0)
	assert.Greater(t, rec.TakeProfitPrice, 100.0)
	assert.Greater(t, rec.ConfidenceLevel, 0.0)
	assert.Less(t, rec.ConfidenceLevel, 1.0)

	// support cap 20*0.8*0.5*0.5 = 4, conservatism 0.5+0.02*10 = 0.7
	assert.InDelta(t, 4.0, rec.MaxSafeLeverage, 1e-9)
	assert.InDelta(t, 2.8, rec.RecommendedLeverage, 1e-9)
	assert.InDelta(t, 0.75, rec.RiskRewardRatio, 1e-9)
	assert.InDelta(t, 0.7, rec.ConfidenceLevel, 1e-9)
	assert.InDelta(t, 100*(1-0.1/2.8), rec.StopLossPrice, 1e-9)
	assert.InDelta(t, 104.5, rec.TakeProfitPrice, 1e-9)
	assert.Equal(t, baseRequest().MarketContext, rec.MarketConditions)
	assert.NotEmpty(t, rec.Reasoning)
}

func TestCalculateSafeLeverageMarketDataFailures(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name   string
		mutate func(r *Request)
		kind   models.ErrorKind
		field  string
	}{
		{
			name:   "no supports",
			mutate: func(r *Request) { r.SupportLevels = nil },
			kind:   models.KindSupportDetectionFailed,
			field:  "support_levels",
		},
		{
			name: "supports above price",
			mutate: func(r *Request) {
				r.SupportLevels = []models.SupportResistanceLevel{level(101, 0.8, models.LevelSupport)}
			},
			kind:  models.KindNoSupportBelowPrice,
			field: "support_levels",
		},
		{
			name:   "no resistances",
			mutate: func(r *Request) { r.ResistanceLevels = []models.SupportResistanceLevel{} },
			kind:   models.KindResistanceDetectionFailed,
			field:  "resistance_levels",
		},
		{
			name: "resistances below price",
			mutate: func(r *Request) {
				r.ResistanceLevels = []models.SupportResistanceLevel{level(90, 0.7, models.LevelResistance)}
			},
			kind:  models.KindNoResistanceAbovePrice,
			field: "resistance_levels",
		},
		{
			name:   "zero price",
			mutate: func(r *Request) { r.MarketContext.CurrentPrice = 0 },
			kind:   models.KindMarketContextAnalysisFailed,
			field:  "market_context.current_price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(&req)

			rec, err := e.CalculateSafeLeverage(req)
			require.Error(t, err)
			assert.Nil(t, rec)

			var md *models.InsufficientMarketDataError
			require.True(t, errors.As(err, &md), "got %T", err)
			assert.Equal(t, tt.kind, md.Kind)
			assert.Equal(t, tt.field, md.Field)
			assert.Equal(t, "ETH/USD", md.Symbol)
		})
	}
}

func TestCalculateSafeLeverageWithoutBTCRisk(t *testing.T) {
	e := newTestEngine(t)
	req := baseRequest()
	req.BTCCorrelationRisk = nil

	rec, err := e.CalculateSafeLeverage(req)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec.RecommendedLeverage, 1.0)
	assert.Contains(t, rec.Reasoning[2], "No BTC correlation data")
}

func TestCalculateSafeLeverageHighBTCRiskCapsLeverage(t *testing.T) {
	e := newTestEngine(t)
	req := baseRequest()
	// wide support so the support cap does not bind
	req.SupportLevels = []models.SupportResistanceLevel{
		level(99, 1, models.LevelSupport),
		level(98, 1, models.LevelSupport),
	}
	req.ResistanceLevels = []models.SupportResistanceLevel{
		level(110, 0.1, models.LevelResistance),
		level(120, 0.1, models.LevelResistance),
	}
	req.BreakoutPredictions = nil
	req.BTCCorrelationRisk.RiskLevel = models.RiskCritical
	req.BTCCorrelationRisk.PredictedAltcoinDrop = map[int]float64{15: -10, 60: -25}

	rec, err := e.CalculateSafeLeverage(req)
	require.NoError(t, err)
	assert.LessOrEqual(t, rec.MaxSafeLeverage, 4.0+1e-9)
}

func TestCalculateSafeLeverageDoesNotMutateInput(t *testing.T) {
	e := newTestEngine(t)
	req := baseRequest()
	req.SupportLevels = []models.SupportResistanceLevel{
		level(90, 0.5, models.LevelSupport),
		level(97, 0.6, models.LevelSupport),
		level(93, 0.7, models.LevelSupport),
	}
	before := append([]models.SupportResistanceLevel(nil), req.SupportLevels...)

	_, err := e.CalculateSafeLeverage(req)
	require.NoError(t, err)
	assert.Equal(t, before, req.SupportLevels)
}

func TestCalculateSafeLeverageDeterministic(t *testing.T) {
	e := newTestEngine(t)
	first, err := e.CalculateSafeLeverage(baseRequest())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		rec, err := e.CalculateSafeLeverage(baseRequest())
		require.NoError(t, err)
		assert.InDelta(t, first.ConfidenceLevel, rec.ConfidenceLevel, 1e-6)
		assert.InDelta(t, first.RecommendedLeverage, rec.RecommendedLeverage, 1e-6)
		assert.Equal(t, first.Reasoning, rec.Reasoning)
	}
}

func TestCalculateSafeLeverageConcurrentUse(t *testing.T) {
	e := newTestEngine(t)
	want, err := e.CalculateSafeLeverage(baseRequest())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]float64, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := e.CalculateSafeLeverage(baseRequest())
			if err == nil {
				results[i] = rec.RecommendedLeverage
			}
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want.RecommendedLeverage, got)
	}
}

func TestCalculateSafeLeverageProperties(t *testing.T) {
	e := newTestEngine(t)
	maxLev := e.Constants().MaxLeverage
	rng := rand.New(rand.NewSource(42))

	trends := []models.TrendDirection{models.TrendBullish, models.TrendSideways, models.TrendBearish}
	phases := []models.MarketPhase{models.PhaseAccumulation, models.PhaseMarkup, models.PhaseDistribution, models.PhaseMarkdown}
	levels := []models.RiskLevel{models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskCritical}

	for i := 0; i < 1000; i++ {
		price := 1 + rng.Float64()*50000
		support := level(price*(1-0.0001-rng.Float64()*0.5), rng.Float64()*1.5, models.LevelSupport)
		resistance := level(price*(1+0.0001+rng.Float64()*2), rng.Float64()*1.5, models.LevelResistance)
		req := Request{
			Symbol:           "SOL/USD",
			SupportLevels:    []models.SupportResistanceLevel{support},
			ResistanceLevels: []models.SupportResistanceLevel{resistance},
			BreakoutPredictions: []models.BreakoutPrediction{
				{Level: support, BreakoutProbability: rng.Float64(), BounceProbability: rng.Float64() * 1.2},
				{Level: resistance, BreakoutProbability: rng.Float64() * 1.2, BounceProbability: rng.Float64()},
			},
			MarketContext: models.MarketContext{
				CurrentPrice:   price,
				Volatility:     rng.Float64() * 0.3,
				TrendDirection: trends[rng.Intn(len(trends))],
				MarketPhase:    phases[rng.Intn(len(phases))],
			},
		}
		if rng.Intn(4) > 0 {
			req.BTCCorrelationRisk = &models.BTCCorrelationRisk{
				CorrelationStrength:  rng.Float64(),
				RiskLevel:            levels[rng.Intn(len(levels))],
				PredictedAltcoinDrop: map[int]float64{60: -rng.Float64() * 40},
			}
		}

		rec, err := e.CalculateSafeLeverage(req)
		require.NoError(t, err, "iteration %d", i)
		assert.GreaterOrEqual(t, rec.ConfidenceLevel, 0.0)
		assert.Less(t, rec.ConfidenceLevel, 0.95)
		assert.GreaterOrEqual(t, rec.RecommendedLeverage, 1.0)
		assert.LessOrEqual(t, rec.RecommendedLeverage, rec.MaxSafeLeverage)
		assert.LessOrEqual(t, rec.MaxSafeLeverage, maxLev)
		assert.Less(t, rec.StopLossPrice, price)
		assert.Greater(t, rec.TakeProfitPrice, price)
		assert.GreaterOrEqual(t, rec.RiskRewardRatio, 0.1)
		assert.LessOrEqual(t, rec.RiskRewardRatio, 10.0)
	}
}

func TestConfidenceStaysBelowCeilingOnMaximalInputs(t *testing.T) {
	e := newTestEngine(t)
	support := level(99, 1, models.LevelSupport)
	resistance := level(130, 1, models.LevelResistance)
	req := Request{
		Symbol:           "BTC/USD",
		SupportLevels:    []models.SupportResistanceLevel{support, level(98, 1, models.LevelSupport)},
		ResistanceLevels: []models.SupportResistanceLevel{resistance},
		BreakoutPredictions: []models.BreakoutPrediction{
			{Level: support, BounceProbability: 1},
			{Level: resistance, BreakoutProbability: 1},
		},
		BTCCorrelationRisk: &models.BTCCorrelationRisk{CorrelationStrength: 1, RiskLevel: models.RiskLow},
		MarketContext: models.MarketContext{
			CurrentPrice:   100,
			TrendDirection: models.TrendBullish,
			MarketPhase:    models.PhaseAccumulation,
		},
	}

	rec, err := e.CalculateSafeLeverage(req)
	require.NoError(t, err)
	assert.Less(t, rec.ConfidenceLevel, 0.95)
	assert.Equal(t, e.Constants().DataValidation.MaxConfidenceLevel, rec.ConfidenceLevel)
}

type fixedBracket struct {
	b   risk.Bracket
	err error
}

func (f fixedBracket) Calculate(risk.BracketParams) (risk.Bracket, error) { return f.b, f.err }

type panickingBracket struct{}

func (panickingBracket) Calculate(risk.BracketParams) (risk.Bracket, error) { panic("boom") }

func TestStopLossCalculatorOverride(t *testing.T) {
	e := newTestEngine(t, WithStopLossCalculator(fixedBracket{b: risk.Bracket{StopLossPrice: 97, TakeProfitPrice: 103}}))

	rec, err := e.CalculateSafeLeverage(baseRequest())
	require.NoError(t, err)
	assert.Equal(t, 97.0, rec.StopLossPrice)
	assert.Equal(t, 103.0, rec.TakeProfitPrice)
}

func TestStopLossCalculatorFailures(t *testing.T) {
	tests := []struct {
		name string
		calc risk.BracketCalculator
	}{
		{"stop above price", fixedBracket{b: risk.Bracket{StopLossPrice: 101, TakeProfitPrice: 110}}},
		{"target below price", fixedBracket{b: risk.Bracket{StopLossPrice: 95, TakeProfitPrice: 99}}},
		{"nan stop", fixedBracket{b: risk.Bracket{StopLossPrice: math.NaN(), TakeProfitPrice: 110}}},
		{"calculator error", fixedBracket{err: errors.New("no data")}},
		{"panic", panickingBracket{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, WithStopLossCalculator(tt.calc))
			rec, err := e.CalculateSafeLeverage(baseRequest())
			require.Error(t, err)
			assert.Nil(t, rec)

			var le *models.LeverageAnalysisError
			require.True(t, errors.As(err, &le), "got %T", err)
			assert.Equal(t, StageBracket, le.Stage)
			assert.Equal(t, models.KindLeverageAnalysisFailed, models.KindOf(err))
		})
	}
}

func TestUnknownRegimeIsAnalysisError(t *testing.T) {
	e := newTestEngine(t)
	req := baseRequest()
	req.MarketContext.TrendDirection = "SIDEWAYS_UP"

	_, err := e.CalculateSafeLeverage(req)
	var le *models.LeverageAnalysisError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, StageMarketRisk, le.Stage)
}

func TestUnknownBTCRiskLevelIsAnalysisError(t *testing.T) {
	e := newTestEngine(t)
	req := baseRequest()
	req.BTCCorrelationRisk.RiskLevel = "EXTREME"

	_, err := e.CalculateSafeLeverage(req)
	var le *models.LeverageAnalysisError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, StageBTCCorrelation, le.Stage)
}

func TestNewEngineRejectsInvalidConstants(t *testing.T) {
	c := loadConstants(t)
	c.LeverageScaling.MinConservatism = 0.95

	_, err := NewEngine(c)
	require.Error(t, err)
	assert.Equal(t, models.KindConfigConstantsLoadFailed, models.KindOf(err))
}
