package config

import (
	"fmt"

	"github.com/Alias1177/LeverageAdvisor/models"
)

// Constants is the frozen numeric bundle one leverage engine is built from.
// It holds no maps or slices, so copies never share state and two bundles
// can be compared with ==.
type Constants struct {
	MaxLeverage             float64 `yaml:"max_leverage"`
	MinRiskReward           float64 `yaml:"min_risk_reward"`
	BTCCorrelationThreshold float64 `yaml:"btc_correlation_threshold"`
	MinSupportStrength      float64 `yaml:"min_support_strength"`
	MaxDrawdownTolerance    float64 `yaml:"max_drawdown_tolerance"`

	Correlation        CorrelationThresholds     `yaml:"correlation_thresholds"`
	SupportResistance  SupportResistanceCriteria `yaml:"support_resistance_criteria"`
	RiskCalculation    RiskCalculation           `yaml:"risk_calculation"`
	LeverageScaling    LeverageScaling           `yaml:"leverage_scaling"`
	StopLossTakeProfit StopLossTakeProfit        `yaml:"stop_loss_take_profit"`
	MarketContext      MarketContextConstants    `yaml:"market_context"`
	DataValidation     DataValidation            `yaml:"data_validation"`
	EmergencyLimits    EmergencyLimits           `yaml:"emergency_limits"`
}

// CoreLimits is the core_limits group of the constants document
type CoreLimits struct {
	MaxLeverage          float64 `yaml:"max_leverage"`
	MinRiskReward        float64 `yaml:"min_risk_reward"`
	MaxDrawdownTolerance float64 `yaml:"max_drawdown_tolerance"`
}

// CorrelationThresholds configures the BTC correlation stage
type CorrelationThresholds struct {
	BTCCorrelationThreshold    float64          `yaml:"btc_correlation_threshold"`
	HighRiskFactorThreshold    float64          `yaml:"high_risk_factor_threshold"`
	DefaultCorrelationStrength float64          `yaml:"default_correlation_strength"`
	DefaultRiskLevel           models.RiskLevel `yaml:"default_risk_level"`
	DefaultMaxDropPercent      float64          `yaml:"default_max_drop_percent"`
	ZeroDropLeverageCap        float64          `yaml:"zero_drop_leverage_cap"`
}

// SupportResistanceCriteria configures the downside and upside stages
type SupportResistanceCriteria struct {
	MinSupportStrength         float64 `yaml:"min_support_strength"`
	DefaultBounceProbability   float64 `yaml:"default_bounce_probability"`
	DefaultBreakoutProbability float64 `yaml:"default_breakout_probability"`
	MultiLayerBonus            float64 `yaml:"multi_layer_bonus"`
	DistanceNormalizer         float64 `yaml:"distance_normalizer"`
	MinDistanceFactor          float64 `yaml:"min_distance_factor"`
	MaxDistanceFactor          float64 `yaml:"max_distance_factor"`
	ExtendedProfitMultiplier   float64 `yaml:"extended_profit_multiplier"`
	MinProfitPotential         float64 `yaml:"min_profit_potential"`
	PriceMatchTolerance        float64 `yaml:"price_match_tolerance"`
}

// TrendFactors are the market risk multipliers per trend direction
type TrendFactors struct {
	Bullish  float64 `yaml:"bullish"`
	Sideways float64 `yaml:"sideways"`
	Bearish  float64 `yaml:"bearish"`
}

// PhaseFactors are the market risk multipliers per market phase
type PhaseFactors struct {
	Accumulation float64 `yaml:"accumulation"`
	Markup       float64 `yaml:"markup"`
	Distribution float64 `yaml:"distribution"`
	Markdown     float64 `yaml:"markdown"`
}

// RiskLevelFactors map a BTC risk level onto a numeric risk factor
type RiskLevelFactors struct {
	Low      float64 `yaml:"low"`
	Medium   float64 `yaml:"medium"`
	High     float64 `yaml:"high"`
	Critical float64 `yaml:"critical"`
}

// RiskCalculation configures the market-context risk stage
type RiskCalculation struct {
	VolatilityRiskMultiplier float64          `yaml:"volatility_risk_multiplier"`
	MaxVolatilityComponent   float64          `yaml:"max_volatility_component"`
	TrendFactors             TrendFactors     `yaml:"trend_factors"`
	PhaseFactors             PhaseFactors     `yaml:"phase_factors"`
	RiskLevelFactors         RiskLevelFactors `yaml:"risk_level_factors"`
}

// LeverageScaling configures the synthesis caps and the conservatism discount
type LeverageScaling struct {
	HighRRThreshold              float64 `yaml:"high_rr_threshold"`
	ModerateRRThreshold          float64 `yaml:"moderate_rr_threshold"`
	HighRRLeverageCap            float64 `yaml:"high_rr_leverage_cap"`
	ModerateRRLeverageCap        float64 `yaml:"moderate_rr_leverage_cap"`
	LowRRLeverageCap             float64 `yaml:"low_rr_leverage_cap"`
	MinRiskRewardRatio           float64 `yaml:"min_risk_reward_ratio"`
	MaxRiskRewardRatio           float64 `yaml:"max_risk_reward_ratio"`
	ConservatismBase             float64 `yaml:"conservatism_base"`
	VolatilityConservatismFactor float64 `yaml:"volatility_conservatism_factor"`
	MinConservatism              float64 `yaml:"min_conservatism"`
	MaxConservatism              float64 `yaml:"max_conservatism"`
}

// StopLossTakeProfit configures the default bracket calculator
type StopLossTakeProfit struct {
	MaxLossPercent             float64 `yaml:"max_loss_percent"`
	BaseBuffer                 float64 `yaml:"base_buffer"`
	StrengthBuffer             float64 `yaml:"strength_buffer"`
	MinStopLoss                float64 `yaml:"min_stop_loss"`
	MaxStopLoss                float64 `yaml:"max_stop_loss"`
	BreakoutThreshold          float64 `yaml:"breakout_threshold"`
	BreakoutTakeProfitMultiple float64 `yaml:"breakout_take_profit_multiple"`
	BounceTakeProfitMultiple   float64 `yaml:"bounce_take_profit_multiple"`
}

// MarketContextConstants configures the market context analyzer
type MarketContextConstants struct {
	SMAPeriod              int     `yaml:"sma_period"`
	BullishThreshold       float64 `yaml:"bullish_threshold"`
	BearishThreshold       float64 `yaml:"bearish_threshold"`
	AccumulationVolatility float64 `yaml:"accumulation_volatility"`
	MarkupVolatility       float64 `yaml:"markup_volatility"`
	VolumeWindow           int     `yaml:"volume_window"`
	DefaultVolatility      float64 `yaml:"default_volatility"`
	SpikeSigma             float64 `yaml:"spike_sigma"`
	VolumeSpikeMultiplier  float64 `yaml:"volume_spike_multiplier"`
	VolumeAverageWindow    int     `yaml:"volume_average_window"`
}

// DataValidation holds output sanity bounds
type DataValidation struct {
	MaxConfidenceLevel float64 `yaml:"max_confidence_level"`
	MinConfidenceLevel float64 `yaml:"min_confidence_level"`
}

// EmergencyLimits are hard ceilings applied after every adjustment
type EmergencyLimits struct {
	AbsoluteMaxLeverage float64 `yaml:"absolute_max_leverage"`
	AbsoluteMaxStopLoss float64 `yaml:"absolute_max_stop_loss"`
}

// TimeframeAdjustment is one timeframe_specific_adjustments entry
type TimeframeAdjustment struct {
	VolatilityMultiplier float64 `yaml:"volatility_multiplier"`
	LeverageMultiplier   float64 `yaml:"leverage_multiplier"`
}

// CategoryAdjustment is one symbol_category_adjustments entry
type CategoryAdjustment struct {
	LeverageMultiplier float64  `yaml:"leverage_multiplier"`
	RiskReduction      float64  `yaml:"risk_reduction"`
	Symbols            []string `yaml:"symbols"`
}

// EntryConditions decide whether a recommendation becomes an entry signal
type EntryConditions struct {
	MinLeverage   float64 `yaml:"min_leverage"`
	MinConfidence float64 `yaml:"min_confidence"`
	MinRiskReward float64 `yaml:"min_risk_reward"`
}

// Allows reports whether rec satisfies the conditions. minRiskReward is the
// bundle's own floor; the stricter of the two applies.
func (e EntryConditions) Allows(rec *models.LeverageRecommendation, minRiskReward float64) bool {
	if rec == nil {
		return false
	}
	rr := e.MinRiskReward
	if minRiskReward > rr {
		rr = minRiskReward
	}
	return rec.RecommendedLeverage >= e.MinLeverage &&
		rec.ConfidenceLevel >= e.MinConfidence &&
		rec.RiskRewardRatio >= rr
}

// RiskFactor maps a risk level through the configured ordinal table.
func (f RiskLevelFactors) RiskFactor(level models.RiskLevel) (float64, bool) {
	switch level {
	case models.RiskLow:
		return f.Low, true
	case models.RiskMedium:
		return f.Medium, true
	case models.RiskHigh:
		return f.High, true
	case models.RiskCritical:
		return f.Critical, true
	}
	return 0, false
}

// Factor returns the multiplier for a trend direction
func (f TrendFactors) Factor(t models.TrendDirection) (float64, bool) {
	switch t {
	case models.TrendBullish:
		return f.Bullish, true
	case models.TrendSideways:
		return f.Sideways, true
	case models.TrendBearish:
		return f.Bearish, true
	}
	return 0, false
}

// Factor returns the multiplier for a market phase
func (f PhaseFactors) Factor(p models.MarketPhase) (float64, bool) {
	switch p {
	case models.PhaseAccumulation:
		return f.Accumulation, true
	case models.PhaseMarkup:
		return f.Markup, true
	case models.PhaseDistribution:
		return f.Distribution, true
	case models.PhaseMarkdown:
		return f.Markdown, true
	}
	return 0, false
}

// Validate checks that every constant is usable by the engine
func (c Constants) Validate() error {
	positive := []struct {
		field string
		value float64
	}{
		{"core_limits.max_leverage", c.MaxLeverage},
		{"core_limits.min_risk_reward", c.MinRiskReward},
		{"core_limits.max_drawdown_tolerance", c.MaxDrawdownTolerance},
		{"correlation_thresholds.high_risk_factor_threshold", c.Correlation.HighRiskFactorThreshold},
		{"correlation_thresholds.zero_drop_leverage_cap", c.Correlation.ZeroDropLeverageCap},
		{"support_resistance_criteria.default_bounce_probability", c.SupportResistance.DefaultBounceProbability},
		{"support_resistance_criteria.default_breakout_probability", c.SupportResistance.DefaultBreakoutProbability},
		{"support_resistance_criteria.multi_layer_bonus", c.SupportResistance.MultiLayerBonus},
		{"support_resistance_criteria.distance_normalizer", c.SupportResistance.DistanceNormalizer},
		{"support_resistance_criteria.min_distance_factor", c.SupportResistance.MinDistanceFactor},
		{"support_resistance_criteria.max_distance_factor", c.SupportResistance.MaxDistanceFactor},
		{"support_resistance_criteria.extended_profit_multiplier", c.SupportResistance.ExtendedProfitMultiplier},
		{"support_resistance_criteria.min_profit_potential", c.SupportResistance.MinProfitPotential},
		{"risk_calculation.volatility_risk_multiplier", c.RiskCalculation.VolatilityRiskMultiplier},
		{"risk_calculation.max_volatility_component", c.RiskCalculation.MaxVolatilityComponent},
		{"risk_calculation.trend_factors.bullish", c.RiskCalculation.TrendFactors.Bullish},
		{"risk_calculation.trend_factors.sideways", c.RiskCalculation.TrendFactors.Sideways},
		{"risk_calculation.trend_factors.bearish", c.RiskCalculation.TrendFactors.Bearish},
		{"risk_calculation.phase_factors.accumulation", c.RiskCalculation.PhaseFactors.Accumulation},
		{"risk_calculation.phase_factors.markup", c.RiskCalculation.PhaseFactors.Markup},
		{"risk_calculation.phase_factors.distribution", c.RiskCalculation.PhaseFactors.Distribution},
		{"risk_calculation.phase_factors.markdown", c.RiskCalculation.PhaseFactors.Markdown},
		{"leverage_scaling.high_rr_leverage_cap", c.LeverageScaling.HighRRLeverageCap},
		{"leverage_scaling.moderate_rr_leverage_cap", c.LeverageScaling.ModerateRRLeverageCap},
		{"leverage_scaling.low_rr_leverage_cap", c.LeverageScaling.LowRRLeverageCap},
		{"leverage_scaling.min_risk_reward_ratio", c.LeverageScaling.MinRiskRewardRatio},
		{"leverage_scaling.max_risk_reward_ratio", c.LeverageScaling.MaxRiskRewardRatio},
		{"leverage_scaling.min_conservatism", c.LeverageScaling.MinConservatism},
		{"leverage_scaling.max_conservatism", c.LeverageScaling.MaxConservatism},
		{"stop_loss_take_profit.max_loss_percent", c.StopLossTakeProfit.MaxLossPercent},
		{"stop_loss_take_profit.min_stop_loss", c.StopLossTakeProfit.MinStopLoss},
		{"stop_loss_take_profit.max_stop_loss", c.StopLossTakeProfit.MaxStopLoss},
		{"stop_loss_take_profit.breakout_take_profit_multiple", c.StopLossTakeProfit.BreakoutTakeProfitMultiple},
		{"stop_loss_take_profit.bounce_take_profit_multiple", c.StopLossTakeProfit.BounceTakeProfitMultiple},
		{"market_context.default_volatility", c.MarketContext.DefaultVolatility},
		{"data_validation.max_confidence_level", c.DataValidation.MaxConfidenceLevel},
		{"emergency_limits.absolute_max_leverage", c.EmergencyLimits.AbsoluteMaxLeverage},
		{"emergency_limits.absolute_max_stop_loss", c.EmergencyLimits.AbsoluteMaxStopLoss},
	}
	for _, p := range positive {
		if !(p.value > 0) {
			return models.NewConfigError(models.KindConfigConstantsLoadFailed, p.field,
				fmt.Sprintf("constant must be positive, got %v", p.value), nil)
		}
	}

	if c.EmergencyLimits.AbsoluteMaxLeverage < 1 {
		return models.NewConfigError(models.KindConfigConstantsLoadFailed, "emergency_limits.absolute_max_leverage",
			fmt.Sprintf("absolute max leverage must be at least 1, got %v", c.EmergencyLimits.AbsoluteMaxLeverage), nil)
	}
	if c.MaxLeverage < 1 {
		return models.NewConfigError(models.KindConfigConstantsLoadFailed, "core_limits.max_leverage",
			fmt.Sprintf("max leverage must be at least 1, got %v", c.MaxLeverage), nil)
	}
	ranges := []struct {
		field    string
		min, max float64
	}{
		{"support_resistance_criteria.distance_factor", c.SupportResistance.MinDistanceFactor, c.SupportResistance.MaxDistanceFactor},
		{"leverage_scaling.risk_reward_ratio", c.LeverageScaling.MinRiskRewardRatio, c.LeverageScaling.MaxRiskRewardRatio},
		{"leverage_scaling.conservatism", c.LeverageScaling.MinConservatism, c.LeverageScaling.MaxConservatism},
		{"stop_loss_take_profit.stop_loss", c.StopLossTakeProfit.MinStopLoss, c.StopLossTakeProfit.MaxStopLoss},
		{"leverage_scaling.rr_threshold", c.LeverageScaling.ModerateRRThreshold, c.LeverageScaling.HighRRThreshold},
		{"data_validation.confidence_level", c.DataValidation.MinConfidenceLevel, c.DataValidation.MaxConfidenceLevel},
	}
	for _, r := range ranges {
		if r.min > r.max {
			return models.NewConfigError(models.KindConfigConstantsLoadFailed, r.field,
				fmt.Sprintf("range is inverted: min %v > max %v", r.min, r.max), nil)
		}
	}

	if c.StopLossTakeProfit.MaxStopLoss >= 1 {
		return models.NewConfigError(models.KindConfigConstantsLoadFailed, "stop_loss_take_profit.max_stop_loss",
			"stop loss distance must stay below 100%", nil)
	}
	if c.DataValidation.MaxConfidenceLevel > 1 {
		return models.NewConfigError(models.KindConfigConstantsLoadFailed, "data_validation.max_confidence_level",
			"confidence ceiling must not exceed 1", nil)
	}
	if !c.Correlation.DefaultRiskLevel.Valid() {
		return models.NewConfigError(models.KindConfigConstantsLoadFailed, "correlation_thresholds.default_risk_level",
			fmt.Sprintf("unknown risk level %q", c.Correlation.DefaultRiskLevel), nil)
	}
	sma := c.MarketContext
	if sma.SMAPeriod < 1 || sma.VolumeWindow < 1 || sma.VolumeAverageWindow < 1 {
		return models.NewConfigError(models.KindConfigConstantsLoadFailed, "market_context",
			"window lengths must be at least 1", nil)
	}
	return nil
}
