package leverage

import (
	"fmt"
	"math"
	"sort"

	"github.com/Alias1177/LeverageAdvisor/models"
)

type downsideRisk struct {
	support     models.SupportResistanceLevel
	distance    float64
	strength    float64
	bounce      float64
	multiLayer  bool
	leverageCap float64
}

type upsidePotential struct {
	resistance       models.SupportResistanceLevel
	distance         float64
	strength         float64
	breakout         float64
	extendedDistance float64
	profitPotential  float64
}

type correlationRisk struct {
	strength   float64
	level      models.RiskLevel
	riskFactor float64
	maxDrop    float64 // fraction
	defaulted  bool
}

type marketRisk struct {
	trendFactor      float64
	phaseFactor      float64
	volatilityFactor float64
	riskFactor       float64
}

// levelsBelow returns a copy of the levels strictly below price, nearest first
func levelsBelow(levels []models.SupportResistanceLevel, price float64) []models.SupportResistanceLevel {
	var out []models.SupportResistanceLevel
	for _, l := range levels {
		if finite(l.Price) && l.Price > 0 && l.Price < price {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	return out
}

// levelsAbove returns a copy of the levels strictly above price, nearest first
func levelsAbove(levels []models.SupportResistanceLevel, price float64) []models.SupportResistanceLevel {
	var out []models.SupportResistanceLevel
	for _, l := range levels {
		if finite(l.Price) && l.Price > price {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// matchPrediction finds the prediction whose level sits at the same price as
// level, within the configured relative tolerance
func (e *Engine) matchPrediction(preds []models.BreakoutPrediction, level models.SupportResistanceLevel) (models.BreakoutPrediction, bool) {
	tol := e.c.SupportResistance.PriceMatchTolerance * level.Price
	for _, p := range preds {
		if math.Abs(p.Level.Price-level.Price) <= tol {
			return p, true
		}
	}
	return models.BreakoutPrediction{}, false
}

func (e *Engine) analyzeDownside(req Request) (downsideRisk, error) {
	price := req.MarketContext.CurrentPrice
	if len(req.SupportLevels) == 0 {
		return downsideRisk{}, models.NewMarketDataError(models.KindSupportDetectionFailed, req.Symbol,
			"support_levels", "no support levels detected, cannot assess downside risk")
	}
	below := levelsBelow(req.SupportLevels, price)
	if len(below) == 0 {
		return downsideRisk{}, models.NewMarketDataError(models.KindNoSupportBelowPrice, req.Symbol,
			"support_levels", fmt.Sprintf("no support level below current price %.8g", price))
	}

	sr := e.c.SupportResistance
	support := below[0]
	d := downsideRisk{
		support:  support,
		distance: (price - support.Price) / price,
		strength: clamp01(support.Strength),
		bounce:   sr.DefaultBounceProbability,
	}
	if p, ok := e.matchPrediction(req.BreakoutPredictions, support); ok {
		d.bounce = p.BounceProbability
	}
	d.bounce = clamp01(d.bounce)
	// Another support within the next two levels backs up the nearest one.
	d.multiLayer = len(below) > 1

	distanceFactor := clamp(d.distance/sr.DistanceNormalizer, sr.MinDistanceFactor, sr.MaxDistanceFactor)
	layerFactor := 1.0
	if d.multiLayer {
		layerFactor = sr.MultiLayerBonus
	}
	d.leverageCap = math.Min(e.c.MaxLeverage, (1/d.distance)*d.strength*d.bounce*distanceFactor*layerFactor)
	return d, nil
}

func (e *Engine) analyzeUpside(req Request) (upsidePotential, error) {
	price := req.MarketContext.CurrentPrice
	if len(req.ResistanceLevels) == 0 {
		return upsidePotential{}, models.NewMarketDataError(models.KindResistanceDetectionFailed, req.Symbol,
			"resistance_levels", "no resistance levels detected, cannot assess profit potential")
	}
	above := levelsAbove(req.ResistanceLevels, price)
	if len(above) == 0 {
		return upsidePotential{}, models.NewMarketDataError(models.KindNoResistanceAbovePrice, req.Symbol,
			"resistance_levels", fmt.Sprintf("resistance levels not found above current price %.8g, cannot assess profit potential", price))
	}

	sr := e.c.SupportResistance
	resistance := above[0]
	u := upsidePotential{
		resistance: resistance,
		distance:   (resistance.Price - price) / price,
		strength:   clamp01(resistance.Strength),
		breakout:   sr.DefaultBreakoutProbability,
	}
	if p, ok := e.matchPrediction(req.BreakoutPredictions, resistance); ok {
		u.breakout = p.BreakoutProbability
	}
	u.breakout = clamp01(u.breakout)

	if len(above) > 1 {
		u.extendedDistance = (above[1].Price - price) / price
	} else {
		u.extendedDistance = u.distance * sr.ExtendedProfitMultiplier
	}
	immediate := u.distance * (1 - u.strength)
	extended := u.extendedDistance * u.breakout
	u.profitPotential = math.Max(sr.MinProfitPotential, immediate+extended)
	return u, nil
}

func (e *Engine) analyzeCorrelation(r *models.BTCCorrelationRisk) (correlationRisk, error) {
	ct := e.c.Correlation
	factors := e.c.RiskCalculation.RiskLevelFactors
	if r == nil {
		factor, _ := factors.RiskFactor(ct.DefaultRiskLevel)
		return correlationRisk{
			strength:   clamp01(ct.DefaultCorrelationStrength),
			level:      ct.DefaultRiskLevel,
			riskFactor: factor,
			maxDrop:    ct.DefaultMaxDropPercent / 100,
			defaulted:  true,
		}, nil
	}

	factor, ok := factors.RiskFactor(r.RiskLevel)
	if !ok {
		return correlationRisk{}, fmt.Errorf("unknown BTC risk level %q", r.RiskLevel)
	}
	c := correlationRisk{
		strength:   clamp01(r.CorrelationStrength),
		level:      r.RiskLevel,
		riskFactor: factor,
	}
	if len(r.PredictedAltcoinDrop) == 0 {
		c.maxDrop = math.Abs(r.BTCDropScenario) / 100 * c.strength
	}
	for _, pct := range r.PredictedAltcoinDrop {
		if !finite(pct) {
			return correlationRisk{}, fmt.Errorf("predicted altcoin drop: %w", ErrNonFinite)
		}
		c.maxDrop = math.Max(c.maxDrop, math.Abs(pct)/100)
	}
	return c, nil
}

func (e *Engine) analyzeMarket(mc models.MarketContext) (marketRisk, error) {
	rc := e.c.RiskCalculation
	trend, ok := rc.TrendFactors.Factor(mc.TrendDirection)
	if !ok {
		return marketRisk{}, fmt.Errorf("unknown trend direction %q", mc.TrendDirection)
	}
	phase, ok := rc.PhaseFactors.Factor(mc.MarketPhase)
	if !ok {
		return marketRisk{}, fmt.Errorf("unknown market phase %q", mc.MarketPhase)
	}
	if !finite(mc.Volatility) {
		return marketRisk{}, fmt.Errorf("volatility: %w", ErrNonFinite)
	}
	vol := math.Max(0, mc.Volatility)
	volFactor := 1 + math.Min(vol*rc.VolatilityRiskMultiplier, rc.MaxVolatilityComponent)
	return marketRisk{
		trendFactor:      trend,
		phaseFactor:      phase,
		volatilityFactor: volFactor,
		riskFactor:       trend * phase * volFactor,
	}, nil
}

type synthesis struct {
	riskReward   float64
	supportCap   float64
	rrCap        float64
	btcCap       float64
	marketCap    float64
	maxSafe      float64
	conservatism float64
	recommended  float64
	confidence   float64
}

func (e *Engine) synthesize(d downsideRisk, u upsidePotential, c correlationRisk, m marketRisk, volatility float64) (synthesis, error) {
	ls := e.c.LeverageScaling
	maxLev := e.c.MaxLeverage

	if !(u.profitPotential > 0) || !(d.distance > 0) {
		return synthesis{}, ErrDegenerateRisk
	}
	s := synthesis{supportCap: d.leverageCap}
	s.riskReward = clamp(u.profitPotential/d.distance, ls.MinRiskRewardRatio, ls.MaxRiskRewardRatio)

	switch {
	case s.riskReward >= ls.HighRRThreshold:
		s.rrCap = ls.HighRRLeverageCap
	case s.riskReward >= ls.ModerateRRThreshold:
		s.rrCap = ls.ModerateRRLeverageCap
	default:
		s.rrCap = ls.LowRRLeverageCap
	}
	s.rrCap = math.Min(maxLev, s.rrCap)

	s.btcCap = maxLev
	if c.riskFactor > e.c.Correlation.HighRiskFactorThreshold {
		if c.maxDrop > 0 {
			s.btcCap = math.Min(maxLev, 1/c.maxDrop)
		} else {
			s.btcCap = math.Min(maxLev, e.c.Correlation.ZeroDropLeverageCap)
		}
	}

	if !(m.riskFactor > 0) {
		return synthesis{}, fmt.Errorf("market risk factor must be positive, got %v", m.riskFactor)
	}
	s.marketCap = maxLev / m.riskFactor

	s.maxSafe = math.Min(math.Min(s.supportCap, s.rrCap), math.Min(s.btcCap, s.marketCap))
	s.maxSafe = clamp(s.maxSafe, 1, maxLev)

	vol := math.Max(0, volatility)
	s.conservatism = clamp(ls.ConservatismBase+vol*ls.VolatilityConservatismFactor, ls.MinConservatism, ls.MaxConservatism)
	s.recommended = clamp(s.maxSafe*s.conservatism, 1, s.maxSafe)

	factors := [4]float64{
		clamp01(d.strength),
		clamp01(u.breakout),
		clamp01(1 - c.riskFactor),
		clamp01(1 / m.riskFactor),
	}
	var sum float64
	for _, f := range factors {
		sum += f
	}
	dv := e.c.DataValidation
	s.confidence = clamp01(clamp(sum/float64(len(factors)), dv.MinConfidenceLevel, dv.MaxConfidenceLevel))

	for _, v := range []float64{s.riskReward, s.maxSafe, s.recommended, s.confidence} {
		if !finite(v) {
			return synthesis{}, ErrNonFinite
		}
	}
	return s, nil
}
