package risk

import (
	"fmt"
	"math"

	"github.com/Alias1177/LeverageAdvisor/internal/config"
)

// BracketParams is everything a stop-loss / take-profit calculator may use
type BracketParams struct {
	CurrentPrice        float64
	SupportDistance     float64 // fraction of current price
	SupportStrength     float64 // 0-1
	ResistanceDistance  float64 // fraction of current price
	BreakoutProbability float64 // 0-1
	Leverage            float64
}

// Bracket is a long position's protective stop and profit target
type Bracket struct {
	StopLossPrice      float64
	TakeProfitPrice    float64
	StopLossDistance   float64
	TakeProfitDistance float64
}

// BracketCalculator derives a bracket from support/resistance geometry. The
// default is StructureBracket; callers may inject their own.
type BracketCalculator interface {
	Calculate(p BracketParams) (Bracket, error)
}

// StructureBracket places the stop just beyond the nearest support, limited
// by the loss a leveraged position can take, and the target short of or just
// past the nearest resistance depending on breakout odds.
type StructureBracket struct {
	c config.StopLossTakeProfit
}

// NewStructureBracket creates the default bracket calculator
func NewStructureBracket(c config.StopLossTakeProfit) *StructureBracket {
	return &StructureBracket{c: c}
}

// Calculate implements BracketCalculator
func (s *StructureBracket) Calculate(p BracketParams) (Bracket, error) {
	if !(p.CurrentPrice > 0) {
		return Bracket{}, fmt.Errorf("current price must be positive, got %v", p.CurrentPrice)
	}
	if !(p.SupportDistance > 0) || !(p.ResistanceDistance > 0) {
		return Bracket{}, fmt.Errorf("support and resistance distances must be positive, got %v / %v",
			p.SupportDistance, p.ResistanceDistance)
	}

	strength := clamp(p.SupportStrength, 0, 1)
	// Weaker supports get a wider buffer below them.
	buffer := s.c.BaseBuffer + (1-strength)*s.c.StrengthBuffer
	stopDistance := p.SupportDistance + buffer
	if p.Leverage > 0 {
		stopDistance = math.Min(stopDistance, s.c.MaxLossPercent/p.Leverage)
	}
	stopDistance = clamp(stopDistance, s.c.MinStopLoss, s.c.MaxStopLoss)

	multiple := s.c.BounceTakeProfitMultiple
	if p.BreakoutProbability > s.c.BreakoutThreshold {
		multiple = s.c.BreakoutTakeProfitMultiple
	}
	takeProfitDistance := p.ResistanceDistance * multiple

	return Bracket{
		StopLossPrice:      p.CurrentPrice * (1 - stopDistance),
		TakeProfitPrice:    p.CurrentPrice * (1 + takeProfitDistance),
		StopLossDistance:   stopDistance,
		TakeProfitDistance: takeProfitDistance,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
