package models

import "time"

// TrendDirection of the market relative to its moving average
type TrendDirection string

const (
	TrendBullish  TrendDirection = "BULLISH"
	TrendBearish  TrendDirection = "BEARISH"
	TrendSideways TrendDirection = "SIDEWAYS"
)

// MarketPhase is a coarse regime label derived from trend and volatility
type MarketPhase string

const (
	PhaseAccumulation MarketPhase = "ACCUMULATION"
	PhaseMarkup       MarketPhase = "MARKUP"
	PhaseDistribution MarketPhase = "DISTRIBUTION"
	PhaseMarkdown     MarketPhase = "MARKDOWN"
)

// MarketContext is the as-of snapshot the leverage engine reasons about
type MarketContext struct {
	CurrentPrice   float64        `json:"current_price"`
	Volume24h      float64        `json:"volume_24h"`
	Volatility     float64        `json:"volatility"` // std-dev of simple returns
	TrendDirection TrendDirection `json:"trend_direction"`
	MarketPhase    MarketPhase    `json:"market_phase"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Anomaly types
const (
	AnomalyPriceSpike  = "price_spike"
	AnomalyVolumeSpike = "volume_spike"
)

// MarketAnomaly is an advisory finding of the anomaly scan
type MarketAnomaly struct {
	Type        string    `json:"type"`
	Severity    string    `json:"severity"` // medium, high
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}
