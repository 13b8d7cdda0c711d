package models

// RiskLevel grades the BTC crash exposure of an altcoin
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Valid reports whether r is one of the known risk levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// BTCCorrelationRisk models the downside of an altcoin under a hypothetical BTC drop
type BTCCorrelationRisk struct {
	Symbol               string          `json:"symbol"`
	BTCDropScenario      float64         `json:"btc_drop_scenario"`      // assumed % BTC decline
	PredictedAltcoinDrop map[int]float64 `json:"predicted_altcoin_drop"` // minutes ahead -> % drop
	CorrelationStrength  float64         `json:"correlation_strength"`   // 0-1
	RiskLevel            RiskLevel       `json:"risk_level"`
	LiquidationRisk      map[int]float64 `json:"liquidation_risk"` // minutes ahead -> probability
}
