package models

import "time"

// Level types
const (
	LevelSupport    = "support"
	LevelResistance = "resistance"
)

// SupportResistanceLevel is one price level produced by a level detector
type SupportResistanceLevel struct {
	Price               float64   `json:"price"`
	Strength            float64   `json:"strength"` // 0-1
	TouchCount          int       `json:"touch_count"`
	LevelType           string    `json:"level_type"` // support, resistance
	FirstTouch          time.Time `json:"first_touch"`
	LastTouch           time.Time `json:"last_touch"`
	VolumeAtLevel       float64   `json:"volume_at_level"`
	DistanceFromCurrent float64   `json:"distance_from_current"` // % of current price
}

// BreakoutPrediction is a model's view on whether price passes through a level
type BreakoutPrediction struct {
	Level                SupportResistanceLevel `json:"level"`
	BreakoutProbability  float64                `json:"breakout_probability"`
	BounceProbability    float64                `json:"bounce_probability"`
	PredictionConfidence float64                `json:"prediction_confidence"`
	PredictedPriceTarget float64                `json:"predicted_price_target"`
	TimeHorizonMinutes   int                    `json:"time_horizon_minutes"`
	ModelName            string                 `json:"model_name"`
}
