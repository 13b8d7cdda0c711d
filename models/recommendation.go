package models

import "time"

// LeverageRecommendation is the terminal output of one engine call
type LeverageRecommendation struct {
	RecommendedLeverage float64       `json:"recommended_leverage"`
	MaxSafeLeverage     float64       `json:"max_safe_leverage"`
	RiskRewardRatio     float64       `json:"risk_reward_ratio"` // clamped to [0.1, 10]
	StopLossPrice       float64       `json:"stop_loss_price"`
	TakeProfitPrice     float64       `json:"take_profit_price"`
	ConfidenceLevel     float64       `json:"confidence_level"` // 0-1
	Reasoning           []string      `json:"reasoning"`
	MarketConditions    MarketContext `json:"market_conditions"`
}

// Analysis statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// AnalysisRecord is the persisted row of one symbol/timeframe/strategy unit
type AnalysisRecord struct {
	ExecutionID         string    `json:"execution_id"`
	Symbol              string    `json:"symbol"`
	Timeframe           string    `json:"timeframe"`
	Strategy            string    `json:"strategy"`
	Status              string    `json:"status"`
	ErrorKind           string    `json:"error_kind,omitempty"`
	ErrorMessage        string    `json:"error_message,omitempty"`
	CurrentPrice        float64   `json:"current_price"`
	RecommendedLeverage float64   `json:"recommended_leverage"`
	MaxSafeLeverage     float64   `json:"max_safe_leverage"`
	RiskRewardRatio     float64   `json:"risk_reward_ratio"`
	StopLossPrice       float64   `json:"stop_loss_price"`
	TakeProfitPrice     float64   `json:"take_profit_price"`
	ConfidenceLevel     float64   `json:"confidence_level"`
	Reasoning           []string  `json:"reasoning"`
	EntrySignal         bool      `json:"entry_signal"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewSuccessRecord fills a record from a recommendation
func NewSuccessRecord(executionID, symbol, timeframe, strategy string, rec *LeverageRecommendation, signal bool, at time.Time) *AnalysisRecord {
	reasoning := make([]string, len(rec.Reasoning))
	copy(reasoning, rec.Reasoning)
	return &AnalysisRecord{
		ExecutionID:         executionID,
		Symbol:              symbol,
		Timeframe:           timeframe,
		Strategy:            strategy,
		Status:              StatusSuccess,
		CurrentPrice:        rec.MarketConditions.CurrentPrice,
		RecommendedLeverage: rec.RecommendedLeverage,
		MaxSafeLeverage:     rec.MaxSafeLeverage,
		RiskRewardRatio:     rec.RiskRewardRatio,
		StopLossPrice:       rec.StopLossPrice,
		TakeProfitPrice:     rec.TakeProfitPrice,
		ConfidenceLevel:     rec.ConfidenceLevel,
		Reasoning:           reasoning,
		EntrySignal:         signal,
		CreatedAt:           at,
	}
}

// NewFailedRecord records a unit that produced an error instead of a recommendation
func NewFailedRecord(executionID, symbol, timeframe, strategy string, err error, at time.Time) *AnalysisRecord {
	return &AnalysisRecord{
		ExecutionID:  executionID,
		Symbol:       symbol,
		Timeframe:    timeframe,
		Strategy:     strategy,
		Status:       StatusFailed,
		ErrorKind:    string(KindOf(err)),
		ErrorMessage: err.Error(),
		CreatedAt:    at,
	}
}
