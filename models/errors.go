package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable tag carried by every analysis failure
type ErrorKind string

// Market data kinds
const (
	KindMarketDataEmpty             ErrorKind = "market_data_empty"
	KindSupportDetectionFailed      ErrorKind = "support_detection_failed"
	KindNoSupportBelowPrice         ErrorKind = "no_support_below_price"
	KindResistanceDetectionFailed   ErrorKind = "resistance_detection_failed"
	KindNoResistanceAbovePrice      ErrorKind = "no_resistance_above_price"
	KindMarketContextAnalysisFailed ErrorKind = "market_context_analysis_failed"
)

// Configuration kinds
const (
	KindConfigLoadFailed            ErrorKind = "config_load_failed"
	KindConfigManagerInitFailed     ErrorKind = "config_manager_init_failed"
	KindConfigConstantsLoadFailed   ErrorKind = "config_constants_load_failed"
	KindEntryConditionsConfigFailed ErrorKind = "entry_conditions_config_failed"
)

// Remaining kinds reported by KindOf
const (
	KindLeverageAnalysisFailed ErrorKind = "leverage_analysis_failed"
	KindInvalidParameter       ErrorKind = "invalid_parameter"
	KindUnknown                ErrorKind = "unknown"
)

// Parameter validation errors of the market context analyzer
var (
	ErrMissingTargetTimestamp = errors.New("backtest mode requires a target timestamp")
	ErrNoTimestamps           = errors.New("market data carries no timestamps")
)

// InsufficientMarketDataError means a load-bearing market input is missing,
// empty, or inconsistent with the current price.
type InsufficientMarketDataError struct {
	Kind    ErrorKind
	Symbol  string
	Field   string
	Message string
}

func (e *InsufficientMarketDataError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s: %s (%s, field %s)", e.Symbol, e.Message, e.Kind, e.Field)
	}
	return fmt.Sprintf("%s (%s, field %s)", e.Message, e.Kind, e.Field)
}

// NewMarketDataError creates an InsufficientMarketDataError
func NewMarketDataError(kind ErrorKind, symbol, field, message string) *InsufficientMarketDataError {
	return &InsufficientMarketDataError{Kind: kind, Symbol: symbol, Field: field, Message: message}
}

// InsufficientConfigurationError means the constants store could not be
// loaded or a required group is absent.
type InsufficientConfigurationError struct {
	Kind    ErrorKind
	Field   string
	Message string
	Err     error
}

func (e *InsufficientConfigurationError) Error() string {
	msg := fmt.Sprintf("%s (%s", e.Message, e.Kind)
	if e.Field != "" {
		msg += ", field " + e.Field
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InsufficientConfigurationError) Unwrap() error { return e.Err }

// NewConfigError creates an InsufficientConfigurationError
func NewConfigError(kind ErrorKind, field, message string, err error) *InsufficientConfigurationError {
	return &InsufficientConfigurationError{Kind: kind, Field: field, Message: message, Err: err}
}

// LeverageAnalysisError wraps an unexpected failure inside the engine,
// labelled with the stage that was running.
type LeverageAnalysisError struct {
	Stage  string
	Symbol string
	Err    error
}

func (e *LeverageAnalysisError) Error() string {
	return fmt.Sprintf("leverage analysis failed for %s at stage %s: %v", e.Symbol, e.Stage, e.Err)
}

func (e *LeverageAnalysisError) Unwrap() error { return e.Err }

// KindOf returns the kind tag of err, looking through wrapping.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var md *InsufficientMarketDataError
	if errors.As(err, &md) {
		return md.Kind
	}
	var ce *InsufficientConfigurationError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	var le *LeverageAnalysisError
	if errors.As(err, &le) {
		return KindLeverageAnalysisFailed
	}
	if errors.Is(err, ErrMissingTargetTimestamp) || errors.Is(err, ErrNoTimestamps) {
		return KindInvalidParameter
	}
	return KindUnknown
}
