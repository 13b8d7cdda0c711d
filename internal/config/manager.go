package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/Alias1177/LeverageAdvisor/models"
)

// UseDefaultMarker in a constants document is replaced with the value at the
// same key path of the defaults document.
const UseDefaultMarker = "use_default"

// DefaultEntryStrategy is the entry_conditions key used for unknown strategies
const DefaultEntryStrategy = "default"

var requiredEngineGroups = []string{
	"core_limits",
	"correlation_thresholds",
	"support_resistance_criteria",
	"risk_calculation",
	"leverage_scaling",
	"stop_loss_take_profit",
	"market_context",
	"data_validation",
}

type engineDocument struct {
	CoreLimits         CoreLimits                `yaml:"core_limits"`
	Correlation        CorrelationThresholds     `yaml:"correlation_thresholds"`
	SupportResistance  SupportResistanceCriteria `yaml:"support_resistance_criteria"`
	RiskCalculation    RiskCalculation           `yaml:"risk_calculation"`
	LeverageScaling    LeverageScaling           `yaml:"leverage_scaling"`
	StopLossTakeProfit StopLossTakeProfit        `yaml:"stop_loss_take_profit"`
	MarketContext      MarketContextConstants    `yaml:"market_context"`
	DataValidation     DataValidation            `yaml:"data_validation"`
}

type constantsDocument struct {
	Engine          engineDocument                 `yaml:"leverage_engine_constants"`
	Timeframes      map[string]TimeframeAdjustment `yaml:"timeframe_specific_adjustments"`
	Categories      map[string]CategoryAdjustment  `yaml:"symbol_category_adjustments"`
	Emergency       EmergencyLimits                `yaml:"emergency_limits"`
	EntryConditions map[string]EntryConditions     `yaml:"entry_conditions"`
}

// LeverageConfigManager holds one fully resolved constants document. It is
// read-only after construction and safe for concurrent use.
type LeverageConfigManager struct {
	base            Constants
	timeframes      map[string]TimeframeAdjustment
	categories      map[string]CategoryAdjustment
	categoryNames   []string
	entryConditions map[string]EntryConditions
	logger          zerolog.Logger
}

// NewLeverageConfigManager loads the constants document at path, resolving
// use_default markers against the document at defaultsPath. defaultsPath may
// be empty when the document contains no markers.
func NewLeverageConfigManager(path, defaultsPath string) (*LeverageConfigManager, error) {
	if path == "" {
		return nil, models.NewConfigError(models.KindConfigManagerInitFailed, "path",
			"constants document path is empty", nil)
	}

	raw, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	var defaults map[string]interface{}
	if defaultsPath != "" {
		defaults, err = readDocument(defaultsPath)
		if err != nil {
			return nil, err
		}
	}

	return build(raw, defaults)
}

// NewLeverageConfigManagerFromBytes builds a manager from in-memory documents.
func NewLeverageConfigManagerFromBytes(data, defaults []byte) (*LeverageConfigManager, error) {
	raw, err := parseDocument(data, "constants")
	if err != nil {
		return nil, err
	}
	var defs map[string]interface{}
	if len(defaults) > 0 {
		defs, err = parseDocument(defaults, "defaults")
		if err != nil {
			return nil, err
		}
	}
	return build(raw, defs)
}

// build is the second load phase: resolve markers once, check the required
// groups and decode into the typed document.
func build(raw, defaults map[string]interface{}) (*LeverageConfigManager, error) {
	resolved, err := resolveMarkers(raw, defaults, "")
	if err != nil {
		return nil, err
	}
	tree, _ := resolved.(map[string]interface{})
	if err := checkRequiredGroups(tree); err != nil {
		return nil, err
	}
	doc, err := decodeDocument(tree)
	if err != nil {
		return nil, err
	}
	return newManager(doc)
}

func newManager(doc *constantsDocument) (*LeverageConfigManager, error) {
	base := Constants{
		MaxLeverage:             doc.Engine.CoreLimits.MaxLeverage,
		MinRiskReward:           doc.Engine.CoreLimits.MinRiskReward,
		MaxDrawdownTolerance:    doc.Engine.CoreLimits.MaxDrawdownTolerance,
		BTCCorrelationThreshold: doc.Engine.Correlation.BTCCorrelationThreshold,
		MinSupportStrength:      doc.Engine.SupportResistance.MinSupportStrength,
		Correlation:             doc.Engine.Correlation,
		SupportResistance:       doc.Engine.SupportResistance,
		RiskCalculation:         doc.Engine.RiskCalculation,
		LeverageScaling:         doc.Engine.LeverageScaling,
		StopLossTakeProfit:      doc.Engine.StopLossTakeProfit,
		MarketContext:           doc.Engine.MarketContext,
		DataValidation:          doc.Engine.DataValidation,
		EmergencyLimits:         doc.Emergency,
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}

	m := &LeverageConfigManager{
		base:            base,
		timeframes:      make(map[string]TimeframeAdjustment, len(doc.Timeframes)),
		categories:      make(map[string]CategoryAdjustment, len(doc.Categories)),
		entryConditions: make(map[string]EntryConditions, len(doc.EntryConditions)),
		logger:          log.With().Str("component", "leverage_config").Logger(),
	}
	for tf, adj := range doc.Timeframes {
		if adj.LeverageMultiplier <= 0 || adj.VolatilityMultiplier <= 0 {
			return nil, models.NewConfigError(models.KindConfigConstantsLoadFailed,
				"timeframe_specific_adjustments."+tf, "multipliers must be positive", nil)
		}
		m.timeframes[tf] = adj
	}
	for cat, adj := range doc.Categories {
		if adj.LeverageMultiplier <= 0 || adj.RiskReduction < 0 {
			return nil, models.NewConfigError(models.KindConfigConstantsLoadFailed,
				"symbol_category_adjustments."+cat, "leverage multiplier must be positive and risk reduction non-negative", nil)
		}
		symbols := make([]string, len(adj.Symbols))
		for i, s := range adj.Symbols {
			symbols[i] = strings.ToUpper(strings.TrimSpace(s))
		}
		adj.Symbols = symbols
		m.categories[cat] = adj
		m.categoryNames = append(m.categoryNames, cat)
	}
	sort.Strings(m.categoryNames)
	for name, ec := range doc.EntryConditions {
		m.entryConditions[name] = ec
	}
	return m, nil
}

// GetAdjustedConstants applies the timeframe and symbol category adjustments
// and then the emergency limits. Unknown or empty keys leave the bundle
// unadjusted.
func (m *LeverageConfigManager) GetAdjustedConstants(timeframe, category string) (Constants, error) {
	if m == nil {
		return Constants{}, models.NewConfigError(models.KindConfigManagerInitFailed, "",
			"leverage config manager is not initialized", nil)
	}
	c := m.base

	if timeframe != "" {
		if adj, ok := m.timeframes[timeframe]; ok {
			c.RiskCalculation.VolatilityRiskMultiplier *= adj.VolatilityMultiplier
			c.MaxLeverage = math.Max(1.0, c.MaxLeverage*adj.LeverageMultiplier)
		} else {
			m.logger.Debug().Str("timeframe", timeframe).Msg("No timeframe adjustment configured")
		}
	}

	if category != "" {
		if adj, ok := m.categories[category]; ok {
			c.MaxLeverage = math.Max(1.0, c.MaxLeverage*adj.LeverageMultiplier)
			c.MinRiskReward *= 1 + adj.RiskReduction
		} else {
			m.logger.Debug().Str("category", category).Msg("No symbol category adjustment configured")
		}
	}

	c.MaxLeverage = math.Min(c.MaxLeverage, c.EmergencyLimits.AbsoluteMaxLeverage)
	c.StopLossTakeProfit.MaxStopLoss = math.Min(c.StopLossTakeProfit.MaxStopLoss, c.EmergencyLimits.AbsoluteMaxStopLoss)
	if c.StopLossTakeProfit.MinStopLoss > c.StopLossTakeProfit.MaxStopLoss {
		c.StopLossTakeProfit.MinStopLoss = c.StopLossTakeProfit.MaxStopLoss
	}

	return c, nil
}

// CategoryOf returns the configured category whose symbol list contains the
// base asset of symbol ("DOGE/USDT", "DOGEUSDT" and "DOGE" all match DOGE).
// It returns "" when no category lists the asset.
func (m *LeverageConfigManager) CategoryOf(symbol string) string {
	base := baseAsset(symbol)
	for _, name := range m.categoryNames {
		for _, s := range m.categories[name].Symbols {
			if s == base {
				return name
			}
		}
	}
	return ""
}

// EntryConditions returns the entry conditions of a strategy, falling back
// to the default entry.
func (m *LeverageConfigManager) EntryConditions(strategy string) (EntryConditions, error) {
	if ec, ok := m.entryConditions[strategy]; ok {
		return ec, nil
	}
	if ec, ok := m.entryConditions[DefaultEntryStrategy]; ok {
		return ec, nil
	}
	return EntryConditions{}, models.NewConfigError(models.KindEntryConditionsConfigFailed,
		"entry_conditions."+strategy, fmt.Sprintf("no entry conditions for strategy %q and no default", strategy), nil)
}

var quoteAssets = []string{"USDT", "USDC", "BUSD", "USD", "EUR", "BTC"}

func baseAsset(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"/", "-", "_", ":"} {
		if i := strings.Index(s, sep); i > 0 {
			return s[:i]
		}
	}
	for _, q := range quoteAssets {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return strings.TrimSuffix(s, q)
		}
	}
	return s
}

func readDocument(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewConfigError(models.KindConfigLoadFailed, path, "cannot read constants document", err)
	}
	return parseDocument(data, path)
}

func parseDocument(data []byte, name string) (map[string]interface{}, error) {
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, models.NewConfigError(models.KindConfigLoadFailed, name, "cannot parse constants document", err)
	}
	if len(tree) == 0 {
		return nil, models.NewConfigError(models.KindConfigLoadFailed, name, "constants document is empty", nil)
	}
	return tree, nil
}

// resolveMarkers returns a copy of node with every use_default marker
// replaced by the defaults value at the same path.
func resolveMarkers(node interface{}, defaults map[string]interface{}, path string) (interface{}, error) {
	switch v := node.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, child := range v {
			childPath := key
			if path != "" {
				childPath = path + "." + key
			}
			resolved, err := resolveMarkers(child, defaults, childPath)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, child := range v {
			resolved, err := resolveMarkers(child, defaults, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case string:
		if v != UseDefaultMarker {
			return v, nil
		}
		def, ok := lookupPath(defaults, path)
		if !ok {
			return nil, models.NewConfigError(models.KindConfigConstantsLoadFailed, path,
				"use_default marker has no value in the defaults document", nil)
		}
		if s, isString := def.(string); isString && s == UseDefaultMarker {
			return nil, models.NewConfigError(models.KindConfigConstantsLoadFailed, path,
				"defaults document must not contain use_default markers", nil)
		}
		return def, nil
	default:
		return v, nil
	}
}

func lookupPath(tree map[string]interface{}, path string) (interface{}, bool) {
	if tree == nil {
		return nil, false
	}
	var cur interface{} = tree
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func checkRequiredGroups(tree map[string]interface{}) error {
	engine, ok := tree["leverage_engine_constants"].(map[string]interface{})
	if !ok {
		return models.NewConfigError(models.KindConfigConstantsLoadFailed, "leverage_engine_constants",
			"required section is missing", nil)
	}
	for _, group := range requiredEngineGroups {
		if _, ok := engine[group].(map[string]interface{}); !ok {
			return models.NewConfigError(models.KindConfigConstantsLoadFailed, "leverage_engine_constants."+group,
				"required constant group is missing", nil)
		}
	}
	if _, ok := tree["emergency_limits"].(map[string]interface{}); !ok {
		return models.NewConfigError(models.KindConfigConstantsLoadFailed, "emergency_limits",
			"required section is missing", nil)
	}
	return nil
}

func decodeDocument(tree map[string]interface{}) (*constantsDocument, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, models.NewConfigError(models.KindConfigConstantsLoadFailed, "", "cannot re-encode resolved document", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc constantsDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, models.NewConfigError(models.KindConfigConstantsLoadFailed, "", "resolved document does not match the constants schema", err)
	}
	return &doc, nil
}
