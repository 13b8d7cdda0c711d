package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all process configuration
type Config struct {
	TwelveAPIKey          string   `env:"TWELVE_API_KEY" envDefault:"-"`
	Symbols               []string `env:"SYMBOLS" envDefault:"BTC/USD,ETH/USD"`
	Timeframes            []string `env:"TIMEFRAMES" envDefault:"1h"`
	Strategies            []string `env:"STRATEGIES" envDefault:"default"`
	CandleCount           int      `env:"CANDLE_COUNT" envDefault:"200"`
	BTCSymbol             string   `env:"BTC_SYMBOL" envDefault:"BTC/USD"`
	BTCDropScenario       float64  `env:"BTC_DROP_SCENARIO" envDefault:"-10"`
	ConstantsPath         string   `env:"LEVERAGE_CONSTANTS_PATH" envDefault:"config/leverage_constants.yaml"`
	DefaultsPath          string   `env:"LEVERAGE_DEFAULTS_PATH" envDefault:"config/leverage_defaults.yaml"`
	DatabaseURL           string   `env:"DATABASE_URL"`
	TelegramBotToken      string   `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID        int64    `env:"TELEGRAM_CHAT_ID"`
	BatchWorkers          int      `env:"BATCH_WORKERS" envDefault:"4"`
	MetricsAddr           string   `env:"METRICS_ADDR"`
	LogLevel              string   `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout        int      `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds
	RequestsPerSec        int      `env:"REQUESTS_PER_SEC" envDefault:"5"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.TwelveAPIKey = os.Getenv("TWELVE_API_KEY")
	cfg.Symbols = getEnvListWithDefault("SYMBOLS", []string{"BTC/USD", "ETH/USD"})
	cfg.Timeframes = getEnvListWithDefault("TIMEFRAMES", []string{"1h"})
	cfg.Strategies = getEnvListWithDefault("STRATEGIES", []string{"default"})
	cfg.CandleCount = getEnvIntWithDefault("CANDLE_COUNT", 200)
	cfg.BTCSymbol = getEnvWithDefault("BTC_SYMBOL", "BTC/USD")
	cfg.BTCDropScenario = getEnvFloatWithDefault("BTC_DROP_SCENARIO", -10)
	cfg.ConstantsPath = getEnvWithDefault("LEVERAGE_CONSTANTS_PATH", "config/leverage_constants.yaml")
	cfg.DefaultsPath = getEnvWithDefault("LEVERAGE_DEFAULTS_PATH", "config/leverage_defaults.yaml")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0)
	cfg.BatchWorkers = getEnvIntWithDefault("BATCH_WORKERS", 4)
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", 5)

	return &cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer in environment, using default")
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer in environment, using default")
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid number in environment, using default")
	}
	return defaultValue
}

func getEnvListWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	list := SplitList(value)
	if len(list) == 0 {
		return defaultValue
	}
	return list
}

// SplitList splits a comma separated list, trimming blanks
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
