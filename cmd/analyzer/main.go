package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/LeverageAdvisor/internal/api/twelvedata"
	"github.com/Alias1177/LeverageAdvisor/internal/config"
)

var (
	cfg           *config.Config
	logLevel      string
	constantsPath string
	defaultsPath  string
)

// rootCmd is the base command of the leverage advisor CLI
var rootCmd = &cobra.Command{
	Use:   "analyzer",
	Short: "Leverage advisor for long crypto positions",
	Long: `analyzer derives a bounded leverage recommendation, stop loss and take
profit for a long position from support/resistance structure, breakout odds,
BTC correlation risk and market regime.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("constants") {
			cfg.ConstantsPath = constantsPath
		}
		if cmd.Flags().Changed("defaults") {
			cfg.DefaultsPath = defaultsPath
		}
		setupLogging(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&constantsPath, "constants", "", "Path to leverage_constants.yaml (env LEVERAGE_CONSTANTS_PATH)")
	rootCmd.PersistentFlags().StringVar(&defaultsPath, "defaults", "", "Path to leverage_defaults.yaml (env LEVERAGE_DEFAULTS_PATH)")
}

func main() {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setupSignalHandling cancels the command context on interrupt
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, stopping...")
		cancel()
	}()
}

// setupLogging configures the logger
func setupLogging(level string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(lvl)
}

func loadConfigs() (*config.LeverageConfigManager, error) {
	return config.NewLeverageConfigManager(cfg.ConstantsPath, cfg.DefaultsPath)
}

func newMarketClient() (*twelvedata.Client, error) {
	if cfg.TwelveAPIKey == "" {
		return nil, fmt.Errorf("TWELVE_API_KEY is not set")
	}
	return twelvedata.NewClient(twelvedata.ClientOptions{
		APIKey:         cfg.TwelveAPIKey,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerSec: cfg.RequestsPerSec,
		MaxRetries:     3,
	}), nil
}
