package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/LeverageAdvisor/internal/analysis/market"
	"github.com/Alias1177/LeverageAdvisor/internal/analysis/technical"
	"github.com/Alias1177/LeverageAdvisor/internal/batch"
	"github.com/Alias1177/LeverageAdvisor/internal/config"
	"github.com/Alias1177/LeverageAdvisor/internal/database"
	"github.com/Alias1177/LeverageAdvisor/internal/metrics"
	"github.com/Alias1177/LeverageAdvisor/internal/notify"
	"github.com/Alias1177/LeverageAdvisor/models"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze every symbol, timeframe and strategy combination",
	Long: `Run the leverage pipeline over the cross product of symbols, timeframes and
strategies. Results can be stored in PostgreSQL, entry signals sent to
Telegram and run metrics exposed for Prometheus.

Examples:
  analyzer batch --symbols ETH/USD,SOL/USD --timeframes 1h,4h
  analyzer batch --db --notify --metrics-addr :9102`,
	RunE: runBatch,
}

var (
	batchSymbols     string
	batchTimeframes  string
	batchStrategies  string
	batchWorkers     int
	batchStore       bool
	batchNotify      bool
	batchMetricsAddr string
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchSymbols, "symbols", "", "Comma separated symbols (env SYMBOLS)")
	batchCmd.Flags().StringVar(&batchTimeframes, "timeframes", "", "Comma separated timeframes (env TIMEFRAMES)")
	batchCmd.Flags().StringVar(&batchStrategies, "strategies", "", "Comma separated strategies (env STRATEGIES)")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Parallel units (env BATCH_WORKERS)")
	batchCmd.Flags().BoolVar(&batchStore, "db", false, "Persist records to DATABASE_URL")
	batchCmd.Flags().BoolVar(&batchNotify, "notify", false, "Send entry signals to TELEGRAM_CHAT_ID")
	batchCmd.Flags().StringVar(&batchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (env METRICS_ADDR)")
}

func listOr(flag string, fallback []string) []string {
	if list := config.SplitList(flag); len(list) > 0 {
		return list
	}
	return fallback
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	configs, err := loadConfigs()
	if err != nil {
		return err
	}
	client, err := newMarketClient()
	if err != nil {
		return err
	}

	workers := cfg.BatchWorkers
	if batchWorkers > 0 {
		workers = batchWorkers
	}
	opts := batch.Options{
		Workers:         workers,
		CandleCount:     cfg.CandleCount,
		BTCSymbol:       cfg.BTCSymbol,
		BTCDropScenario: cfg.BTCDropScenario,
		Levels:          technical.DefaultLevelOptions(),
	}
	runnerOpts := []batch.Option{batch.WithLogger(log.Logger)}

	if batchStore {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("--db requires DATABASE_URL")
		}
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		runnerOpts = append(runnerOpts, batch.WithStore(db))
	}

	if batchNotify {
		if cfg.TelegramBotToken == "" || cfg.TelegramChatID == 0 {
			return fmt.Errorf("--notify requires TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
		}
		n, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, log.Logger, cfg.TelegramChatID)
		if err != nil {
			return fmt.Errorf("create telegram notifier: %w", err)
		}
		runnerOpts = append(runnerOpts, batch.WithNotifier(n))
	}

	metricsAddr := cfg.MetricsAddr
	if batchMetricsAddr != "" {
		metricsAddr = batchMetricsAddr
	}
	if metricsAddr != "" {
		recorder := metrics.NewRecorder()
		runnerOpts = append(runnerOpts, batch.WithMetrics(recorder))

		serveCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if err := recorder.Serve(serveCtx, metricsAddr, log.Logger); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	runner := batch.NewRunner(client, configs, opts, runnerOpts...)
	jobs := batch.BuildJobs(
		listOr(batchSymbols, cfg.Symbols),
		listOr(batchTimeframes, cfg.Timeframes),
		listOr(batchStrategies, cfg.Strategies),
	)
	summary, err := runner.Run(ctx, jobs, market.Realtime())
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

func printSummary(s batch.Summary) {
	fmt.Printf("Execution %s: %d units, %d succeeded, %d failed, %d entry signals\n",
		s.ExecutionID, s.Total, s.Succeeded, s.Failed, s.EntrySignals)
	for _, rec := range s.Records {
		unit := strings.Join([]string{rec.Symbol, rec.Timeframe, rec.Strategy}, " ")
		if rec.Status == models.StatusFailed {
			fmt.Printf("  %-28s failed  %s: %s\n", unit, rec.ErrorKind, rec.ErrorMessage)
			continue
		}
		signal := ""
		if rec.EntrySignal {
			signal = "  ENTRY"
		}
		fmt.Printf("  %-28s %5.2fx  conf %3.0f%%  SL %.8g  TP %.8g%s\n",
			unit, rec.RecommendedLeverage, rec.ConfidenceLevel*100, rec.StopLossPrice, rec.TakeProfitPrice, signal)
	}
}
