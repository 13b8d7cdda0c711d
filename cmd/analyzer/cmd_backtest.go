package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/LeverageAdvisor/internal/analysis/market"
	"github.com/Alias1177/LeverageAdvisor/internal/batch"
	"github.com/Alias1177/LeverageAdvisor/internal/trading/backtest"
	"github.com/Alias1177/LeverageAdvisor/models"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay recommendations over historical candles",
	Long: `Walk forward over historical candles, taking a point-in-time recommendation
at each step and simulating the long until its stop, target or holding limit.

Examples:
  analyzer backtest --symbol ETH/USD --timeframe 1h --days 30
  analyzer backtest --symbol SOL/USD --signals-only --json`,
	RunE: runBacktest,
}

var (
	backtestSymbol      string
	backtestTimeframe   string
	backtestStrategy    string
	backtestDays        int
	backtestWarmup      int
	backtestMaxHold     int
	backtestFraction    float64
	backtestSignalsOnly bool
	backtestJSON        bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "Symbol to replay")
	backtestCmd.Flags().StringVar(&backtestTimeframe, "timeframe", "1h", "Candle timeframe")
	backtestCmd.Flags().StringVar(&backtestStrategy, "strategy", "default", "Entry-condition strategy")
	backtestCmd.Flags().IntVar(&backtestDays, "days", 30, "Days of history to fetch")
	backtestCmd.Flags().IntVar(&backtestWarmup, "warmup", 100, "Bars before the first decision")
	backtestCmd.Flags().IntVar(&backtestMaxHold, "max-hold", 24, "Bars a trade may stay open")
	backtestCmd.Flags().Float64Var(&backtestFraction, "position-fraction", 0.1, "Share of equity posted as margin per trade")
	backtestCmd.Flags().BoolVar(&backtestSignalsOnly, "signals-only", false, "Only trade when entry conditions hold")
	backtestCmd.Flags().BoolVar(&backtestJSON, "json", false, "Print full results as JSON")
	backtestCmd.MarkFlagRequired("symbol")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	configs, err := loadConfigs()
	if err != nil {
		return err
	}
	client, err := newMarketClient()
	if err != nil {
		return err
	}

	job := batch.Job{Symbol: backtestSymbol, Timeframe: backtestTimeframe, Strategy: backtestStrategy}
	candles, err := client.GetHistoricalCandles(ctx, job.Symbol, job.Timeframe, backtestDays)
	if err != nil {
		return fmt.Errorf("failed to fetch historical data: %w", err)
	}
	var btcCandles []models.Candle
	if cfg.BTCSymbol != "" && job.Symbol != cfg.BTCSymbol {
		if btcCandles, err = client.GetHistoricalCandles(ctx, cfg.BTCSymbol, job.Timeframe, backtestDays); err != nil {
			log.Warn().Err(err).Msg("BTC candles unavailable, using default correlation risk")
		}
	}

	// Engine logs stay quiet; one line per bar would drown the summary.
	runner := batch.NewRunner(client, configs, batch.Options{
		BTCSymbol:       cfg.BTCSymbol,
		BTCDropScenario: cfg.BTCDropScenario,
	})
	decide := func(history []models.Candle, mode market.Mode) (backtest.Decision, error) {
		ev, err := runner.Evaluate(job, history, btcCandles, mode)
		if err != nil {
			return backtest.Decision{}, err
		}
		return backtest.Decision{Recommendation: ev.Recommendation, EntrySignal: ev.EntrySignal}, nil
	}

	engine := backtest.NewEngine(decide, backtest.Options{
		Warmup:           backtestWarmup,
		MaxHold:          backtestMaxHold,
		PositionFraction: backtestFraction,
		SignalsOnly:      backtestSignalsOnly,
	}, log.Logger)
	results, err := engine.Run(ctx, candles)
	if err != nil {
		return err
	}

	if backtestJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}
	printBacktest(job, len(candles), results)
	return nil
}

func printBacktest(job batch.Job, bars int, r *backtest.Results) {
	fmt.Printf("Backtest %s over %d bars\n", job, bars)
	fmt.Printf("  Trades:        %d (%d wins, %d losses, %d skipped bars)\n", len(r.Trades), r.Wins, r.Losses, r.Skipped)
	fmt.Printf("  Win rate:      %.1f%%\n", r.WinRate*100)
	fmt.Printf("  Total return:  %.2f%%\n", r.TotalReturn*100)
	fmt.Printf("  Max drawdown:  %.2f%%\n", r.MaxDrawdown*100)
	fmt.Printf("  Sharpe/trade:  %.2f\n", r.SharpeRatio)
	fmt.Printf("  Avg leverage:  %.2fx\n", r.AvgLeverage)
	for kind, n := range r.Errors {
		fmt.Printf("  No decision (%s): %d\n", kind, n)
	}
}
