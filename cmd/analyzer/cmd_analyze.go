package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/LeverageAdvisor/internal/analysis/market"
	"github.com/Alias1177/LeverageAdvisor/internal/batch"
	"github.com/Alias1177/LeverageAdvisor/internal/trading/risk"
	"github.com/Alias1177/LeverageAdvisor/models"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Recommend leverage for one symbol",
	Long: `Fetch candles for one symbol and print the leverage recommendation.

Examples:
  analyzer analyze --symbol ETH/USD --timeframe 1h
  analyzer analyze --symbol SOL/USD --timeframe 4h --strategy aggressive
  analyzer analyze --symbol ETH/USD --at 2024-03-01T12:00:00Z
  analyzer analyze --symbol ETH/USD --account 5000 --risk 0.01`,
	RunE: runAnalyze,
}

var (
	analyzeSymbol    string
	analyzeTimeframe string
	analyzeStrategy  string
	analyzeAt        string
	analyzeAccount   float64
	analyzeRisk      float64
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeSymbol, "symbol", "", "Symbol to analyze, e.g. ETH/USD")
	analyzeCmd.Flags().StringVar(&analyzeTimeframe, "timeframe", "1h", "Candle timeframe")
	analyzeCmd.Flags().StringVar(&analyzeStrategy, "strategy", "default", "Entry-condition strategy")
	analyzeCmd.Flags().StringVar(&analyzeAt, "at", "", "RFC3339 instant for a point-in-time (backtest) analysis")
	analyzeCmd.Flags().Float64Var(&analyzeAccount, "account", 0, "Account size for position sizing")
	analyzeCmd.Flags().Float64Var(&analyzeRisk, "risk", 0.01, "Fraction of the account risked at the stop")
	analyzeCmd.MarkFlagRequired("symbol")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	mode := market.Realtime()
	if analyzeAt != "" {
		at, err := time.Parse(time.RFC3339, analyzeAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		mode = market.Backtest(at)
	}

	configs, err := loadConfigs()
	if err != nil {
		return err
	}
	client, err := newMarketClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	job := batch.Job{Symbol: analyzeSymbol, Timeframe: analyzeTimeframe, Strategy: analyzeStrategy}
	candles, err := client.GetCandles(ctx, job.Symbol, job.Timeframe, cfg.CandleCount)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	var btcCandles []models.Candle
	if cfg.BTCSymbol != "" && job.Symbol != cfg.BTCSymbol {
		if btcCandles, err = client.GetCandles(ctx, cfg.BTCSymbol, job.Timeframe, cfg.CandleCount); err != nil {
			log.Warn().Err(err).Msg("BTC candles unavailable, using default correlation risk")
		}
	}

	runner := batch.NewRunner(client, configs, batch.Options{
		CandleCount:     cfg.CandleCount,
		BTCSymbol:       cfg.BTCSymbol,
		BTCDropScenario: cfg.BTCDropScenario,
	}, batch.WithLogger(log.Logger))
	ev, err := runner.Evaluate(job, candles, btcCandles, mode)
	if err != nil {
		log.Error().Err(err).Str("error_kind", string(models.KindOf(err))).Msg("Analysis failed")
		return err
	}

	printEvaluation(job, ev)
	if analyzeAccount > 0 {
		rec := ev.Recommendation
		size, err := risk.CalculatePositionSize(analyzeAccount, analyzeRisk,
			rec.MarketConditions.CurrentPrice, rec.StopLossPrice, rec.RecommendedLeverage)
		if err != nil {
			return fmt.Errorf("position sizing: %w", err)
		}
		fmt.Printf("\nPosition: margin %.2f, notional %.2f, quantity %.6f, risk %.2f, liquidation ~%.1f%% away\n",
			size.Margin, size.Notional, size.Quantity, size.RiskAmount, size.LiquidationDist*100)
	}
	return nil
}

func printEvaluation(job batch.Job, ev *batch.Evaluation) {
	rec := ev.Recommendation
	mc := rec.MarketConditions

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Symbol\t%s (%s, %s)\n", job.Symbol, job.Timeframe, job.Strategy)
	fmt.Fprintf(w, "Price\t%.8g at %s\n", mc.CurrentPrice, mc.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Market\t%s / %s, volatility %.4f\n", mc.TrendDirection, mc.MarketPhase, mc.Volatility)
	fmt.Fprintf(w, "Recommended\t%.2fx (max safe %.2fx)\n", rec.RecommendedLeverage, rec.MaxSafeLeverage)
	fmt.Fprintf(w, "Risk/reward\t%.2f\n", rec.RiskRewardRatio)
	fmt.Fprintf(w, "Stop loss\t%.8g\n", rec.StopLossPrice)
	fmt.Fprintf(w, "Take profit\t%.8g\n", rec.TakeProfitPrice)
	fmt.Fprintf(w, "Confidence\t%.0f%%\n", rec.ConfidenceLevel*100)
	fmt.Fprintf(w, "Entry signal\t%t\n", ev.EntrySignal)
	w.Flush()

	fmt.Println("\nReasoning:")
	for _, line := range rec.Reasoning {
		fmt.Printf("  - %s\n", line)
	}
	if len(ev.Anomalies) > 0 {
		fmt.Println("\nAnomalies:")
		for _, a := range ev.Anomalies {
			fmt.Printf("  - [%s] %s %s: %s\n", a.Severity, a.Timestamp.Format(time.RFC3339), a.Type, a.Description)
		}
	}
}
