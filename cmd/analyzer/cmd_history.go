package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alias1177/LeverageAdvisor/internal/database"
	"github.com/Alias1177/LeverageAdvisor/models"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored analyses",
	Long: `List the most recent analysis records of one symbol from DATABASE_URL.

Examples:
  analyzer history --symbol ETH/USD
  analyzer history --symbol ETH/USD --limit 5`,
	RunE: runHistory,
}

var (
	historySymbol string
	historyLimit  int
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historySymbol, "symbol", "", "Symbol to list")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum records")
	historyCmd.MarkFlagRequired("symbol")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := database.New(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	records, err := db.LatestAnalyses(cmd.Context(), historySymbol, historyLimit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		at := rec.CreatedAt.Format(time.RFC3339)
		if rec.Status == models.StatusFailed {
			fmt.Printf("%s  %-10s %-4s %-10s failed %s\n", at, rec.Symbol, rec.Timeframe, rec.Strategy, rec.ErrorKind)
			continue
		}
		fmt.Printf("%s  %-10s %-4s %-10s %5.2fx conf %3.0f%% entry=%t\n",
			at, rec.Symbol, rec.Timeframe, rec.Strategy, rec.RecommendedLeverage, rec.ConfidenceLevel*100, rec.EntrySignal)
	}
	return nil
}
