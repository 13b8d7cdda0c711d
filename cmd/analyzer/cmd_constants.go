package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var constantsCmd = &cobra.Command{
	Use:   "constants",
	Short: "Print the adjusted constants for a timeframe and category",
	Long: `Resolve the constants document with its defaults and apply the timeframe and
asset-category adjustments, printing the bundle an engine would be built from.

Examples:
  analyzer constants --timeframe 15m
  analyzer constants --timeframe 4h --category meme`,
	RunE: runConstants,
}

var (
	constantsTimeframe string
	constantsCategory  string
)

func init() {
	rootCmd.AddCommand(constantsCmd)

	constantsCmd.Flags().StringVar(&constantsTimeframe, "timeframe", "1h", "Timeframe adjustment to apply")
	constantsCmd.Flags().StringVar(&constantsCategory, "category", "", "Asset category adjustment to apply")
}

func runConstants(cmd *cobra.Command, args []string) error {
	configs, err := loadConfigs()
	if err != nil {
		return err
	}
	c, err := configs.GetAdjustedConstants(constantsTimeframe, constantsCategory)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(c)
}
