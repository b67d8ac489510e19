package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"eda-dashboard/internal/models"
	"eda-dashboard/internal/services"
)

var (
	anaGranularity string
	anaTopN        int
	anaBins        int
	anaLogPrice    bool
	anaFormat      string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze an orders file and print the view catalogue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		opts := cfg.EngineOptions()
		if cmd.Flags().Changed("granularity") {
			g := models.Granularity(anaGranularity)
			if g != models.GranularityDay && g != models.GranularityMonth {
				return fmt.Errorf("unsupported --granularity: %s", anaGranularity)
			}
			opts.Granularity = g
		}
		if cmd.Flags().Changed("top-n") {
			opts.TopN = anaTopN
		}
		if cmd.Flags().Changed("bins") {
			opts.Bins = anaBins
		}
		if cmd.Flags().Changed("log-price") {
			opts.LogPrice = anaLogPrice
		}
		opts = opts.Normalize()

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open file: %w", err)
		}
		defer f.Close()

		ingestor := services.NewIngestor(nil)
		ds, err := ingestor.Ingest(context.Background(), f, filepath.Base(path))
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}

		rep := services.NewEngine(nil).Report(ds, opts)

		switch anaFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		case "text":
			fmt.Fprint(cmd.OutOrStdout(), renderText(rep))
			return nil
		default:
			return fmt.Errorf("unsupported --format: %s", anaFormat)
		}
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&anaGranularity, "granularity", string(models.GranularityMonth), "trend bucketing: day or month")
	analyzeCmd.Flags().IntVar(&anaTopN, "top-n", models.DefaultTopN, "how many top products to show (5-20)")
	analyzeCmd.Flags().IntVar(&anaBins, "bins", 0, "histogram bucket override (0 = per-field defaults)")
	analyzeCmd.Flags().BoolVar(&anaLogPrice, "log-price", false, "log10 transform for the price histogram")
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "text", "output format: text or json")
	rootCmd.AddCommand(analyzeCmd)
}
