package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eda-dashboard/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "edactl",
	Short: "edactl runs the EDA aggregation engine against a file offline",
	Long:  `edactl ingests an e-commerce orders file (CSV, TSV or XLSX) and prints the same view catalogue the dashboard serves: KPIs, trends, rankings, distributions and correlations.`,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; env EDA_* overrides)")
}

func loadConfig() {
	c, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		c = config.Default()
	}
	cfg = c
}
