package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/equivet/moverisk/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "moverisk",
	Short: "Equine movement risk analysis pipeline",
	Long:  "Builds road routes for recorded horse movements, rasterizes daily disease-risk zone statuses onto a grid, samples each route against its day's grid, and aggregates risk-category proportions into percentile summaries.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
