package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/equivet/moverisk/internal/export"
	"github.com/equivet/moverisk/internal/model"
	"github.com/equivet/moverisk/internal/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Sample every stored route against its day's risk grid",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		workers, _ := cmd.Flags().GetInt("workers")
		if workers <= 0 {
			workers = cfg.Analyze.Workers
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		p, err := pipeline.New(st, gridSpec(), workers)
		if err != nil {
			return err
		}

		result, err := p.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Run %s: %d routes analyzed over %d days (%d skipped)\n",
			result.RunID, len(result.Profiles), result.Days, result.Skipped.Total())
		for reason, ids := range result.Skipped.ByReason {
			fmt.Printf("  %s: %d\n", reason, len(ids))
		}

		if skipExport, _ := cmd.Flags().GetBool("no-export"); skipExport {
			return nil
		}
		return writeResults(result.RunID, result.Summary, result.Profiles)
	},
}

// writeResults writes the summary and per-route tables into the export
// directory in the configured format.
func writeResults(runID string, summary []model.SummaryRow, profiles []*model.RouteRiskProfile) error {
	if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
		return eris.Wrapf(err, "create export dir %s", cfg.Export.Dir)
	}

	switch cfg.Export.Format {
	case "xlsx":
		path := filepath.Join(cfg.Export.Dir, fmt.Sprintf("results_%s.xlsx", runID))
		if err := export.WriteWorkbook(path, summary, profiles); err != nil {
			return err
		}
		fmt.Printf("Results written to %s\n", path)
		return nil
	case "csv":
		summaryPath := filepath.Join(cfg.Export.Dir, fmt.Sprintf("summary_%s.csv", runID))
		sf, err := os.Create(summaryPath)
		if err != nil {
			return eris.Wrapf(err, "create %s", summaryPath)
		}
		defer sf.Close()
		if err := export.WriteSummaryCSV(sf, summary); err != nil {
			return err
		}

		routesPath := filepath.Join(cfg.Export.Dir, fmt.Sprintf("routes_%s.csv", runID))
		rf, err := os.Create(routesPath)
		if err != nil {
			return eris.Wrapf(err, "create %s", routesPath)
		}
		defer rf.Close()
		if err := export.WriteProfilesCSV(rf, profiles); err != nil {
			return err
		}
		fmt.Printf("Results written to %s and %s\n", summaryPath, routesPath)
		return nil
	}
	return eris.Errorf("unsupported export format: %s", cfg.Export.Format)
}

func init() {
	analyzeCmd.Flags().Int("workers", 0, "days processed in parallel (default from config)")
	analyzeCmd.Flags().Bool("no-export", false, "skip writing result tables")
	rootCmd.AddCommand(analyzeCmd)
}
