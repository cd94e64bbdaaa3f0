package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/equivet/moverisk/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect and export analysis runs",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tSTARTED\tFINISHED\tROUTES\tSKIPPED")
		for _, r := range runs {
			finished := "-"
			if r.FinishedAt != nil {
				finished = r.FinishedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
				r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), finished, r.Routes, r.Skipped)
		}
		return w.Flush()
	},
}

var resultsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Re-export the result tables of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runID := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if runID == "latest" {
			runID, err = latestRunID(cmd, st)
			if err != nil {
				return err
			}
		}

		summary, err := st.SummariesForRun(ctx, runID)
		if err != nil {
			return err
		}
		profiles, err := st.ProfilesForRun(ctx, runID)
		if err != nil {
			return err
		}
		if len(summary) == 0 && len(profiles) == 0 {
			fmt.Fprintf(os.Stderr, "Run %s has no stored results.\n", runID)
			return nil
		}
		return writeResults(runID, summary, profiles)
	},
}

func latestRunID(cmd *cobra.Command, st store.Store) (string, error) {
	runs, err := st.ListRuns(cmd.Context(), 1)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("no runs stored")
	}
	return runs[0].ID, nil
}

func init() {
	resultsListCmd.Flags().Int("limit", 20, "maximum runs to list")

	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsExportCmd)
	rootCmd.AddCommand(resultsCmd)
}
