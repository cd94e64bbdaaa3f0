package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/equivet/moverisk/internal/route"
	"github.com/equivet/moverisk/pkg/routing"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Build and inspect road routes for imported movements",
}

var routesBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Query the routing service for every imported movement",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.ListMovements(ctx)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No movements imported.")
			return nil
		}

		client := routing.NewClient(cfg.Routing.BaseURL, cfg.Routing.Profile,
			routing.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Routing.TimeoutSecs) * time.Second}),
			routing.WithRateLimit(cfg.Routing.RatePerSecond, cfg.Routing.Burst),
		)

		built, skipped, err := route.NewBuilder(client).BuildAll(ctx, recs)
		if err != nil {
			return err
		}

		if len(built) > 0 {
			if _, err := st.SaveRoutes(ctx, built); err != nil {
				return err
			}
		}

		zap.L().Info("route build finished",
			zap.Int("built", len(built)),
			zap.Int("skipped", skipped.Total()))
		fmt.Printf("Built %d routes (%d skipped)\n", len(built), skipped.Total())
		for reason, ids := range skipped.ByReason {
			fmt.Printf("  %s: %d\n", reason, len(ids))
		}
		return nil
	},
}

func init() {
	routesCmd.AddCommand(routesBuildCmd)
	rootCmd.AddCommand(routesCmd)
}
