// Package pipeline orchestrates the daily analysis: rasterize zone statuses,
// sample every stored route against its day's grid, normalize the tallies,
// and aggregate percentile summaries.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/equivet/moverisk/internal/grid"
	"github.com/equivet/moverisk/internal/model"
	"github.com/equivet/moverisk/internal/sample"
	"github.com/equivet/moverisk/internal/stats"
	"github.com/equivet/moverisk/internal/store"
)

// Pipeline runs the movement risk analysis over all stored routes.
type Pipeline struct {
	store   store.Store
	spec    grid.Spec
	workers int
}

// Result is the outcome of one analysis run.
type Result struct {
	RunID    string
	Profiles []*model.RouteRiskProfile
	Summary  []model.SummaryRow
	Skipped  *model.SkipReport
	Days     int
}

// New creates a Pipeline. workers bounds how many days are processed
// concurrently; values below 1 mean serial.
func New(st store.Store, spec grid.Spec, workers int) (*Pipeline, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{store: st, spec: spec, workers: workers}, nil
}

// Run analyzes every stored route date and persists profiles and summaries
// under a new run record. Routes that cannot be sampled are skipped and
// reported; they never abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.Int("workers", p.workers))

	zones, err := p.store.ListZones(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load zones")
	}
	dates, err := p.store.RouteDates(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load route dates")
	}
	if len(dates) == 0 {
		return nil, eris.New("pipeline: no routes stored; build routes first")
	}
	log.Info("pipeline: starting analysis",
		zap.Int("days", len(dates)),
		zap.Int("zones", len(zones)))

	run, err := p.store.CreateRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	var (
		mu       sync.Mutex
		buckets  stats.Buckets
		profiles []*model.RouteRiskProfile
		skipped  = &model.SkipReport{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, date := range dates {
		date := date
		g.Go(func() error {
			day, err := p.analyzeDay(gctx, date, zones)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			buckets.Merge(&day.buckets)
			profiles = append(profiles, day.profiles...)
			skipped.Merge(day.skipped)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := stats.Summarize(&buckets)

	if _, err := p.store.SaveProfiles(ctx, run.ID, profiles); err != nil {
		return nil, eris.Wrap(err, "pipeline: save profiles")
	}
	if _, err := p.store.SaveSummaries(ctx, run.ID, summary); err != nil {
		return nil, eris.Wrap(err, "pipeline: save summaries")
	}
	if err := p.store.CompleteRun(ctx, run.ID, len(profiles), skipped); err != nil {
		return nil, eris.Wrap(err, "pipeline: complete run")
	}

	logSkips(log, skipped)
	log.Info("pipeline: analysis finished",
		zap.String("run_id", run.ID),
		zap.Int("routes", len(profiles)),
		zap.Int("skipped", skipped.Total()))

	return &Result{
		RunID:    run.ID,
		Profiles: profiles,
		Summary:  summary,
		Skipped:  skipped,
		Days:     len(dates),
	}, nil
}

type dayResult struct {
	buckets  stats.Buckets
	profiles []*model.RouteRiskProfile
	skipped  *model.SkipReport
}

// analyzeDay rasterizes one day's zone statuses and samples every route
// dated that day against the grid.
func (p *Pipeline) analyzeDay(ctx context.Context, date time.Time, zones []model.Zone) (*dayResult, error) {
	log := zap.L().With(zap.String("date", date.Format("2006-01-02")))

	statuses, err := p.store.DeclarationsForDate(ctx, date)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: declarations for %s", date.Format("2006-01-02"))
	}
	routes, err := p.store.RoutesForDate(ctx, date)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: routes for %s", date.Format("2006-01-02"))
	}

	statusGrid, err := grid.Rasterize(p.spec, date, zones, statuses)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: rasterize %s", date.Format("2006-01-02"))
	}

	day := &dayResult{skipped: &model.SkipReport{}}
	for _, route := range routes {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: day analysis cancelled")
		}

		tally, err := sample.Tally(route, statusGrid)
		if err != nil {
			var unsampleable *sample.UnsampleableRouteError
			if eris.As(err, &unsampleable) {
				log.Warn("pipeline: route not sampleable",
					zap.String("movement_id", route.MovementID),
					zap.Error(err))
				day.skipped.Add(model.SkipUnsampleable, route.MovementID)
				continue
			}
			return nil, eris.Wrapf(err, "pipeline: sample route %s", route.MovementID)
		}

		profile, err := stats.Normalize(route, tally)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: normalize route %s", route.MovementID)
		}
		day.profiles = append(day.profiles, profile)
		day.buckets.Add(profile)
	}

	log.Debug("pipeline: day analyzed",
		zap.Int("routes", len(day.profiles)),
		zap.Int("skipped", day.skipped.Total()))
	return day, nil
}

// logSkips emits one warning per skip reason at the end of a run so skipped
// movements are visible without scanning per-route logs.
func logSkips(log *zap.Logger, report *model.SkipReport) {
	for reason, ids := range report.ByReason {
		log.Warn("pipeline: routes skipped",
			zap.String("reason", string(reason)),
			zap.Int("count", len(ids)),
			zap.Strings("movement_ids", ids))
	}
}
