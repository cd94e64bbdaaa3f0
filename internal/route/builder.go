package route

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/equivet/moverisk/internal/model"
	"github.com/equivet/moverisk/pkg/routing"
)

// Builder derives route geometries from movement records through the routing
// collaborator.
type Builder struct {
	client routing.Client
}

// NewBuilder creates a Builder.
func NewBuilder(client routing.Client) *Builder {
	return &Builder{client: client}
}

// Build resolves one movement record into a RouteGeometry. The returned
// geometry carries the record's date and headcount unchanged.
func (b *Builder) Build(ctx context.Context, rec model.MovementRecord) (*model.RouteGeometry, error) {
	path, err := b.client.Route(ctx, rec.Origin, rec.Destination)
	if err != nil {
		return nil, eris.Wrapf(err, "route: build %s", rec.ID)
	}

	if path.DistanceM/1000 < path.CrowKM {
		zap.L().Warn("route: road distance below crow-flight distance",
			zap.String("movement_id", rec.ID),
			zap.Float64("distance_km", path.DistanceM/1000),
			zap.Float64("crow_km", path.CrowKM),
		)
	}

	return &model.RouteGeometry{
		MovementID: rec.ID,
		Date:       model.Day(rec.Date),
		HeadCount:  rec.HeadCount,
		DistanceM:  path.DistanceM,
		DurationS:  path.DurationS,
		Path:       path.Geometry,
	}, nil
}

// BuildAll resolves every record, isolating per-record failures: a record
// with no resolvable path is skipped and recorded in the report, never
// aborting the rest of the batch. Context cancellation does abort.
func (b *Builder) BuildAll(ctx context.Context, recs []model.MovementRecord) ([]*model.RouteGeometry, *model.SkipReport, error) {
	report := model.NewSkipReport()
	routes := make([]*model.RouteGeometry, 0, len(recs))

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, nil, eris.Wrap(err, "route: build all")
		}

		rg, err := b.Build(ctx, rec)
		if err != nil {
			reason := model.SkipRoutingError
			if eris.Is(err, routing.ErrNoRoute) {
				reason = model.SkipNoRoute
			}
			report.Add(reason, rec.ID)
			zap.L().Warn("route: skipping movement",
				zap.String("movement_id", rec.ID),
				zap.String("reason", string(reason)),
				zap.Error(err),
			)
			continue
		}
		routes = append(routes, rg)
	}

	zap.L().Info("route: build complete",
		zap.Int("movements", len(recs)),
		zap.Int("routes", len(routes)),
		zap.Int("skipped", report.Total()),
	)
	return routes, report, nil
}
