// Package store persists movement records, route geometries, zones, status
// declarations, and analysis results.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/equivet/moverisk/internal/model"
)

// Run records one analysis run.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Routes     int        `json:"routes"`
	Skipped    int        `json:"skipped"`
}

// Store defines the persistence interface for the movement risk pipeline.
// The pipeline core only requires read access to "all routes for date D" and
// "zone statuses for date D"; it does not depend on the backing schema.
type Store interface {
	// Movements
	SaveMovements(ctx context.Context, recs []model.MovementRecord) (int64, error)
	ListMovements(ctx context.Context) ([]model.MovementRecord, error)

	// Routes
	SaveRoutes(ctx context.Context, routes []*model.RouteGeometry) (int64, error)
	RouteDates(ctx context.Context) ([]time.Time, error)
	RoutesForDate(ctx context.Context, date time.Time) ([]*model.RouteGeometry, error)

	// Zones and declarations
	SaveZones(ctx context.Context, zones []model.Zone) (int64, error)
	ListZones(ctx context.Context) ([]model.Zone, error)
	SaveDeclarations(ctx context.Context, decls []model.StatusDeclaration) (int64, error)
	DeclarationsForDate(ctx context.Context, date time.Time) (map[string]model.RiskCategory, error)

	// Results
	CreateRun(ctx context.Context) (*Run, error)
	CompleteRun(ctx context.Context, runID string, routes int, report *model.SkipReport) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	SaveProfiles(ctx context.Context, runID string, profiles []*model.RouteRiskProfile) (int64, error)
	SaveSummaries(ctx context.Context, runID string, rows []model.SummaryRow) (int64, error)
	ProfilesForRun(ctx context.Context, runID string) ([]*model.RouteRiskProfile, error)
	SummariesForRun(ctx context.Context, runID string) ([]model.SummaryRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for the configured driver.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, databaseURL)
	case "sqlite":
		return NewSQLite(databaseURL)
	}
	return nil, eris.Errorf("store: unknown driver %q", driver)
}
