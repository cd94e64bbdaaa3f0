package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/equivet/moverisk/internal/db"
	"github.com/equivet/moverisk/internal/model"
)

// PostgresStore implements Store on PostGIS. Geometries are stored as
// SRID-4326 geometry columns and moved over the wire as EWKB.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS risk;

CREATE TABLE IF NOT EXISTS risk.movements (
	id          TEXT PRIMARY KEY,
	origin_lon  DOUBLE PRECISION NOT NULL,
	origin_lat  DOUBLE PRECISION NOT NULL,
	dest_lon    DOUBLE PRECISION NOT NULL,
	dest_lat    DOUBLE PRECISION NOT NULL,
	date        DATE NOT NULL,
	head_count  INTEGER NOT NULL CHECK (head_count > 0)
);

CREATE TABLE IF NOT EXISTS risk.routes (
	movement_id TEXT PRIMARY KEY REFERENCES risk.movements(id),
	date        DATE NOT NULL,
	head_count  INTEGER NOT NULL,
	distance_m  DOUBLE PRECISION NOT NULL,
	duration_s  DOUBLE PRECISION NOT NULL,
	geom        geometry(LineString, 4326) NOT NULL
);

CREATE TABLE IF NOT EXISTS risk.zones (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	geom geometry(MultiPolygon, 4326) NOT NULL
);

CREATE TABLE IF NOT EXISTS risk.declarations (
	zone_id  TEXT NOT NULL REFERENCES risk.zones(id),
	date     DATE NOT NULL,
	category TEXT NOT NULL CHECK (category IN ('low', 'high', 'partial')),
	PRIMARY KEY (zone_id, date)
);

CREATE TABLE IF NOT EXISTS risk.runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	routes      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	skip_report JSONB
);

CREATE TABLE IF NOT EXISTS risk.profiles (
	run_id      TEXT NOT NULL REFERENCES risk.runs(id),
	movement_id TEXT NOT NULL,
	date        DATE NOT NULL,
	head_count  INTEGER NOT NULL,
	samples     INTEGER NOT NULL,
	low         DOUBLE PRECISION NOT NULL,
	high        DOUBLE PRECISION NOT NULL,
	partial     DOUBLE PRECISION NOT NULL,
	unknown     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, movement_id)
);

CREATE TABLE IF NOT EXISTS risk.summaries (
	run_id   TEXT NOT NULL REFERENCES risk.runs(id),
	bucket   TEXT NOT NULL,
	category TEXT NOT NULL,
	routes   INTEGER NOT NULL,
	p2_5     DOUBLE PRECISION NOT NULL,
	p50      DOUBLE PRECISION NOT NULL,
	p95      DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, bucket, category)
);

CREATE INDEX IF NOT EXISTS idx_routes_date ON risk.routes(date);
CREATE INDEX IF NOT EXISTS idx_declarations_date ON risk.declarations(date);
CREATE INDEX IF NOT EXISTS idx_profiles_date ON risk.profiles(date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) SaveMovements(ctx context.Context, recs []model.MovementRecord) (int64, error) {
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = []any{r.ID, r.Origin.Lon, r.Origin.Lat, r.Destination.Lon, r.Destination.Lat, r.Date, r.HeadCount}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "risk.movements",
		Columns:      []string{"id", "origin_lon", "origin_lat", "dest_lon", "dest_lat", "date", "head_count"},
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: save movements")
}

func (s *PostgresStore) ListMovements(ctx context.Context) ([]model.MovementRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, origin_lon, origin_lat, dest_lon, dest_lat, date, head_count FROM risk.movements ORDER BY date, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list movements")
	}
	defer rows.Close()

	var out []model.MovementRecord
	for rows.Next() {
		var r model.MovementRecord
		if err := rows.Scan(&r.ID, &r.Origin.Lon, &r.Origin.Lat, &r.Destination.Lon, &r.Destination.Lat, &r.Date, &r.HeadCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan movement")
		}
		r.Date = model.Day(r.Date)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate movements")
}

func (s *PostgresStore) SaveRoutes(ctx context.Context, routes []*model.RouteGeometry) (int64, error) {
	rows := make([][]any, 0, len(routes))
	for _, r := range routes {
		wkb, err := ewkb.Marshal(r.Path.SetSRID(4326), ewkb.NDR)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: encode route %s", r.MovementID)
		}
		rows = append(rows, []any{r.MovementID, r.Date, r.HeadCount, r.DistanceM, r.DurationS, wkb})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "risk.routes",
		Columns:      []string{"movement_id", "date", "head_count", "distance_m", "duration_s", "geom"},
		ConflictKeys: []string{"movement_id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: save routes")
}

func (s *PostgresStore) RouteDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT date FROM risk.routes ORDER BY date`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: route dates")
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "postgres: scan route date")
		}
		out = append(out, model.Day(d))
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate route dates")
}

func (s *PostgresStore) RoutesForDate(ctx context.Context, date time.Time) ([]*model.RouteGeometry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT movement_id, date, head_count, distance_m, duration_s, ST_AsEWKB(geom) FROM risk.routes WHERE date = $1 ORDER BY movement_id`,
		model.Day(date))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: routes for date")
	}
	defer rows.Close()

	var out []*model.RouteGeometry
	for rows.Next() {
		var r model.RouteGeometry
		var wkb []byte
		if err := rows.Scan(&r.MovementID, &r.Date, &r.HeadCount, &r.DistanceM, &r.DurationS, &wkb); err != nil {
			return nil, eris.Wrap(err, "postgres: scan route")
		}
		r.Date = model.Day(r.Date)
		g, err := ewkb.Unmarshal(wkb)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: decode route %s", r.MovementID)
		}
		ls, ok := g.(*geom.LineString)
		if !ok {
			return nil, eris.Errorf("postgres: route %s has geometry type %T", r.MovementID, g)
		}
		r.Path = ls
		out = append(out, &r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate routes")
}

func (s *PostgresStore) SaveZones(ctx context.Context, zones []model.Zone) (int64, error) {
	rows := make([][]any, 0, len(zones))
	for _, z := range zones {
		wkb, err := ewkb.Marshal(z.Geom.SetSRID(4326), ewkb.NDR)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: encode zone %s", z.ID)
		}
		rows = append(rows, []any{z.ID, z.Name, wkb})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "risk.zones",
		Columns:      []string{"id", "name", "geom"},
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: save zones")
}

func (s *PostgresStore) ListZones(ctx context.Context) ([]model.Zone, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, ST_AsEWKB(geom) FROM risk.zones ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list zones")
	}
	defer rows.Close()

	var out []model.Zone
	for rows.Next() {
		var z model.Zone
		var wkb []byte
		if err := rows.Scan(&z.ID, &z.Name, &wkb); err != nil {
			return nil, eris.Wrap(err, "postgres: scan zone")
		}
		g, err := ewkb.Unmarshal(wkb)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: decode zone %s", z.ID)
		}
		mp, ok := g.(*geom.MultiPolygon)
		if !ok {
			return nil, eris.Errorf("postgres: zone %s has geometry type %T", z.ID, g)
		}
		z.Geom = mp
		out = append(out, z)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate zones")
}

func (s *PostgresStore) SaveDeclarations(ctx context.Context, decls []model.StatusDeclaration) (int64, error) {
	rows := make([][]any, len(decls))
	for i, d := range decls {
		rows[i] = []any{d.ZoneID, model.Day(d.Date), string(d.Category)}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "risk.declarations",
		Columns:      []string{"zone_id", "date", "category"},
		ConflictKeys: []string{"zone_id", "date"},
	}, rows)
	return n, eris.Wrap(err, "postgres: save declarations")
}

func (s *PostgresStore) DeclarationsForDate(ctx context.Context, date time.Time) (map[string]model.RiskCategory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT zone_id, category FROM risk.declarations WHERE date = $1`, model.Day(date))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: declarations for date")
	}
	defer rows.Close()

	out := make(map[string]model.RiskCategory)
	for rows.Next() {
		var zoneID, category string
		if err := rows.Scan(&zoneID, &category); err != nil {
			return nil, eris.Wrap(err, "postgres: scan declaration")
		}
		out[zoneID] = model.RiskCategory(category)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate declarations")
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*Run, error) {
	run := &Run{ID: uuid.New().String(), StartedAt: time.Now().UTC()}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO risk.runs (id, started_at) VALUES ($1, $2)`, run.ID, run.StartedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, routes int, report *model.SkipReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal skip report")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE risk.runs SET finished_at = $1, routes = $2, skipped = $3, skip_report = $4 WHERE id = $5`,
		time.Now().UTC(), routes, report.Total(), reportJSON, runID)
	return eris.Wrapf(err, "postgres: complete run %s", runID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, finished_at, routes, skipped FROM risk.runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Routes, &r.Skipped); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) SaveProfiles(ctx context.Context, runID string, profiles []*model.RouteRiskProfile) (int64, error) {
	rows := make([][]any, len(profiles))
	for i, p := range profiles {
		rows[i] = []any{
			runID, p.MovementID, p.Date, p.HeadCount, p.Samples,
			p.Proportion(model.CategoryLow),
			p.Proportion(model.CategoryHigh),
			p.Proportion(model.CategoryPartial),
			p.Proportion(model.CategoryUnknown),
		}
	}
	n, err := db.CopyFromSchema(ctx, s.pool, "risk", "profiles",
		[]string{"run_id", "movement_id", "date", "head_count", "samples", "low", "high", "partial", "unknown"}, rows)
	return n, eris.Wrap(err, "postgres: save profiles")
}

func (s *PostgresStore) ProfilesForRun(ctx context.Context, runID string) ([]*model.RouteRiskProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT movement_id, date, head_count, samples, low, high, partial, unknown
		 FROM risk.profiles WHERE run_id = $1 ORDER BY date, movement_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: profiles for run")
	}
	defer rows.Close()

	var out []*model.RouteRiskProfile
	for rows.Next() {
		p := &model.RouteRiskProfile{Proportions: make(map[model.RiskCategory]float64, 4)}
		var low, high, partial, unknown float64
		if err := rows.Scan(&p.MovementID, &p.Date, &p.HeadCount, &p.Samples, &low, &high, &partial, &unknown); err != nil {
			return nil, eris.Wrap(err, "postgres: scan profile")
		}
		p.Date = model.Day(p.Date)
		p.Proportions[model.CategoryLow] = low
		p.Proportions[model.CategoryHigh] = high
		p.Proportions[model.CategoryPartial] = partial
		p.Proportions[model.CategoryUnknown] = unknown
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate profiles")
}

func (s *PostgresStore) SummariesForRun(ctx context.Context, runID string) ([]model.SummaryRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT bucket, category, routes, p2_5, p50, p95 FROM risk.summaries WHERE run_id = $1 ORDER BY bucket, category`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summaries for run")
	}
	defer rows.Close()

	var out []model.SummaryRow
	for rows.Next() {
		var r model.SummaryRow
		var category string
		if err := rows.Scan(&r.Bucket, &category, &r.Routes, &r.P2_5, &r.P50, &r.P95); err != nil {
			return nil, eris.Wrap(err, "postgres: scan summary")
		}
		r.Category = model.RiskCategory(category)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate summaries")
}

func (s *PostgresStore) SaveSummaries(ctx context.Context, runID string, summaryRows []model.SummaryRow) (int64, error) {
	rows := make([][]any, len(summaryRows))
	for i, r := range summaryRows {
		rows[i] = []any{runID, r.Bucket, string(r.Category), r.Routes, r.P2_5, r.P50, r.P95}
	}
	n, err := db.CopyFromSchema(ctx, s.pool, "risk", "summaries",
		[]string{"run_id", "bucket", "category", "routes", "p2_5", "p50", "p95"}, rows)
	return n, eris.Wrap(err, "postgres: save summaries")
}
