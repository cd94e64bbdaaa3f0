package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	_ "modernc.org/sqlite"

	"github.com/equivet/moverisk/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Geometries are kept
// as EWKB blobs so the postgres and sqlite backends share one encoding.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS movements (
	id         TEXT PRIMARY KEY,
	origin_lon REAL NOT NULL,
	origin_lat REAL NOT NULL,
	dest_lon   REAL NOT NULL,
	dest_lat   REAL NOT NULL,
	date       TEXT NOT NULL,
	head_count INTEGER NOT NULL CHECK (head_count > 0)
);

CREATE TABLE IF NOT EXISTS routes (
	movement_id TEXT PRIMARY KEY REFERENCES movements(id),
	date        TEXT NOT NULL,
	head_count  INTEGER NOT NULL,
	distance_m  REAL NOT NULL,
	duration_s  REAL NOT NULL,
	geom        BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS zones (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	geom BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS declarations (
	zone_id  TEXT NOT NULL REFERENCES zones(id),
	date     TEXT NOT NULL,
	category TEXT NOT NULL CHECK (category IN ('low', 'high', 'partial')),
	PRIMARY KEY (zone_id, date)
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	routes      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	skip_report TEXT
);

CREATE TABLE IF NOT EXISTS profiles (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	movement_id TEXT NOT NULL,
	date        TEXT NOT NULL,
	head_count  INTEGER NOT NULL,
	samples     INTEGER NOT NULL,
	low         REAL NOT NULL,
	high        REAL NOT NULL,
	partial     REAL NOT NULL,
	unknown     REAL NOT NULL,
	PRIMARY KEY (run_id, movement_id)
);

CREATE TABLE IF NOT EXISTS summaries (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	bucket   TEXT NOT NULL,
	category TEXT NOT NULL,
	routes   INTEGER NOT NULL,
	p2_5     REAL NOT NULL,
	p50      REAL NOT NULL,
	p95      REAL NOT NULL,
	PRIMARY KEY (run_id, bucket, category)
);

CREATE INDEX IF NOT EXISTS idx_routes_date ON routes(date);
CREATE INDEX IF NOT EXISTS idx_declarations_date ON declarations(date);
CREATE INDEX IF NOT EXISTS idx_profiles_date ON profiles(date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const dayFormat = "2006-01-02"

func formatDay(t time.Time) string {
	return model.Day(t).Format(dayFormat)
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(dayFormat, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse date %q", s)
	}
	return t, nil
}

// execBatch runs one statement per row inside a single transaction.
func (s *SQLiteStore) execBatch(ctx context.Context, query string, rows [][]any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare")
	}
	defer stmt.Close()

	var n int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrap(err, "sqlite: exec batch row")
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return n, nil
}

func (s *SQLiteStore) SaveMovements(ctx context.Context, recs []model.MovementRecord) (int64, error) {
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = []any{r.ID, r.Origin.Lon, r.Origin.Lat, r.Destination.Lon, r.Destination.Lat, formatDay(r.Date), r.HeadCount}
	}
	n, err := s.execBatch(ctx,
		`INSERT INTO movements (id, origin_lon, origin_lat, dest_lon, dest_lat, date, head_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			origin_lon = excluded.origin_lon, origin_lat = excluded.origin_lat,
			dest_lon = excluded.dest_lon, dest_lat = excluded.dest_lat,
			date = excluded.date, head_count = excluded.head_count`,
		rows)
	return n, eris.Wrap(err, "sqlite: save movements")
}

func (s *SQLiteStore) ListMovements(ctx context.Context) ([]model.MovementRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, origin_lon, origin_lat, dest_lon, dest_lat, date, head_count FROM movements ORDER BY date, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list movements")
	}
	defer rows.Close()

	var out []model.MovementRecord
	for rows.Next() {
		var r model.MovementRecord
		var day string
		if err := rows.Scan(&r.ID, &r.Origin.Lon, &r.Origin.Lat, &r.Destination.Lon, &r.Destination.Lat, &day, &r.HeadCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan movement")
		}
		if r.Date, err = parseDay(day); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate movements")
}

func (s *SQLiteStore) SaveRoutes(ctx context.Context, routes []*model.RouteGeometry) (int64, error) {
	rows := make([][]any, 0, len(routes))
	for _, r := range routes {
		wkb, err := ewkb.Marshal(r.Path.SetSRID(4326), ewkb.NDR)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: encode route %s", r.MovementID)
		}
		rows = append(rows, []any{r.MovementID, formatDay(r.Date), r.HeadCount, r.DistanceM, r.DurationS, wkb})
	}
	n, err := s.execBatch(ctx,
		`INSERT INTO routes (movement_id, date, head_count, distance_m, duration_s, geom)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (movement_id) DO UPDATE SET
			date = excluded.date, head_count = excluded.head_count,
			distance_m = excluded.distance_m, duration_s = excluded.duration_s,
			geom = excluded.geom`,
		rows)
	return n, eris.Wrap(err, "sqlite: save routes")
}

func (s *SQLiteStore) RouteDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT date FROM routes ORDER BY date`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: route dates")
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan route date")
		}
		d, err := parseDay(day)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate route dates")
}

func (s *SQLiteStore) RoutesForDate(ctx context.Context, date time.Time) ([]*model.RouteGeometry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT movement_id, date, head_count, distance_m, duration_s, geom FROM routes WHERE date = ? ORDER BY movement_id`,
		formatDay(date))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: routes for date")
	}
	defer rows.Close()

	var out []*model.RouteGeometry
	for rows.Next() {
		var r model.RouteGeometry
		var day string
		var wkb []byte
		if err := rows.Scan(&r.MovementID, &day, &r.HeadCount, &r.DistanceM, &r.DurationS, &wkb); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan route")
		}
		if r.Date, err = parseDay(day); err != nil {
			return nil, err
		}
		g, err := ewkb.Unmarshal(wkb)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode route %s", r.MovementID)
		}
		ls, ok := g.(*geom.LineString)
		if !ok {
			return nil, eris.Errorf("sqlite: route %s has geometry type %T", r.MovementID, g)
		}
		r.Path = ls
		out = append(out, &r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate routes")
}

func (s *SQLiteStore) SaveZones(ctx context.Context, zones []model.Zone) (int64, error) {
	rows := make([][]any, 0, len(zones))
	for _, z := range zones {
		wkb, err := ewkb.Marshal(z.Geom.SetSRID(4326), ewkb.NDR)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: encode zone %s", z.ID)
		}
		rows = append(rows, []any{z.ID, z.Name, wkb})
	}
	n, err := s.execBatch(ctx,
		`INSERT INTO zones (id, name, geom) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, geom = excluded.geom`,
		rows)
	return n, eris.Wrap(err, "sqlite: save zones")
}

func (s *SQLiteStore) ListZones(ctx context.Context) ([]model.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, geom FROM zones ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list zones")
	}
	defer rows.Close()

	var out []model.Zone
	for rows.Next() {
		var z model.Zone
		var wkb []byte
		if err := rows.Scan(&z.ID, &z.Name, &wkb); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zone")
		}
		g, err := ewkb.Unmarshal(wkb)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode zone %s", z.ID)
		}
		mp, ok := g.(*geom.MultiPolygon)
		if !ok {
			return nil, eris.Errorf("sqlite: zone %s has geometry type %T", z.ID, g)
		}
		z.Geom = mp
		out = append(out, z)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate zones")
}

func (s *SQLiteStore) SaveDeclarations(ctx context.Context, decls []model.StatusDeclaration) (int64, error) {
	rows := make([][]any, len(decls))
	for i, d := range decls {
		rows[i] = []any{d.ZoneID, formatDay(d.Date), string(d.Category)}
	}
	n, err := s.execBatch(ctx,
		`INSERT INTO declarations (zone_id, date, category) VALUES (?, ?, ?)
		 ON CONFLICT (zone_id, date) DO UPDATE SET category = excluded.category`,
		rows)
	return n, eris.Wrap(err, "sqlite: save declarations")
}

func (s *SQLiteStore) DeclarationsForDate(ctx context.Context, date time.Time) (map[string]model.RiskCategory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT zone_id, category FROM declarations WHERE date = ?`, formatDay(date))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: declarations for date")
	}
	defer rows.Close()

	out := make(map[string]model.RiskCategory)
	for rows.Next() {
		var zoneID, category string
		if err := rows.Scan(&zoneID, &category); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan declaration")
		}
		out[zoneID] = model.RiskCategory(category)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate declarations")
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*Run, error) {
	run := &Run{ID: uuid.New().String(), StartedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`, run.ID, run.StartedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, routes int, report *model.SkipReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal skip report")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, routes = ?, skipped = ?, skip_report = ? WHERE id = ?`,
		time.Now().UTC(), routes, report.Total(), string(reportJSON), runID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, routes, skipped FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Routes, &r.Skipped); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) SaveProfiles(ctx context.Context, runID string, profiles []*model.RouteRiskProfile) (int64, error) {
	rows := make([][]any, len(profiles))
	for i, p := range profiles {
		rows[i] = []any{
			runID, p.MovementID, formatDay(p.Date), p.HeadCount, p.Samples,
			p.Proportion(model.CategoryLow),
			p.Proportion(model.CategoryHigh),
			p.Proportion(model.CategoryPartial),
			p.Proportion(model.CategoryUnknown),
		}
	}
	n, err := s.execBatch(ctx,
		`INSERT INTO profiles (run_id, movement_id, date, head_count, samples, low, high, partial, unknown)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rows)
	return n, eris.Wrap(err, "sqlite: save profiles")
}

func (s *SQLiteStore) ProfilesForRun(ctx context.Context, runID string) ([]*model.RouteRiskProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT movement_id, date, head_count, samples, low, high, partial, unknown
		 FROM profiles WHERE run_id = ? ORDER BY date, movement_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: profiles for run")
	}
	defer rows.Close()

	var out []*model.RouteRiskProfile
	for rows.Next() {
		p := &model.RouteRiskProfile{Proportions: make(map[model.RiskCategory]float64, 4)}
		var day string
		var low, high, partial, unknown float64
		if err := rows.Scan(&p.MovementID, &day, &p.HeadCount, &p.Samples, &low, &high, &partial, &unknown); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan profile")
		}
		if p.Date, err = parseDay(day); err != nil {
			return nil, err
		}
		p.Proportions[model.CategoryLow] = low
		p.Proportions[model.CategoryHigh] = high
		p.Proportions[model.CategoryPartial] = partial
		p.Proportions[model.CategoryUnknown] = unknown
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate profiles")
}

func (s *SQLiteStore) SaveSummaries(ctx context.Context, runID string, summaryRows []model.SummaryRow) (int64, error) {
	rows := make([][]any, len(summaryRows))
	for i, r := range summaryRows {
		rows[i] = []any{runID, r.Bucket, string(r.Category), r.Routes, r.P2_5, r.P50, r.P95}
	}
	n, err := s.execBatch(ctx,
		`INSERT INTO summaries (run_id, bucket, category, routes, p2_5, p50, p95)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rows)
	return n, eris.Wrap(err, "sqlite: save summaries")
}

func (s *SQLiteStore) SummariesForRun(ctx context.Context, runID string) ([]model.SummaryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bucket, category, routes, p2_5, p50, p95 FROM summaries WHERE run_id = ? ORDER BY bucket, category`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summaries for run")
	}
	defer rows.Close()

	var out []model.SummaryRow
	for rows.Next() {
		var r model.SummaryRow
		var category string
		if err := rows.Scan(&r.Bucket, &category, &r.Routes, &r.P2_5, &r.P50, &r.P95); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan summary")
		}
		r.Category = model.RiskCategory(category)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate summaries")
}
