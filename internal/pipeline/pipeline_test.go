package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/equivet/moverisk/internal/grid"
	"github.com/equivet/moverisk/internal/model"
	"github.com/equivet/moverisk/internal/stats"
	"github.com/equivet/moverisk/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// memStore is an in-memory Store for pipeline tests.
type memStore struct {
	zones        []model.Zone
	routes       map[string][]*model.RouteGeometry      // day key -> routes
	declarations map[string]map[string]model.RiskCategory // day key -> zone -> category

	savedProfiles  []*model.RouteRiskProfile
	savedSummaries []model.SummaryRow
	completedRuns  int
	lastRunRoutes  int
	lastSkipReport *model.SkipReport
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

func (m *memStore) SaveMovements(context.Context, []model.MovementRecord) (int64, error) {
	return 0, nil
}
func (m *memStore) ListMovements(context.Context) ([]model.MovementRecord, error) { return nil, nil }
func (m *memStore) SaveRoutes(context.Context, []*model.RouteGeometry) (int64, error) {
	return 0, nil
}

func (m *memStore) RouteDates(context.Context) ([]time.Time, error) {
	var out []time.Time
	for k := range m.routes {
		d, err := time.Parse("2006-01-02", k)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *memStore) RoutesForDate(_ context.Context, date time.Time) ([]*model.RouteGeometry, error) {
	return m.routes[dayKey(date)], nil
}

func (m *memStore) SaveZones(context.Context, []model.Zone) (int64, error) { return 0, nil }
func (m *memStore) ListZones(context.Context) ([]model.Zone, error)        { return m.zones, nil }
func (m *memStore) SaveDeclarations(context.Context, []model.StatusDeclaration) (int64, error) {
	return 0, nil
}

func (m *memStore) DeclarationsForDate(_ context.Context, date time.Time) (map[string]model.RiskCategory, error) {
	return m.declarations[dayKey(date)], nil
}

func (m *memStore) CreateRun(context.Context) (*store.Run, error) {
	return &store.Run{ID: "run-test", StartedAt: time.Now().UTC()}, nil
}

func (m *memStore) CompleteRun(_ context.Context, _ string, routes int, report *model.SkipReport) error {
	m.completedRuns++
	m.lastRunRoutes = routes
	m.lastSkipReport = report
	return nil
}

func (m *memStore) ListRuns(context.Context, int) ([]store.Run, error) { return nil, nil }

func (m *memStore) SaveProfiles(_ context.Context, _ string, profiles []*model.RouteRiskProfile) (int64, error) {
	m.savedProfiles = append(m.savedProfiles, profiles...)
	return int64(len(profiles)), nil
}

func (m *memStore) SaveSummaries(_ context.Context, _ string, rows []model.SummaryRow) (int64, error) {
	m.savedSummaries = append(m.savedSummaries, rows...)
	return int64(len(rows)), nil
}

func (m *memStore) ProfilesForRun(context.Context, string) ([]*model.RouteRiskProfile, error) {
	return m.savedProfiles, nil
}

func (m *memStore) SummariesForRun(context.Context, string) ([]model.SummaryRow, error) {
	return m.savedSummaries, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

var _ store.Store = (*memStore)(nil)

// testSpec covers a 10x10 grid of one-degree-ish unit cells.
var testSpec = grid.Spec{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10, CellDeg: 1}

func squareZone(id string, minX, minY, maxX, maxY float64) model.Zone {
	return model.Zone{
		ID: id,
		Geom: geom.NewMultiPolygonFlat(geom.XY,
			[]float64{minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY},
			[][]int{{10}}),
	}
}

func lineRoute(id string, date time.Time, coords ...float64) *model.RouteGeometry {
	return &model.RouteGeometry{
		MovementID: id,
		Date:       date,
		HeadCount:  1,
		Path:       geom.NewLineStringFlat(geom.XY, coords),
	}
}

func TestPipelineRun(t *testing.T) {
	april := time.Date(2019, 4, 12, 0, 0, 0, 0, time.UTC)
	may := time.Date(2019, 5, 3, 0, 0, 0, 0, time.UTC)

	st := &memStore{
		zones: []model.Zone{squareZone("Z1", 0, 0, 5, 5)},
		routes: map[string][]*model.RouteGeometry{
			dayKey(april): {
				// Crosses the declared zone horizontally.
				lineRoute("mv-1", april, 0.5, 2.5, 4.5, 2.5),
				// Empty path: unsampleable, must be skipped, not fatal.
				{MovementID: "mv-2", Date: april, HeadCount: 1, Path: geom.NewLineStringFlat(geom.XY, nil)},
			},
			dayKey(may): {
				// Z1 has no declaration in May: cells read as unknown.
				lineRoute("mv-3", may, 0.5, 2.5, 2.5, 2.5),
			},
		},
		declarations: map[string]map[string]model.RiskCategory{
			dayKey(april): {"Z1": model.CategoryHigh},
		},
	}

	p, err := New(st, testSpec, 2)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Days)
	require.Len(t, result.Profiles, 2)
	assert.Equal(t, 2, st.lastRunRoutes)
	assert.Equal(t, 1, st.completedRuns)

	// The April route runs entirely inside the declared high zone.
	byID := make(map[string]*model.RouteRiskProfile, len(result.Profiles))
	for _, p := range result.Profiles {
		byID[p.MovementID] = p
	}
	require.Contains(t, byID, "mv-1")
	assert.Equal(t, 1.0, byID["mv-1"].Proportion(model.CategoryHigh))

	// The May route sees only undeclared cells.
	require.Contains(t, byID, "mv-3")
	assert.Equal(t, 1.0, byID["mv-3"].Proportion(model.CategoryUnknown))

	// The empty route was skipped and reported, not fatal.
	require.NotNil(t, result.Skipped)
	assert.Equal(t, []string{"mv-2"}, result.Skipped.ByReason[model.SkipUnsampleable])
	assert.Equal(t, result.Skipped.Total(), st.lastSkipReport.Total())

	// Summary covers annual plus the two non-empty months, four rows each.
	assert.Len(t, result.Summary, 12)
	assert.Equal(t, st.savedSummaries, result.Summary)
	assert.Len(t, st.savedProfiles, 2)

	buckets := map[string]bool{}
	for _, row := range result.Summary {
		buckets[row.Bucket] = true
	}
	assert.Equal(t, map[string]bool{stats.AnnualBucket: true, "04": true, "05": true}, buckets)
}

func TestPipelineRun_NoRoutes(t *testing.T) {
	st := &memStore{}
	p, err := New(st, testSpec, 1)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no routes stored")
}

func TestPipelineNew_InvalidSpec(t *testing.T) {
	_, err := New(&memStore{}, grid.Spec{MinLon: 5, MinLat: 0, MaxLon: 4, MaxLat: 10, CellDeg: 1}, 1)
	require.Error(t, err)
}

func TestPipelineRun_Cancelled(t *testing.T) {
	april := time.Date(2019, 4, 12, 0, 0, 0, 0, time.UTC)
	st := &memStore{
		routes: map[string][]*model.RouteGeometry{
			dayKey(april): {lineRoute("mv-1", april, 0.5, 2.5, 4.5, 2.5)},
		},
	}
	p, err := New(st, testSpec, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Run(ctx)
	require.Error(t, err)
}
