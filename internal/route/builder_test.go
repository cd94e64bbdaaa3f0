package route

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/equivet/moverisk/internal/model"
	"github.com/equivet/moverisk/pkg/routing"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeRouter routes by origin longitude: negative means no route, zero means
// a transport failure, positive resolves.
type fakeRouter struct {
	calls int
}

func (f *fakeRouter) Route(_ context.Context, origin, dest model.Coordinate) (*routing.Path, error) {
	f.calls++
	switch {
	case origin.Lon < 0:
		return nil, routing.ErrNoRoute
	case origin.Lon == 0:
		return nil, eris.New("routing: connection refused")
	}
	return &routing.Path{
		Geometry: geom.NewLineStringFlat(geom.XY, []float64{
			origin.Lon, origin.Lat,
			dest.Lon, dest.Lat,
		}),
		DistanceM: 150000,
		DurationS: 5400,
		CrowKM:    routing.CrowDistanceKM(origin, dest),
	}, nil
}

func movement(id string, originLon float64) model.MovementRecord {
	return model.MovementRecord{
		ID:          id,
		Origin:      model.Coordinate{Lon: originLon, Lat: 48},
		Destination: model.Coordinate{Lon: originLon + 1, Lat: 48.5},
		Date:        time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC),
		HeadCount:   3,
	}
}

func TestBuild(t *testing.T) {
	b := NewBuilder(&fakeRouter{})

	rg, err := b.Build(context.Background(), movement("m1", 11))
	require.NoError(t, err)

	assert.Equal(t, "m1", rg.MovementID)
	assert.Equal(t, time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), rg.Date)
	assert.Equal(t, 3, rg.HeadCount)
	assert.Equal(t, 2, rg.Path.NumCoords())
	assert.InDelta(t, 150000, rg.DistanceM, 1e-9)
}

func TestBuildAllIsolatesFailures(t *testing.T) {
	router := &fakeRouter{}
	b := NewBuilder(router)

	recs := []model.MovementRecord{
		movement("ok-1", 11),
		movement("no-route", -5),
		movement("down", 0),
		movement("ok-2", 12),
	}

	routes, report, err := b.BuildAll(context.Background(), recs)
	require.NoError(t, err)

	// Failures are skipped, not fatal, and every record was attempted.
	assert.Equal(t, 4, router.calls)
	require.Len(t, routes, 2)
	assert.Equal(t, "ok-1", routes[0].MovementID)
	assert.Equal(t, "ok-2", routes[1].MovementID)

	assert.Equal(t, 2, report.Total())
	assert.Equal(t, []string{"no-route"}, report.ByReason[model.SkipNoRoute])
	assert.Equal(t, []string{"down"}, report.ByReason[model.SkipRoutingError])
}

func TestBuildAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(&fakeRouter{})
	_, _, err := b.BuildAll(ctx, []model.MovementRecord{movement("m1", 11)})
	assert.Error(t, err)
}
