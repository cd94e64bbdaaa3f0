package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/equivet/moverisk/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// testSpec covers a 10x10 unit-cell grid over (0,0)-(10,10).
func testSpec() Spec {
	return Spec{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10, CellDeg: 1}
}

// squareZone builds a rectangular single-ring zone.
func squareZone(id string, minLon, minLat, maxLon, maxLat float64) model.Zone {
	p := geom.NewPolygonFlat(geom.XY, []float64{
		minLon, minLat,
		maxLon, minLat,
		maxLon, maxLat,
		minLon, maxLat,
		minLon, minLat,
	}, []int{10})
	mp := geom.NewMultiPolygon(geom.XY)
	if err := mp.Push(p); err != nil {
		panic(err)
	}
	return model.Zone{ID: id, Name: id, Geom: mp}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr string
	}{
		{
			name: "valid",
			spec: testSpec(),
		},
		{
			name:    "zero cell size",
			spec:    Spec{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10},
			wantErr: "cell_deg",
		},
		{
			name:    "negative cell size",
			spec:    Spec{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10, CellDeg: -1},
			wantErr: "cell_deg",
		},
		{
			name:    "no width",
			spec:    Spec{MinLon: 5, MinLat: 0, MaxLon: 5, MaxLat: 10, CellDeg: 1},
			wantErr: "max_lon",
		},
		{
			name:    "no height",
			spec:    Spec{MinLon: 0, MinLat: 10, MaxLon: 10, MaxLat: 2, CellDeg: 1},
			wantErr: "max_lat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSpecLocate(t *testing.T) {
	s := testSpec()

	col, row, ok := s.Locate(0.5, 0.5)
	require.True(t, ok)
	assert.Equal(t, 0, col)
	assert.Equal(t, 0, row)

	col, row, ok = s.Locate(9.5, 3.5)
	require.True(t, ok)
	assert.Equal(t, 9, col)
	assert.Equal(t, 3, row)

	_, _, ok = s.Locate(-1, 5)
	assert.False(t, ok)
	_, _, ok = s.Locate(5, 11)
	assert.False(t, ok)
}

func TestRasterizeInvalidSpec(t *testing.T) {
	_, err := Rasterize(Spec{}, time.Now(), nil, nil)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRasterizeNoDeclarations(t *testing.T) {
	zones := []model.Zone{squareZone("Z1", 0, 0, 5, 5)}

	g, err := Rasterize(testSpec(), time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), zones, nil)
	require.NoError(t, err)

	// A date with zero declarations yields an all-absent grid, not an error.
	assert.Equal(t, 0, g.Painted())
	_, ok := g.At(2, 2)
	assert.False(t, ok)
}

func TestRasterizePaintsDeclaredZone(t *testing.T) {
	zones := []model.Zone{
		squareZone("Z1", 0, 0, 5, 5),
		squareZone("Z2", 5, 5, 10, 10),
	}
	statuses := map[string]model.RiskCategory{
		"Z1": model.CategoryLow,
		// Z2 has no declaration for the day: its cells stay absent.
	}

	g, err := Rasterize(testSpec(), time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), zones, statuses)
	require.NoError(t, err)

	cat, ok := g.At(2, 2)
	require.True(t, ok)
	assert.Equal(t, model.CategoryLow, cat)

	// Inside Z2 but undeclared: absent, not unknown, not low.
	_, ok = g.At(7, 7)
	assert.False(t, ok)

	// Covered by no zone at all: also absent.
	_, ok = g.At(7, 2)
	assert.False(t, ok)

	// 5x5 cells painted for Z1.
	assert.Equal(t, 25, g.Painted())
}

func TestRasterizeOverlapLastWins(t *testing.T) {
	zones := []model.Zone{
		squareZone("Z1", 0, 0, 4, 4),
		squareZone("Z2", 0, 0, 4, 4),
	}
	statuses := map[string]model.RiskCategory{
		"Z1": model.CategoryHigh,
		"Z2": model.CategoryPartial,
	}

	g, err := Rasterize(testSpec(), time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), zones, statuses)
	require.NoError(t, err)

	cat, ok := g.At(1, 1)
	require.True(t, ok)
	assert.Equal(t, model.CategoryPartial, cat)
}

func TestRasterizeZoneOutsideExtent(t *testing.T) {
	zones := []model.Zone{squareZone("Z1", 50, 50, 60, 60)}
	statuses := map[string]model.RiskCategory{"Z1": model.CategoryHigh}

	g, err := Rasterize(testSpec(), time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), zones, statuses)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Painted())
}

func TestRasterizePolygonWithHole(t *testing.T) {
	// Outer ring (0,0)-(6,6) with hole (2,2)-(4,4).
	p := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 6, 0, 6, 6, 0, 6, 0, 0,
		2, 2, 4, 2, 4, 4, 2, 4, 2, 2,
	}, []int{10, 20})
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(p))
	zones := []model.Zone{{ID: "Z1", Geom: mp}}
	statuses := map[string]model.RiskCategory{"Z1": model.CategoryLow}

	g, err := Rasterize(testSpec(), time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), zones, statuses)
	require.NoError(t, err)

	_, ok := g.At(3, 3) // cell center (3.5,3.5) inside the hole
	assert.False(t, ok)

	cat, ok := g.At(0, 0)
	require.True(t, ok)
	assert.Equal(t, model.CategoryLow, cat)
}

func TestGridDateNormalized(t *testing.T) {
	g, err := Rasterize(testSpec(), time.Date(2019, 4, 1, 13, 45, 0, 0, time.UTC), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), g.Date())
}
