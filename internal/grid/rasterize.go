package grid

import (
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/equivet/moverisk/internal/model"
)

// Rasterize paints the day's zone statuses onto a fresh grid. Zones with no
// declaration in statuses leave their cells absent, as do cells covered by no
// zone. A day with zero declarations yields an all-absent grid, not an error.
// Overlapping zones are painted in input order; the last declaration wins.
func Rasterize(spec Spec, date time.Time, zones []model.Zone, statuses map[string]model.RiskCategory) (*StatusGrid, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	g := &StatusGrid{
		spec:  spec,
		date:  model.Day(date),
		cells: make([]cellValue, spec.Cols()*spec.Rows()),
	}

	var painted int
	for _, z := range zones {
		cat, ok := statuses[z.ID]
		if !ok || z.Geom == nil {
			continue
		}
		painted += g.paint(z.Geom, toCell(cat))
	}

	zap.L().Debug("grid: rasterized day",
		zap.Time("date", g.date),
		zap.Int("zones", len(zones)),
		zap.Int("declared", len(statuses)),
		zap.Int("painted_cells", painted),
	)

	return g, nil
}

// paint sets v on every cell whose center falls inside mp, and returns the
// number of cells written. The scan is restricted to the cells overlapping
// mp's bounding box.
func (g *StatusGrid) paint(mp *geom.MultiPolygon, v cellValue) int {
	b := mp.Bounds()
	s := g.spec

	colLo := int((b.Min(0) - s.MinLon) / s.CellDeg)
	colHi := int((b.Max(0) - s.MinLon) / s.CellDeg)
	rowLo := int((b.Min(1) - s.MinLat) / s.CellDeg)
	rowHi := int((b.Max(1) - s.MinLat) / s.CellDeg)

	if colHi < 0 || rowHi < 0 || colLo >= s.Cols() || rowLo >= s.Rows() {
		return 0
	}
	colLo = max(colLo, 0)
	rowLo = max(rowLo, 0)
	colHi = min(colHi, s.Cols()-1)
	rowHi = min(rowHi, s.Rows()-1)

	var n int
	for row := rowLo; row <= rowHi; row++ {
		for col := colLo; col <= colHi; col++ {
			lon, lat := s.CellCenter(col, row)
			if multiPolygonContains(mp, lon, lat) {
				g.cells[row*s.Cols()+col] = v
				n++
			}
		}
	}
	return n
}

func multiPolygonContains(mp *geom.MultiPolygon, lon, lat float64) bool {
	c := geom.Coord{lon, lat}
	for i := 0; i < mp.NumPolygons(); i++ {
		if polygonContains(mp.Polygon(i), c) {
			return true
		}
	}
	return false
}

// polygonContains tests ring containment: inside the outer ring and outside
// every hole.
func polygonContains(p *geom.Polygon, c geom.Coord) bool {
	n := p.NumLinearRings()
	if n == 0 {
		return false
	}
	if !xy.IsPointInRing(p.Layout(), c, p.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < n; i++ {
		if xy.IsPointInRing(p.Layout(), c, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}
