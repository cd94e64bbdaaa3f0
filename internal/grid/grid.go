// Package grid builds daily categorical status grids over the study-area
// extent. Each cell holds the risk category declared for the administrative
// zone covering it on one calendar day, or no value at all when nothing was
// declared there.
package grid

import (
	"time"

	"github.com/equivet/moverisk/internal/model"
)

// Spec fixes the grid extent and cell resolution. It is shared by every
// day's grid so grids stay spatially comparable across the study period.
// All values are WGS84 degrees.
type Spec struct {
	MinLon  float64
	MinLat  float64
	MaxLon  float64
	MaxLat  float64
	CellDeg float64
}

// Validate checks that the spec describes a usable grid.
func (s Spec) Validate() error {
	if s.CellDeg <= 0 {
		return &ConfigurationError{Field: "grid.cell_deg", Reason: "must be > 0"}
	}
	if s.MaxLon <= s.MinLon {
		return &ConfigurationError{Field: "grid.max_lon", Reason: "extent has no width"}
	}
	if s.MaxLat <= s.MinLat {
		return &ConfigurationError{Field: "grid.max_lat", Reason: "extent has no height"}
	}
	return nil
}

// Cols returns the number of grid columns.
func (s Spec) Cols() int {
	return int((s.MaxLon-s.MinLon)/s.CellDeg) + 1
}

// Rows returns the number of grid rows.
func (s Spec) Rows() int {
	return int((s.MaxLat-s.MinLat)/s.CellDeg) + 1
}

// Locate maps a lon/lat to a cell index. ok is false outside the extent.
func (s Spec) Locate(lon, lat float64) (col, row int, ok bool) {
	if lon < s.MinLon || lon > s.MaxLon || lat < s.MinLat || lat > s.MaxLat {
		return 0, 0, false
	}
	col = int((lon - s.MinLon) / s.CellDeg)
	row = int((lat - s.MinLat) / s.CellDeg)
	if col >= s.Cols() {
		col = s.Cols() - 1
	}
	if row >= s.Rows() {
		row = s.Rows() - 1
	}
	return col, row, true
}

// CellCenter returns the lon/lat of a cell's center.
func (s Spec) CellCenter(col, row int) (lon, lat float64) {
	return s.MinLon + (float64(col)+0.5)*s.CellDeg,
		s.MinLat + (float64(row)+0.5)*s.CellDeg
}

// cellValue is a grid cell's state. Zero means absent: covered by no zone,
// or by a zone with no declaration for the day. Absent is deliberately not a
// model.RiskCategory; the sampler resolves it to "unknown" when counting.
type cellValue uint8

const (
	cellAbsent cellValue = iota
	cellLow
	cellHigh
	cellPartial
)

func toCell(c model.RiskCategory) cellValue {
	switch c {
	case model.CategoryLow:
		return cellLow
	case model.CategoryHigh:
		return cellHigh
	case model.CategoryPartial:
		return cellPartial
	}
	return cellAbsent
}

func fromCell(v cellValue) (model.RiskCategory, bool) {
	switch v {
	case cellLow:
		return model.CategoryLow, true
	case cellHigh:
		return model.CategoryHigh, true
	case cellPartial:
		return model.CategoryPartial, true
	}
	return "", false
}

// StatusGrid is the categorical status raster for one calendar day. It is
// rebuilt fresh per day and never cached across days.
type StatusGrid struct {
	spec  Spec
	date  time.Time
	cells []cellValue // row-major: row*cols + col
}

// Spec returns the grid's spec.
func (g *StatusGrid) Spec() Spec { return g.spec }

// Date returns the calendar day the grid is valid for.
func (g *StatusGrid) Date() time.Time { return g.date }

// At returns the declared category for a cell. ok is false for absent cells.
func (g *StatusGrid) At(col, row int) (model.RiskCategory, bool) {
	if col < 0 || row < 0 || col >= g.spec.Cols() || row >= g.spec.Rows() {
		return "", false
	}
	return fromCell(g.cells[row*g.spec.Cols()+col])
}

// Painted returns the number of non-absent cells.
func (g *StatusGrid) Painted() int {
	var n int
	for _, v := range g.cells {
		if v != cellAbsent {
			n++
		}
	}
	return n
}
