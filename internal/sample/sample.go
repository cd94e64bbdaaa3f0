// Package sample intersects route geometries against a day's status grid and
// tabulates the categorical distribution of the cells each route touches.
package sample

import (
	"fmt"
	"math"

	"github.com/equivet/moverisk/internal/grid"
	"github.com/equivet/moverisk/internal/model"
)

// UnsampleableRouteError reports a route that produced zero sample cells.
// It is recoverable: the caller excludes the route and reports it, because
// letting it through would put a zero in a proportion denominator.
type UnsampleableRouteError struct {
	MovementID string
}

func (e *UnsampleableRouteError) Error() string {
	return fmt.Sprintf("sample: route %s has no sampleable cells", e.MovementID)
}

// Tally walks every grid cell the route passes through and counts the cell's
// category, relabeling absent cells (and cells outside the grid extent) as
// unknown before counting. Sampling is exhaustive over the route's full
// extent at grid resolution: a route re-entering a cell counts it again, and
// no values are interpolated between cells.
func Tally(route *model.RouteGeometry, g *grid.StatusGrid) (model.Tally, error) {
	if route.Path == nil || route.Path.NumCoords() == 0 {
		return nil, &UnsampleableRouteError{MovementID: route.MovementID}
	}

	tally := make(model.Tally)
	visit := func(col, row int) {
		cat, ok := g.At(col, row)
		if !ok {
			cat = model.CategoryUnknown
		}
		tally[cat]++
	}

	s := g.Spec()
	coords := route.Path.Coords()

	// Continuous grid coordinates; cells outside the extent get negative or
	// out-of-range indices, which At resolves to absent.
	gx := func(c []float64) float64 { return (c[0] - s.MinLon) / s.CellDeg }
	gy := func(c []float64) float64 { return (c[1] - s.MinLat) / s.CellDeg }

	// Count the starting cell once, then every cell entered along the way.
	// Consecutive segments continue from the previous cell, so a shared
	// vertex does not count its cell twice; only genuine re-entry does.
	visit(cellOf(gx(coords[0]), gy(coords[0])))
	for i := 1; i < len(coords); i++ {
		walkSegment(gx(coords[i-1]), gy(coords[i-1]), gx(coords[i]), gy(coords[i]), visit)
	}

	if tally.Total() == 0 {
		return nil, &UnsampleableRouteError{MovementID: route.MovementID}
	}
	return tally, nil
}

func cellOf(x, y float64) (int, int) {
	return int(math.Floor(x)), int(math.Floor(y))
}

// walkSegment traverses the unit grid from (x0,y0) to (x1,y1) in continuous
// grid coordinates, invoking visit for each cell entered after the starting
// cell (Amanatides-Woo voxel traversal).
func walkSegment(x0, y0, x1, y1 float64, visit func(col, row int)) {
	cx, cy := cellOf(x0, y0)
	ex, ey := cellOf(x1, y1)

	dx := x1 - x0
	dy := y1 - y0

	stepX, tMaxX, tDeltaX := axisSetup(x0, dx, cx)
	stepY, tMaxY, tDeltaY := axisSetup(y0, dy, cy)

	// The traversal visits at most the Manhattan distance in cells; anything
	// beyond that indicates a numeric edge case, so bail out.
	maxSteps := abs(ex-cx) + abs(ey-cy)
	for steps := 0; (cx != ex || cy != ey) && steps < maxSteps; steps++ {
		if tMaxX < tMaxY {
			cx += stepX
			tMaxX += tDeltaX
		} else {
			cy += stepY
			tMaxY += tDeltaY
		}
		visit(cx, cy)
	}
}

// axisSetup returns the traversal step, the parametric distance to the first
// cell boundary, and the parametric width of one cell along a single axis.
func axisSetup(p, d float64, c int) (step int, tMax, tDelta float64) {
	switch {
	case d > 0:
		return 1, (float64(c+1) - p) / d, 1 / d
	case d < 0:
		return -1, (float64(c) - p) / d, -1 / d
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
