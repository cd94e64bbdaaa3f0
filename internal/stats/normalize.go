// Package stats normalizes per-route category tallies into proportions and
// summarizes their distribution per time bucket.
package stats

import (
	"github.com/rotisserie/eris"

	"github.com/equivet/moverisk/internal/model"
)

// Normalize converts a route's raw frequency table into a RouteRiskProfile.
// The result carries a proportion for every category in the fixed
// enumeration; categories absent from the tally get exactly 0, and the four
// proportions sum to 1.0 within floating-point tolerance.
func Normalize(route *model.RouteGeometry, tally model.Tally) (*model.RouteRiskProfile, error) {
	total := tally.Total()
	if total == 0 {
		return nil, eris.Errorf("stats: route %s has an empty tally", route.MovementID)
	}

	props := make(map[model.RiskCategory]float64, 4)
	for _, c := range model.Categories() {
		props[c] = float64(tally[c]) / float64(total)
	}

	return &model.RouteRiskProfile{
		MovementID:  route.MovementID,
		Date:        model.Day(route.Date),
		HeadCount:   route.HeadCount,
		Samples:     total,
		Proportions: props,
	}, nil
}
