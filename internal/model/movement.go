// Package model defines the core domain types shared across the movement
// risk pipeline: movement records, route geometries, risk categories, and
// per-route risk profiles.
package model

import (
	"time"

	"github.com/twpayne/go-geom"
)

// Coordinate is a WGS84 lon/lat pair.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// MovementRecord is one reported transport event. Immutable once read; it is
// the source of truth for route construction.
type MovementRecord struct {
	ID          string     `json:"id"`
	Origin      Coordinate `json:"origin"`
	Destination Coordinate `json:"destination"`
	Date        time.Time  `json:"date"` // calendar date, midnight UTC
	HeadCount   int        `json:"head_count"`
}

// RouteGeometry is the road-network path derived from one MovementRecord.
// Its date and headcount always match the originating record.
type RouteGeometry struct {
	MovementID string           `json:"movement_id"`
	Date       time.Time        `json:"date"`
	HeadCount  int              `json:"head_count"`
	DistanceM  float64          `json:"distance_m"`
	DurationS  float64          `json:"duration_s"`
	Path       *geom.LineString `json:"-"`
}

// Day truncates t to its calendar date at midnight UTC. Movement dates carry
// no time component; every date comparison in the pipeline goes through this.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
