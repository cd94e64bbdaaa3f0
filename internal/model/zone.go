package model

import (
	"time"

	"github.com/twpayne/go-geom"
)

// Zone is one administrative disease-control area (state vet area). Its
// declared status feeds the daily status grid.
type Zone struct {
	ID   string             `json:"id"`
	Name string             `json:"name"`
	Geom *geom.MultiPolygon `json:"-"`
}

// StatusDeclaration assigns one declared risk category to a zone for one
// calendar day. Declarations may be absent for any zone/date pair; absence is
// not an error and resolves to "unknown" at sampling time.
type StatusDeclaration struct {
	ZoneID   string       `json:"zone_id"`
	Date     time.Time    `json:"date"`
	Category RiskCategory `json:"category"`
}
