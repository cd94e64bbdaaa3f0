package model

import "github.com/rotisserie/eris"

// RiskCategory is the fixed classification of a route sample point.
// Low, High, and Partial are declared by the veterinary authority for an
// administrative zone; Unknown is the sampler's resolution of locations with
// no resolvable classification. Zones never declare Unknown.
type RiskCategory string

const (
	CategoryLow     RiskCategory = "low"
	CategoryHigh    RiskCategory = "high"
	CategoryPartial RiskCategory = "partial"
	CategoryUnknown RiskCategory = "unknown"
)

// Categories returns all four risk categories in canonical order. Aggregation
// iterates this list so every category appears in every profile, present in
// the raw tally or not.
func Categories() []RiskCategory {
	return []RiskCategory{CategoryLow, CategoryHigh, CategoryPartial, CategoryUnknown}
}

// DeclaredCategories returns the categories a zone may declare for a day.
func DeclaredCategories() []RiskCategory {
	return []RiskCategory{CategoryLow, CategoryHigh, CategoryPartial}
}

// ParseDeclaredCategory validates a status-declaration value. Unknown is
// rejected: it is a sampler resolution, not a declarable status.
func ParseDeclaredCategory(s string) (RiskCategory, error) {
	switch RiskCategory(s) {
	case CategoryLow, CategoryHigh, CategoryPartial:
		return RiskCategory(s), nil
	}
	return "", eris.Errorf("model: invalid declared category %q", s)
}

// Tally is the raw frequency table for one route: how many sampled cells fell
// in each category. Built in a single pass over the route's cells; categories
// the route never touched are simply absent from the map.
type Tally map[RiskCategory]int

// Total returns the number of sampled cells across all categories.
func (t Tally) Total() int {
	var n int
	for _, c := range t {
		n += c
	}
	return n
}
