package model

import "time"

// RouteRiskProfile is the per-route, per-day result of sampling: the share of
// the route's sampled cells falling in each risk category. Proportions carry
// an entry for every category and sum to 1.0. Computed once, never mutated.
type RouteRiskProfile struct {
	MovementID  string                   `json:"movement_id"`
	Date        time.Time                `json:"date"`
	HeadCount   int                      `json:"head_count"`
	Samples     int                      `json:"samples"`
	Proportions map[RiskCategory]float64 `json:"proportions"`
}

// Proportion returns the share for a category. Profiles built by the
// aggregator always carry all four keys; the zero fallback keeps the
// accessor total over the enumeration regardless.
func (p *RouteRiskProfile) Proportion(c RiskCategory) float64 {
	return p.Proportions[c]
}

// SummaryRow is one line of the per-bucket distributional summary: the
// 2.5th, 50th, and 95th percentile of one category's proportions across all
// routes in one time bucket.
type SummaryRow struct {
	Bucket   string       `json:"bucket"`
	Category RiskCategory `json:"category"`
	Routes   int          `json:"routes"`
	P2_5     float64      `json:"p2_5"`
	P50      float64      `json:"p50"`
	P95      float64      `json:"p95"`
}

// SkipReason identifies why a movement record or route was excluded.
type SkipReason string

const (
	SkipNoRoute      SkipReason = "no_route"      // routing collaborator found no path
	SkipRoutingError SkipReason = "routing_error" // routing collaborator unreachable or failed
	SkipUnsampleable SkipReason = "unsampleable"  // route produced zero sample cells
)

// SkipReport accumulates per-record failures for end-of-run reporting.
// Skips never abort the batch; they are counted and surfaced in aggregate.
type SkipReport struct {
	ByReason map[SkipReason][]string `json:"by_reason"` // reason -> movement IDs
}

// NewSkipReport returns an empty report.
func NewSkipReport() *SkipReport {
	return &SkipReport{ByReason: make(map[SkipReason][]string)}
}

// Add records one skipped movement. The zero value is usable.
func (r *SkipReport) Add(reason SkipReason, movementID string) {
	if r.ByReason == nil {
		r.ByReason = make(map[SkipReason][]string)
	}
	r.ByReason[reason] = append(r.ByReason[reason], movementID)
}

// Total returns the number of skipped movements across all reasons.
func (r *SkipReport) Total() int {
	var n int
	for _, ids := range r.ByReason {
		n += len(ids)
	}
	return n
}

// Merge folds another report into this one.
func (r *SkipReport) Merge(other *SkipReport) {
	if other == nil {
		return
	}
	if r.ByReason == nil && len(other.ByReason) > 0 {
		r.ByReason = make(map[SkipReason][]string)
	}
	for reason, ids := range other.ByReason {
		r.ByReason[reason] = append(r.ByReason[reason], ids...)
	}
}
