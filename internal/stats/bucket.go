package stats

import (
	"time"

	"github.com/equivet/moverisk/internal/model"
)

// AnnualBucket labels the bucket covering the whole study period.
const AnnualBucket = "annual"

// MonthLabel returns the bucket label for a calendar month ("01".."12").
func MonthLabel(m time.Month) string {
	return time.Date(2000, m, 1, 0, 0, 0, 0, time.UTC).Format("01")
}

// Buckets collects route risk profiles into the annual bucket and twelve
// monthly buckets. Each profile is appended to the annual view and to exactly
// one monthly view keyed by its movement date's calendar month, so the
// monthly buckets partition the annual one.
type Buckets struct {
	annual  []*model.RouteRiskProfile
	monthly map[time.Month][]*model.RouteRiskProfile
}

// NewBuckets returns an empty bucket collection.
func NewBuckets() *Buckets {
	return &Buckets{monthly: make(map[time.Month][]*model.RouteRiskProfile)}
}

// Add appends a profile to the annual bucket and its month's bucket.
// The zero value is usable.
func (b *Buckets) Add(p *model.RouteRiskProfile) {
	if b.monthly == nil {
		b.monthly = make(map[time.Month][]*model.RouteRiskProfile)
	}
	b.annual = append(b.annual, p)
	m := p.Date.Month()
	b.monthly[m] = append(b.monthly[m], p)
}

// Merge folds another bucket collection into this one. Workers processing
// disjoint date sets each fill a private Buckets and merge afterward, so no
// bucket is ever written concurrently.
func (b *Buckets) Merge(other *Buckets) {
	if other == nil {
		return
	}
	if b.monthly == nil && len(other.monthly) > 0 {
		b.monthly = make(map[time.Month][]*model.RouteRiskProfile)
	}
	b.annual = append(b.annual, other.annual...)
	for m, ps := range other.monthly {
		b.monthly[m] = append(b.monthly[m], ps...)
	}
}

// Annual returns the annual bucket's profiles.
func (b *Buckets) Annual() []*model.RouteRiskProfile { return b.annual }

// Month returns one monthly bucket's profiles (may be empty).
func (b *Buckets) Month(m time.Month) []*model.RouteRiskProfile { return b.monthly[m] }

// Len returns the number of profiles in the annual bucket.
func (b *Buckets) Len() int { return len(b.annual) }
