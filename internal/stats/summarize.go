package stats

import (
	"time"

	"github.com/equivet/moverisk/internal/model"
)

// Summarize computes the distributional summary for every non-empty bucket:
// for each of the four categories, the 2.5th, 50th, and 95th percentile of
// the per-route proportions in that bucket. Empty buckets yield no rows.
// Row order is annual first, then months 1-12, categories in canonical order.
func Summarize(b *Buckets) []model.SummaryRow {
	var rows []model.SummaryRow
	rows = append(rows, summarizeBucket(AnnualBucket, b.Annual())...)
	for m := time.January; m <= time.December; m++ {
		rows = append(rows, summarizeBucket(MonthLabel(m), b.Month(m))...)
	}
	return rows
}

func summarizeBucket(label string, profiles []*model.RouteRiskProfile) []model.SummaryRow {
	if len(profiles) == 0 {
		return nil
	}

	rows := make([]model.SummaryRow, 0, 4)
	for _, c := range model.Categories() {
		values := make([]float64, len(profiles))
		for i, p := range profiles {
			values[i] = p.Proportion(c)
		}
		rows = append(rows, model.SummaryRow{
			Bucket:   label,
			Category: c,
			Routes:   len(profiles),
			P2_5:     Quantile(values, 0.025),
			P50:      Quantile(values, 0.50),
			P95:      Quantile(values, 0.95),
		})
	}
	return rows
}
