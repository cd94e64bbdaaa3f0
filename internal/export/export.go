// Package export writes analysis results as CSV files or XLSX workbooks.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/equivet/moverisk/internal/model"
)

var summaryHeader = []string{"bucket", "category", "routes", "p2_5", "p50", "p95"}

var profileHeader = []string{"movement_id", "date", "head_count", "samples", "low", "high", "partial", "unknown"}

func formatProportion(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func summaryRecord(r model.SummaryRow) []string {
	return []string{
		r.Bucket,
		string(r.Category),
		strconv.Itoa(r.Routes),
		formatProportion(r.P2_5),
		formatProportion(r.P50),
		formatProportion(r.P95),
	}
}

func profileRecord(p *model.RouteRiskProfile) []string {
	return []string{
		p.MovementID,
		p.Date.Format("2006-01-02"),
		strconv.Itoa(p.HeadCount),
		strconv.Itoa(p.Samples),
		formatProportion(p.Proportion(model.CategoryLow)),
		formatProportion(p.Proportion(model.CategoryHigh)),
		formatProportion(p.Proportion(model.CategoryPartial)),
		formatProportion(p.Proportion(model.CategoryUnknown)),
	}
}

// WriteSummaryCSV writes the per-bucket percentile table.
func WriteSummaryCSV(w io.Writer, rows []model.SummaryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return eris.Wrap(err, "export: write summary header")
	}
	for _, r := range rows {
		if err := cw.Write(summaryRecord(r)); err != nil {
			return eris.Wrapf(err, "export: write summary row %s/%s", r.Bucket, r.Category)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush summary")
}

// WriteProfilesCSV writes one row per analyzed route with its category
// proportions.
func WriteProfilesCSV(w io.Writer, profiles []*model.RouteRiskProfile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(profileHeader); err != nil {
		return eris.Wrap(err, "export: write profile header")
	}
	for _, p := range profiles {
		if err := cw.Write(profileRecord(p)); err != nil {
			return eris.Wrapf(err, "export: write profile row %s", p.MovementID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush profiles")
}

// WriteWorkbook writes both result tables into one XLSX file, summary first.
func WriteWorkbook(path string, rows []model.SummaryRow, profiles []*model.RouteRiskProfile) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addStringRow(summary, summaryHeader)
	for _, r := range rows {
		addStringRow(summary, summaryRecord(r))
	}

	routes, err := f.AddSheet("routes")
	if err != nil {
		return eris.Wrap(err, "export: add routes sheet")
	}
	addStringRow(routes, profileHeader)
	for _, p := range profiles {
		addStringRow(routes, profileRecord(p))
	}

	return eris.Wrapf(f.Save(path), "export: save workbook %s", path)
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
