package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/equivet/moverisk/internal/model"
)

func sampleSummary() []model.SummaryRow {
	return []model.SummaryRow{
		{Bucket: "annual", Category: model.CategoryLow, Routes: 120, P2_5: 0.05, P50: 0.61, P95: 0.97},
		{Bucket: "04", Category: model.CategoryHigh, Routes: 12, P2_5: 0.0, P50: 0.2, P95: 0.8},
	}
}

func sampleProfiles() []*model.RouteRiskProfile {
	return []*model.RouteRiskProfile{{
		MovementID: "mv-1",
		Date:       time.Date(2019, 4, 12, 0, 0, 0, 0, time.UTC),
		HeadCount:  3,
		Samples:    16,
		Proportions: map[model.RiskCategory]float64{
			model.CategoryLow:     0.75,
			model.CategoryHigh:    0.125,
			model.CategoryPartial: 0,
			model.CategoryUnknown: 0.125,
		},
	}}
}

func TestWriteSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummaryCSV(&buf, sampleSummary()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"bucket", "category", "routes", "p2_5", "p50", "p95"}, records[0])
	assert.Equal(t, []string{"annual", "low", "120", "0.050000", "0.610000", "0.970000"}, records[1])
	assert.Equal(t, "04", records[2][0])
}

func TestWriteProfilesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProfilesCSV(&buf, sampleProfiles()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"movement_id", "date", "head_count", "samples", "low", "high", "partial", "unknown"}, records[0])
	assert.Equal(t, []string{"mv-1", "2019-04-12", "3", "16", "0.750000", "0.125000", "0.000000", "0.125000"}, records[1])
}

func TestWriteSummaryCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummaryCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1) // header only
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, WriteWorkbook(path, sampleSummary(), sampleProfiles()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)
	assert.Equal(t, "summary", f.Sheets[0].Name)
	assert.Equal(t, "routes", f.Sheets[1].Name)

	require.Len(t, f.Sheets[0].Rows, 3)
	assert.Equal(t, "annual", f.Sheets[0].Rows[1].Cells[0].String())
	assert.Equal(t, "low", f.Sheets[0].Rows[1].Cells[1].String())

	require.Len(t, f.Sheets[1].Rows, 2)
	assert.Equal(t, "mv-1", f.Sheets[1].Rows[1].Cells[0].String())
	assert.Equal(t, "0.125000", f.Sheets[1].Rows[1].Cells[7].String())
}
