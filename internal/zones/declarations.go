package zones

import (
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/equivet/moverisk/internal/model"
)

const declarationDateLayout = "2006-01-02"

// ReadDeclarations parses a status-declaration CSV with columns
// zone_id,date,category (header optional). Rows with an undeclarable
// category or a malformed date fail the load: a silently dropped declaration
// would surface downstream as a spurious "unknown".
func ReadDeclarations(r io.Reader) ([]model.StatusDeclaration, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	var out []model.StatusDeclaration
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "zones: read declaration row")
		}
		line++

		// Tolerate a header row.
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "zone_id") {
			continue
		}

		zoneID := strings.TrimSpace(record[0])
		if zoneID == "" {
			return nil, eris.Errorf("zones: declaration row %d: empty zone id", line)
		}

		date, err := parseDay(record[1])
		if err != nil {
			return nil, eris.Wrapf(err, "zones: declaration row %d", line)
		}

		cat, err := model.ParseDeclaredCategory(strings.ToLower(strings.TrimSpace(record[2])))
		if err != nil {
			return nil, eris.Wrapf(err, "zones: declaration row %d", line)
		}

		out = append(out, model.StatusDeclaration{ZoneID: zoneID, Date: date, Category: cat})
	}

	zap.L().Debug("zones: read declarations", zap.Int("count", len(out)))
	return out, nil
}

// DeclarationsByDay indexes declarations as date -> zone id -> category, the
// shape the rasterizer consumes. Duplicate (zone, date) rows keep the last
// declaration, matching declaration-amendment exports.
func DeclarationsByDay(decls []model.StatusDeclaration) map[string]map[string]model.RiskCategory {
	byDay := make(map[string]map[string]model.RiskCategory)
	for _, d := range decls {
		key := DayKey(d.Date)
		if byDay[key] == nil {
			byDay[key] = make(map[string]model.RiskCategory)
		}
		byDay[key][d.ZoneID] = d.Category
	}
	return byDay
}

// DayKey formats a date as its canonical map key.
func DayKey(t time.Time) string {
	return model.Day(t).Format(declarationDateLayout)
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(declarationDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "parse date %q", s)
	}
	return model.Day(t), nil
}
