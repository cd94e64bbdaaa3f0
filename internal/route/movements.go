// Package route turns movement records into road-network route geometries
// through the routing collaborator, and reads movement records from CSV and
// XLSX exports.
package route

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/equivet/moverisk/internal/model"
)

const movementDateLayout = "2006-01-02"

// movementColumns is the expected column order for movement exports:
// id, origin_lon, origin_lat, dest_lon, dest_lat, date, head_count.
const movementColumns = 7

// ReadMovementsCSV parses movement records from a CSV export. A header row
// is tolerated. Rows must carry a positive head count and a parseable date.
func ReadMovementsCSV(r io.Reader) ([]model.MovementRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = movementColumns
	reader.TrimLeadingSpace = true

	var out []model.MovementRecord
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "route: read movement row")
		}
		line++

		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "id") {
			continue
		}

		rec, err := parseMovement(record)
		if err != nil {
			return nil, eris.Wrapf(err, "route: movement row %d", line)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadMovementsXLSX parses movement records from the first sheet of an XLSX
// export, skipping the header row.
func ReadMovementsXLSX(path string) ([]model.MovementRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "route: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("route: xlsx %s has no sheets", path)
	}

	var out []model.MovementRecord
	for i, row := range f.Sheets[0].Rows {
		if i == 0 {
			continue // header
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if len(cells) < movementColumns {
			return nil, eris.Errorf("route: xlsx row %d has %d columns, want %d", i+1, len(cells), movementColumns)
		}

		rec, err := parseMovement(cells[:movementColumns])
		if err != nil {
			return nil, eris.Wrapf(err, "route: xlsx row %d", i+1)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseMovement(fields []string) (model.MovementRecord, error) {
	id := strings.TrimSpace(fields[0])
	if id == "" {
		return model.MovementRecord{}, eris.New("empty movement id")
	}

	coords := make([]float64, 4)
	for i, name := range []string{"origin_lon", "origin_lat", "dest_lon", "dest_lat"} {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil {
			return model.MovementRecord{}, eris.Wrapf(err, "parse %s", name)
		}
		coords[i] = v
	}

	date, err := time.Parse(movementDateLayout, strings.TrimSpace(fields[5]))
	if err != nil {
		return model.MovementRecord{}, eris.Wrapf(err, "parse date %q", fields[5])
	}

	heads, err := strconv.Atoi(strings.TrimSpace(fields[6]))
	if err != nil {
		return model.MovementRecord{}, eris.Wrapf(err, "parse head_count %q", fields[6])
	}
	if heads <= 0 {
		return model.MovementRecord{}, fmt.Errorf("head_count %d is not positive", heads)
	}

	return model.MovementRecord{
		ID:          id,
		Origin:      model.Coordinate{Lon: coords[0], Lat: coords[1]},
		Destination: model.Coordinate{Lon: coords[2], Lat: coords[3]},
		Date:        model.Day(date),
		HeadCount:   heads,
	}, nil
}
