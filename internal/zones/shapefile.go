// Package zones loads administrative zone polygons and their daily status
// declarations from shapefiles and CSV exports.
package zones

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/equivet/moverisk/internal/model"
)

// ShapefileOptions names the attribute fields carrying the zone identifier
// and display name. Field matching is case-insensitive.
type ShapefileOptions struct {
	IDField   string // default "id"
	NameField string // default "name"
}

// ReadShapefile reads zone polygons from a shapefile. Records without a
// usable polygon are skipped and counted, not fatal.
func ReadShapefile(shpPath string, opts ShapefileOptions) ([]model.Zone, error) {
	if opts.IDField == "" {
		opts.IDField = "id"
	}
	if opts.NameField == "" {
		opts.NameField = "name"
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zones: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name -> index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	idIdx, ok := fieldIdx[strings.ToLower(opts.IDField)]
	if !ok {
		return nil, eris.Errorf("zones: shapefile has no %q field", opts.IDField)
	}
	nameIdx, hasName := fieldIdx[strings.ToLower(opts.NameField)]

	var out []model.Zone
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		id := attr(reader, idIdx)
		if id == "" {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		z := model.Zone{ID: id, Geom: mp}
		if hasName {
			z.Name = attr(reader, nameIdx)
		}
		out = append(out, z)
	}

	if skipped > 0 {
		zap.L().Debug("zones: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return out, nil
}

func attr(r *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(r.Attribute(idx), "\x00"))
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("zones: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("zones: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
