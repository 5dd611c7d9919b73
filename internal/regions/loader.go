// Package regions ingests CBS statistical-area shapefiles and enriches
// regions with POI-derived metrics.
package regions

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/urbanalytics/insights-cli/internal/geo"
	"github.com/urbanalytics/insights-cli/internal/model"
)

// CBS releases rename attribute columns between census vintages, so each
// logical field carries a candidate list tried in order.
var (
	saCodeFields   = []string{"SA_ID", "STAT11", "STAT_11", "STAT08", "SA_CODE"}
	cityCodeFields = []string{"SEMEL_YISH", "SYMBOL_YIS", "CITY_CODE"}
	cityNameFields = []string{"SHEM_YISHUV", "NAME_HE", "CITY_NAME"}
	nameHeFields   = []string{"SHEM_EZOR", "STAT_NAME", "NAME"}
	nameEnFields   = []string{"SHEM_EZ_EN", "NAME_EN", "NAME_LATIN"}
)

// LoadShapefile reads a CBS statistical-areas shapefile into regions.
// Records without a usable identifier or geometry are skipped with a
// warning rather than failing the whole load.
func LoadShapefile(path string) ([]model.Region, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "regions: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	log := zap.L().With(zap.String("component", "regions.loader"))

	saIdx := firstFieldIndex(reader, saCodeFields)
	if saIdx < 0 {
		return nil, eris.Errorf("regions: no statistical-area id field found (tried %s)",
			strings.Join(saCodeFields, ", "))
	}
	cityCodeIdx := firstFieldIndex(reader, cityCodeFields)
	cityNameIdx := firstFieldIndex(reader, cityNameFields)
	nameHeIdx := firstFieldIndex(reader, nameHeFields)
	nameEnIdx := firstFieldIndex(reader, nameEnFields)

	var regions []model.Region
	var skipped int
	for reader.Next() {
		recordNum, shape := reader.Shape()
		if shape == nil {
			skipped++
			continue
		}

		saCode := strings.TrimSpace(reader.Attribute(saIdx))
		if saCode == "" {
			skipped++
			continue
		}

		mp := geo.ShapeToMultiPolygon(shape)
		if mp == nil {
			log.Warn("skipping record with non-polygon geometry",
				zap.Int("record", recordNum),
				zap.String("sa_code", saCode))
			skipped++
			continue
		}

		wkt, err := geo.MarshalWKT(mp)
		if err != nil {
			return nil, eris.Wrapf(err, "regions: marshal boundary for %s", saCode)
		}
		centroid, areaSqKm := geo.CentroidAndArea(mp)

		// Some CBS extracts carry coordinates in a local projection or
		// with swapped axes; clamp anything implausible near the country
		// center rather than dropping the region.
		if !geo.InIsrael(centroid) {
			log.Warn("region centroid outside country bounds, clamping",
				zap.String("sa_code", saCode),
				zap.Float64("lat", centroid.Lat),
				zap.Float64("lon", centroid.Lon))
			centroid = geo.ClampToIsrael(centroid)
		}

		id := saCode
		if cityCodeIdx >= 0 {
			if cityCode := strings.TrimSpace(reader.Attribute(cityCodeIdx)); cityCode != "" {
				id = cityCode + "-" + saCode
			}
		}

		region := model.Region{
			ID:          id,
			Centroid:    centroid,
			AreaSqKm:    areaSqKm,
			BoundaryWKT: wkt,
		}
		if nameHeIdx >= 0 {
			region.NameHe = NormalizeHebrew(reader.Attribute(nameHeIdx))
		}
		if nameEnIdx >= 0 {
			region.NameEn = strings.TrimSpace(reader.Attribute(nameEnIdx))
		}
		if cityNameIdx >= 0 {
			region.City = NormalizeHebrew(reader.Attribute(cityNameIdx))
		}

		regions = append(regions, region)
	}

	if len(regions) == 0 {
		return nil, eris.Errorf("regions: shapefile %s yielded no regions", path)
	}

	log.Info("shapefile loaded",
		zap.String("path", path),
		zap.Int("regions", len(regions)),
		zap.Int("skipped", skipped))
	return regions, nil
}

// firstFieldIndex returns the index of the first candidate field present in
// the shapefile, or -1.
func firstFieldIndex(reader *shp.Reader, candidates []string) int {
	for _, name := range candidates {
		for i, f := range reader.Fields() {
			if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
				return i
			}
		}
	}
	return -1
}

// NormalizeHebrew canonicalizes a Hebrew name from a shapefile attribute:
// NFC normalization, bidi control characters stripped, whitespace collapsed.
// DBF encodings sneak directional marks into names, which otherwise break
// string equality against other CBS datasets.
func NormalizeHebrew(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		// LRM, RLM, and the directional embedding/override/isolate range.
		case '‎', '‏', '‪', '‫', '‬', '‭', '‮',
			'⁦', '⁧', '⁨', '⁩':
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
