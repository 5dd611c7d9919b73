package regions

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/urbanalytics/insights-cli/internal/geo"
	"github.com/urbanalytics/insights-cli/internal/model"
)

// LoadPOIsCSV reads a POI export with a category,name,lat,lon header.
// Rows with unparseable coordinates are skipped; wild coordinates are
// clamped the same way region centroids are.
func LoadPOIsCSV(path string) ([]model.POI, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "regions: open poi csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "regions: read poi header")
	}
	col := columnIndex(header)
	catIdx, nameIdx := col("category"), col("name")
	latIdx, lonIdx := col("lat"), col("lon")
	if catIdx < 0 || latIdx < 0 || lonIdx < 0 {
		return nil, eris.New("regions: poi csv requires category, lat, lon columns")
	}

	var pois []model.POI
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "regions: read poi row")
		}
		if latIdx >= len(record) || lonIdx >= len(record) || catIdx >= len(record) {
			continue
		}

		lat, latErr := strconv.ParseFloat(strings.TrimSpace(record[latIdx]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(record[lonIdx]), 64)
		if latErr != nil || lonErr != nil {
			continue
		}

		poi := model.POI{
			Category: model.POICategory(strings.TrimSpace(record[catIdx])),
			Location: geo.ClampToIsrael(model.Point{Lat: lat, Lon: lon}),
		}
		if nameIdx >= 0 && nameIdx < len(record) {
			poi.Name = NormalizeHebrew(record[nameIdx])
		}
		pois = append(pois, poi)
	}
	return pois, nil
}

// LoadMetricsCSV reads CBS tabular metrics keyed by region id. Recognized
// columns map onto RawMetricSet fields; absent columns and blank cells stay
// nil so the normalizer can impute them.
func LoadMetricsCSV(path string) ([]model.RawMetricSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "regions: open metrics csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "regions: read metrics header")
	}
	col := columnIndex(header)
	idIdx := col("region_id")
	if idIdx < 0 {
		return nil, eris.New("regions: metrics csv requires a region_id column")
	}

	var metrics []model.RawMetricSet
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "regions: read metrics row")
		}
		if m, ok := metricFromRecord(col, idIdx, record); ok {
			metrics = append(metrics, m)
		}
	}
	return metrics, nil
}

// metricColumns maps recognized tabular column names onto RawMetricSet
// fields. POI and transit fields are always derived, never tabular.
var metricColumns = []struct {
	column string
	assign func(*model.RawMetricSet, *float64)
}{
	{"population", func(m *model.RawMetricSet, v *float64) { m.Population = v }},
	{"socioeconomic_index", func(m *model.RawMetricSet, v *float64) { m.SocioeconomicIndex = v }},
	{"crime_rate_per_1000", func(m *model.RawMetricSet, v *float64) { m.CrimeRatePer1000 = v }},
	{"school_matriculation_pct", func(m *model.RawMetricSet, v *float64) { m.SchoolMatriculationPct = v }},
	{"housing_price_per_sqm", func(m *model.RawMetricSet, v *float64) { m.HousingPricePerSqm = v }},
}

// metricFromRecord parses one tabular row. Blank or unparseable cells stay
// nil; rows without a region id are dropped.
func metricFromRecord(col func(string) int, idIdx int, record []string) (model.RawMetricSet, bool) {
	if idIdx >= len(record) {
		return model.RawMetricSet{}, false
	}
	id := strings.TrimSpace(record[idIdx])
	if id == "" {
		return model.RawMetricSet{}, false
	}

	m := model.RawMetricSet{RegionID: id}
	for _, fieldSpec := range metricColumns {
		idx := col(fieldSpec.column)
		if idx < 0 || idx >= len(record) {
			continue
		}
		cell := strings.TrimSpace(record[idx])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			continue
		}
		fieldSpec.assign(&m, &v)
	}
	return m, true
}

// MergeMetrics overlays POI-derived metrics onto CBS tabular metrics,
// matching by region id. Regions present in only one input still yield one
// metric set.
func MergeMetrics(tabular, derived []model.RawMetricSet) []model.RawMetricSet {
	derivedByID := make(map[string]model.RawMetricSet, len(derived))
	for _, d := range derived {
		derivedByID[d.RegionID] = d
	}

	merged := make([]model.RawMetricSet, 0, len(tabular))
	seen := make(map[string]bool, len(tabular))
	for _, m := range tabular {
		if d, ok := derivedByID[m.RegionID]; ok {
			m.POIWithin300m = d.POIWithin300m
			m.POIWithin500m = d.POIWithin500m
			m.POIWithin800m = d.POIWithin800m
			m.POIWithin1000m = d.POIWithin1000m
			m.TransitStopDensity = d.TransitStopDensity
		}
		merged = append(merged, m)
		seen[m.RegionID] = true
	}

	for _, d := range derived {
		if !seen[d.RegionID] {
			merged = append(merged, d)
		}
	}
	return merged
}

// columnIndex builds a case-insensitive header lookup.
func columnIndex(header []string) func(string) int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return func(name string) int {
		if i, ok := idx[name]; ok {
			return i
		}
		return -1
	}
}
