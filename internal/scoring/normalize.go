package scoring

import (
	"math"

	"go.uber.org/zap"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// fieldStats holds the population statistics for one raw metric across the
// regions that have a non-missing value for it.
type fieldStats struct {
	Mean   float64
	Stddev float64
	N      int
}

// Normalize converts a full snapshot of raw metrics into one ComponentScore
// per region per component. Z-scores are computed against the population
// statistics of the whole snapshot, so a single region can never be
// re-normalized in isolation.
//
// Missing values get a neutral z of 0 and are flagged as imputed. A metric
// with zero variance yields z=0 for every region. Lower-is-better metrics
// are sign-inverted after standardization so higher z always means more
// desirable.
func Normalize(snapshot []model.RawMetricSet) (map[string]map[model.Component]model.ComponentScore, error) {
	if len(snapshot) == 0 {
		return nil, ErrEmptyDataset
	}

	stats := computeFieldStats(snapshot)

	// Per-region, per-field z-scores grouped by component.
	type fieldZ struct {
		z       float64
		imputed bool
	}
	perRegion := make(map[string]map[model.Component]map[string]fieldZ, len(snapshot))

	for i := range snapshot {
		m := &snapshot[i]
		byComponent := make(map[model.Component]map[string]fieldZ, len(model.Components))

		for _, f := range metricFields {
			fz := fieldZ{imputed: true}
			if v := f.Value(m); v != nil {
				s := stats[f.Key]
				if s.Stddev > 0 {
					fz = fieldZ{z: (*v - s.Mean) / s.Stddev}
				} else {
					// No variance (or a single data point): z is defined
					// as 0 but the value was legitimately observed.
					fz = fieldZ{}
				}
				if f.LowerIsBetter {
					fz.z = -fz.z
				}
			}
			if byComponent[f.Component] == nil {
				byComponent[f.Component] = make(map[string]fieldZ)
			}
			byComponent[f.Component][f.Key] = fz
		}

		perRegion[m.RegionID] = byComponent
	}

	// Collapse multi-field components by unweighted average of the
	// constituent z-scores. Imputed fields contribute their neutral zero;
	// the component is flagged imputed only when every field was missing.
	out := make(map[string]map[model.Component]model.ComponentScore, len(perRegion))
	for regionID, byComponent := range perRegion {
		scores := make(map[model.Component]model.ComponentScore, len(model.Components))
		for _, c := range model.Components {
			fields := byComponent[c]
			cs := model.ComponentScore{
				RegionID:  regionID,
				Component: c,
				Imputed:   true,
				FieldZ:    make(map[string]float64, len(fields)),
			}
			var sum float64
			for key, fz := range fields {
				sum += fz.z
				cs.FieldZ[key] = fz.z
				if !fz.imputed {
					cs.Imputed = false
				}
			}
			if len(fields) > 0 {
				cs.Z = sum / float64(len(fields))
			}
			scores[c] = cs
		}
		out[regionID] = scores
	}

	zap.L().Debug("scoring: snapshot normalized",
		zap.Int("regions", len(out)),
		zap.Int("fields", len(metricFields)),
	)

	return out, nil
}

// computeFieldStats computes mean and standard deviation per metric field
// over the regions with non-missing values.
func computeFieldStats(snapshot []model.RawMetricSet) map[string]fieldStats {
	stats := make(map[string]fieldStats, len(metricFields))

	for _, f := range metricFields {
		var sum float64
		var n int
		for i := range snapshot {
			if v := f.Value(&snapshot[i]); v != nil {
				sum += *v
				n++
			}
		}
		if n == 0 {
			stats[f.Key] = fieldStats{}
			continue
		}

		mean := sum / float64(n)
		var sq float64
		for i := range snapshot {
			if v := f.Value(&snapshot[i]); v != nil {
				d := *v - mean
				sq += d * d
			}
		}

		// Population standard deviation: z-scores are relative to the full
		// snapshot, not a sample of it.
		stats[f.Key] = fieldStats{Mean: mean, Stddev: math.Sqrt(sq / float64(n)), N: n}
	}

	return stats
}
