package scoring

import (
	"math"
	"time"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// Fixed mapping constants: composite = round(50 + 10*Σ(w_i * z_i)), clamped
// to [0,100]. Chosen so that z-scores in the typical -3..+3 range span most
// of the 0-100 band; extreme outliers clamp rather than error.
const (
	compositeOffset = 50.0
	compositeScale  = 10.0
	compositeMin    = 0
	compositeMax    = 100
)

// Compose combines a region's six component scores into one CompositeScore.
// All six components must be present; missing-data handling happens
// upstream in the normalizer, so an absent component here is a defect for
// that region and returns MissingComponentError.
func Compose(regionID, snapshotID string, components map[model.Component]model.ComponentScore, w model.Weights, at time.Time) (model.CompositeScore, error) {
	var weighted float64
	contributions := make(map[model.Component]float64, len(model.Components))

	for _, c := range model.Components {
		cs, ok := components[c]
		if !ok {
			return model.CompositeScore{}, &MissingComponentError{RegionID: regionID, Component: c}
		}
		weighted += w.Of(c) * cs.Z
		contributions[c] = w.Of(c) * cs.Z * compositeScale
	}

	score := int(math.Round(compositeOffset + compositeScale*weighted))
	if score < compositeMin {
		score = compositeMin
	}
	if score > compositeMax {
		score = compositeMax
	}

	return model.CompositeScore{
		RegionID:      regionID,
		SnapshotID:    snapshotID,
		Score:         score,
		Contributions: contributions,
		Weights:       w, // exact vector used, for reproducibility
		ComputedAt:    at,
	}, nil
}
