package commute

import (
	"time"

	"github.com/urbanalytics/insights-cli/internal/geo"
	"github.com/urbanalytics/insights-cli/internal/model"
)

// Prefilter marks which destinations could plausibly satisfy the commute
// threshold by straight-line distance alone. It is pure computation — no
// provider calls — and is the only stage allowed to run over an unbounded
// candidate set in bulk.
//
// The returned slice has one bool per destination: true means the candidate
// survives into the routing stages. A zero maxDuration disables filtering
// and every candidate survives.
func Prefilter(origin model.Point, destinations []model.Point, maxDuration time.Duration, speedCeilingKmh float64) []bool {
	keep := make([]bool, len(destinations))

	radiusKm := geo.PlausibleRadiusKm(maxDuration.Hours(), speedCeilingKmh)
	if radiusKm <= 0 {
		for i := range keep {
			keep[i] = true
		}
		return keep
	}

	for i, d := range destinations {
		keep[i] = geo.HaversineKm(origin, d) <= radiusKm
	}
	return keep
}
