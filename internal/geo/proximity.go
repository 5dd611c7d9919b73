package geo

import (
	"math"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// NearestKm returns the distance in kilometers from origin to the closest of
// the given points, and its index. Returns (+Inf, -1) for an empty slice.
func NearestKm(origin model.Point, points []model.Point) (float64, int) {
	best := math.Inf(1)
	idx := -1
	for i, p := range points {
		if d := HaversineKm(origin, p); d < best {
			best = d
			idx = i
		}
	}
	return best, idx
}

// CountWithinKm returns how many of the given points lie within radiusKm of
// origin.
func CountWithinKm(origin model.Point, points []model.Point, radiusKm float64) int {
	var n int
	for _, p := range points {
		if HaversineKm(origin, p) <= radiusKm {
			n++
		}
	}
	return n
}

// ProximityScore maps a distance to a 0-100 score that is 100 at distance
// zero and decreases linearly to 0 at maxKm.
func ProximityScore(distKm, maxKm float64) float64 {
	if maxKm <= 0 {
		return 0
	}
	return math.Max(0, 100*(1-distKm/maxKm))
}
