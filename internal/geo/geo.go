// Package geo provides the spatial primitives shared by the scoring and
// commute engines: great-circle distance, Israel bounds handling, and
// POI proximity calculations.
package geo

import (
	"math"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Israel's approximate bounding box.
const (
	israelMinLat = 29.5
	israelMaxLat = 33.3
	israelMinLon = 34.2
	israelMaxLon = 35.9
)

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(a, b model.Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*sinLon*sinLon

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// InIsrael reports whether a point falls within Israel's bounding box.
func InIsrael(p model.Point) bool {
	return p.Lat >= israelMinLat && p.Lat <= israelMaxLat &&
		p.Lon >= israelMinLon && p.Lon <= israelMaxLon
}

// ClampToIsrael constrains a point to Israel's bounding box. Coordinates
// that are wildly off (bad geocodes, swapped axes) are placed near the
// country center instead of being clamped to an edge.
func ClampToIsrael(p model.Point) model.Point {
	if p.Lat < 25 || p.Lat > 40 || p.Lon < 30 || p.Lon > 40 {
		return model.Point{
			Lat: 31.7683 + math.Mod(p.Lat, 1)*0.5,
			Lon: 35.2137 + math.Mod(p.Lon, 1)*0.5,
		}
	}
	return model.Point{
		Lat: math.Max(israelMinLat, math.Min(israelMaxLat, p.Lat)),
		Lon: math.Max(israelMinLon, math.Min(israelMaxLon, p.Lon)),
	}
}

// PlausibleRadiusKm converts a commute-time threshold into the farthest
// straight-line distance any mode could plausibly cover, using a generous
// speed ceiling in km/h. Destinations beyond this radius cannot satisfy the
// threshold and can be discarded without a routing call.
func PlausibleRadiusKm(thresholdHours, ceilingKmh float64) float64 {
	if thresholdHours <= 0 || ceilingKmh <= 0 {
		return 0
	}
	return thresholdHours * ceilingKmh
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
