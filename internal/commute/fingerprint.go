package commute

import (
	"crypto/sha256"
	"fmt"
	"math"
	"time"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// Fingerprinting constants. Coordinates are rounded to 4 decimal places
// (~11m), departure times to the enclosing hour; nearby queries inside the
// same hour share cache entries.
const (
	coordPrecision = 1e4
	bucketWidth    = time.Hour
)

// roundCoord snaps a coordinate to the fingerprint grid. math.Round keeps
// the snap symmetric for coordinates west of the prime meridian or south of
// the equator.
func roundCoord(v float64) float64 {
	return math.Round(v*coordPrecision) / coordPrecision
}

// departureBucket truncates a departure time to its bucket.
func departureBucket(t time.Time) int64 {
	return t.UTC().Truncate(bucketWidth).Unix()
}

// Fingerprint returns the deterministic cache key for one
// (origin, destination, mode, departure-bucket) tuple. When the origin has
// a region identity, it is used instead of the raw coordinate so all
// queries originating from a region share entries.
func Fingerprint(originRegionID string, origin, destination model.Point, mode model.Mode, departure time.Time) string {
	originKey := originRegionID
	if originKey == "" {
		originKey = fmt.Sprintf("%.4f,%.4f", roundCoord(origin.Lat), roundCoord(origin.Lon))
	}

	raw := fmt.Sprintf("%s|%.4f,%.4f|%s|%d",
		originKey,
		roundCoord(destination.Lat), roundCoord(destination.Lon),
		mode,
		departureBucket(departure),
	)

	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h)
}
