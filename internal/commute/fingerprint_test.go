package commute

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/urbanalytics/insights-cli/internal/model"
)

func TestFingerprintDeterministic(t *testing.T) {
	origin := model.Point{Lat: 32.0853, Lon: 34.7818}
	dest := model.Point{Lat: 31.7683, Lon: 35.2137}
	dep := time.Date(2025, 6, 1, 8, 15, 0, 0, time.UTC)

	a := Fingerprint("", origin, dest, model.ModeDriving, dep)
	b := Fingerprint("", origin, dest, model.ModeDriving, dep)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "sha-256 hex digest")
}

func TestFingerprintHourBucket(t *testing.T) {
	origin := model.Point{Lat: 32.0853, Lon: 34.7818}
	dest := model.Point{Lat: 31.7683, Lon: 35.2137}

	early := time.Date(2025, 6, 1, 8, 5, 0, 0, time.UTC)
	late := time.Date(2025, 6, 1, 8, 55, 0, 0, time.UTC)
	nextHour := time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC)

	assert.Equal(t,
		Fingerprint("", origin, dest, model.ModeDriving, early),
		Fingerprint("", origin, dest, model.ModeDriving, late),
		"departures in the same hour share a bucket")
	assert.NotEqual(t,
		Fingerprint("", origin, dest, model.ModeDriving, early),
		Fingerprint("", origin, dest, model.ModeDriving, nextHour))
}

func TestFingerprintCoordinateRounding(t *testing.T) {
	origin := model.Point{Lat: 32.0853, Lon: 34.7818}
	dep := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	near := model.Point{Lat: 31.76830, Lon: 35.21370}
	nearer := model.Point{Lat: 31.76832, Lon: 35.21368} // inside the ~11m grid cell
	far := model.Point{Lat: 31.7690, Lon: 35.2137}

	assert.Equal(t,
		Fingerprint("", origin, near, model.ModeDriving, dep),
		Fingerprint("", origin, nearer, model.ModeDriving, dep))
	assert.NotEqual(t,
		Fingerprint("", origin, near, model.ModeDriving, dep),
		Fingerprint("", origin, far, model.ModeDriving, dep))
}

func TestFingerprintNegativeCoordinateRounding(t *testing.T) {
	// Rounding must be symmetric around zero: a southern-hemisphere
	// coordinate snaps to the same grid cell as its northern mirror.
	assert.Equal(t, -31.7683, roundCoord(-31.76832))
	assert.Equal(t, 31.7683, roundCoord(31.76832))
	assert.Equal(t, -roundCoord(31.76832), roundCoord(-31.76832))

	origin := model.Point{Lat: -33.8688, Lon: 151.2093}
	dep := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	near := model.Point{Lat: -33.92390, Lon: 151.18520}
	nearer := model.Point{Lat: -33.92392, Lon: 151.18518} // inside the ~11m grid cell

	assert.Equal(t,
		Fingerprint("", origin, near, model.ModeDriving, dep),
		Fingerprint("", origin, nearer, model.ModeDriving, dep))
}

func TestFingerprintModeAndRegionIdentity(t *testing.T) {
	origin := model.Point{Lat: 32.0853, Lon: 34.7818}
	dest := model.Point{Lat: 31.7683, Lon: 35.2137}
	dep := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	assert.NotEqual(t,
		Fingerprint("", origin, dest, model.ModeDriving, dep),
		Fingerprint("", origin, dest, model.ModeTransit, dep))

	// With a region identity the raw origin coordinate is irrelevant.
	shifted := model.Point{Lat: 32.09, Lon: 34.79}
	assert.Equal(t,
		Fingerprint("5000-612", origin, dest, model.ModeDriving, dep),
		Fingerprint("5000-612", shifted, dest, model.ModeDriving, dep))
}
