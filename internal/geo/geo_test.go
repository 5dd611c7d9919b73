package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/urbanalytics/insights-cli/internal/model"
)

var (
	telAviv   = model.Point{Lat: 32.0853, Lon: 34.7818}
	jerusalem = model.Point{Lat: 31.7683, Lon: 35.2137}
	haifa     = model.Point{Lat: 32.7940, Lon: 34.9896}
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name string
		a, b model.Point
		want float64
	}{
		{"zero distance", telAviv, telAviv, 0},
		{"tel aviv to jerusalem", telAviv, jerusalem, 54.0},
		{"tel aviv to haifa", telAviv, haifa, 81.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 2.0)
		})
	}
}

func TestHaversineSymmetric(t *testing.T) {
	assert.InDelta(t, HaversineKm(telAviv, haifa), HaversineKm(haifa, telAviv), 1e-9)
}

func TestInIsrael(t *testing.T) {
	assert.True(t, InIsrael(telAviv))
	assert.True(t, InIsrael(jerusalem))
	assert.False(t, InIsrael(model.Point{Lat: 40.7128, Lon: -74.0060})) // New York
	assert.False(t, InIsrael(model.Point{Lat: 35.0, Lon: 35.0}))       // north of border
}

func TestClampToIsrael(t *testing.T) {
	t.Run("inside unchanged", func(t *testing.T) {
		assert.Equal(t, telAviv, ClampToIsrael(telAviv))
	})

	t.Run("edge clamp", func(t *testing.T) {
		got := ClampToIsrael(model.Point{Lat: 34.1, Lon: 35.0})
		assert.Equal(t, 33.3, got.Lat)
		assert.Equal(t, 35.0, got.Lon)
	})

	t.Run("wild coordinates land near center", func(t *testing.T) {
		got := ClampToIsrael(model.Point{Lat: 52.52, Lon: 13.405}) // Berlin
		assert.True(t, InIsrael(got), "clamped point should be in Israel, got %+v", got)
	})
}

func TestPlausibleRadiusKm(t *testing.T) {
	// 30 minutes at a 120 km/h ceiling covers at most 60 km straight-line.
	assert.InDelta(t, 60.0, PlausibleRadiusKm(0.5, 120), 1e-9)
	assert.Equal(t, 0.0, PlausibleRadiusKm(0, 120))
	assert.Equal(t, 0.0, PlausibleRadiusKm(1, 0))
}

func TestNearestKm(t *testing.T) {
	d, idx := NearestKm(telAviv, []model.Point{jerusalem, haifa})
	assert.Equal(t, 0, idx)
	assert.InDelta(t, 54.0, d, 2.0)

	d, idx = NearestKm(telAviv, nil)
	assert.Equal(t, -1, idx)
	assert.True(t, math.IsInf(d, 1))
}

func TestCountWithinKm(t *testing.T) {
	points := []model.Point{jerusalem, haifa, telAviv}
	assert.Equal(t, 1, CountWithinKm(telAviv, points, 1))   // itself
	assert.Equal(t, 2, CountWithinKm(telAviv, points, 60))  // + jerusalem
	assert.Equal(t, 3, CountWithinKm(telAviv, points, 100)) // all
}

func TestProximityScore(t *testing.T) {
	tests := []struct {
		name string
		dist float64
		max  float64
		want float64
	}{
		{"at origin", 0, 2.0, 100},
		{"halfway", 1.0, 2.0, 50},
		{"at max", 2.0, 2.0, 0},
		{"beyond max floors at zero", 5.0, 2.0, 0},
		{"zero max", 1.0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ProximityScore(tt.dist, tt.max), 0.01)
		})
	}
}
