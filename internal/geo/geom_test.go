package geo

import (
	"math"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareShape(lon, lat, side float64) *shp.Polygon {
	points := []shp.Point{
		{X: lon, Y: lat},
		{X: lon + side, Y: lat},
		{X: lon + side, Y: lat + side},
		{X: lon, Y: lat + side},
		{X: lon, Y: lat},
	}
	return (*shp.Polygon)(shp.NewPolyLine([][]shp.Point{points}))
}

func TestShapeToMultiPolygon(t *testing.T) {
	mp := ShapeToMultiPolygon(squareShape(34.80, 32.05, 0.01))
	require.NotNil(t, mp)
	assert.Equal(t, 4326, mp.SRID())
	assert.Equal(t, 1, mp.NumPolygons())
}

func TestShapeToMultiPolygon_Empty(t *testing.T) {
	assert.Nil(t, ShapeToMultiPolygon(&shp.Polygon{}))
	assert.Nil(t, ShapeToMultiPolygon(&shp.Point{X: 34.8, Y: 32.05}))
}

func TestMarshalWKT(t *testing.T) {
	mp := ShapeToMultiPolygon(squareShape(34.80, 32.05, 0.01))
	require.NotNil(t, mp)

	s, err := MarshalWKT(mp)
	require.NoError(t, err)
	assert.Contains(t, s, "MULTIPOLYGON")
	assert.Contains(t, s, "34.8")
}

func TestCentroidAndArea_Square(t *testing.T) {
	side := 0.01
	mp := ShapeToMultiPolygon(squareShape(34.80, 32.05, side))
	require.NotNil(t, mp)

	centroid, area := CentroidAndArea(mp)

	assert.InDelta(t, 34.805, centroid.Lon, 1e-6)
	assert.InDelta(t, 32.055, centroid.Lat, 1e-6)

	// 0.01 x 0.01 degrees near 32N: ~1.113 km tall, ~0.944 km wide.
	want := side * side * kmPerDegree * kmPerDegree * math.Cos(radians(32.055))
	assert.InDelta(t, want, area, 1e-9)
	assert.Greater(t, area, 1.0)
	assert.Less(t, area, 1.1)
}

func TestCentroidAndArea_Degenerate(t *testing.T) {
	// A zero-area "ring" contributes nothing.
	line := []shp.Point{
		{X: 34.80, Y: 32.05},
		{X: 34.81, Y: 32.05},
		{X: 34.80, Y: 32.05},
	}
	mp := ShapeToMultiPolygon((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{line})))
	if mp == nil {
		return
	}
	_, area := CentroidAndArea(mp)
	assert.Zero(t, area)
}
