package geo

import (
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// kmPerDegree is the approximate length of one degree of latitude.
const kmPerDegree = 111.32

// ShapeToMultiPolygon converts a shapefile Polygon to a go-geom MultiPolygon
// with SRID 4326. Returns nil for empty or unsupported shapes.
func ShapeToMultiPolygon(shape shp.Shape) *geom.MultiPolygon {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("geo: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// MarshalWKT encodes a geometry as WKT for storage.
func MarshalWKT(g geom.T) (string, error) {
	s, err := wkt.Marshal(g)
	if err != nil {
		return "", eris.Wrap(err, "geo: encode WKT")
	}
	return s, nil
}

// CentroidAndArea returns the area-weighted centroid of a MultiPolygon and
// its approximate area in square kilometers. Coordinates are lon/lat
// degrees; area uses a mid-latitude equirectangular approximation, which is
// accurate to well under a percent at Israel's extent.
func CentroidAndArea(mp *geom.MultiPolygon) (model.Point, float64) {
	var sumArea, sumCx, sumCy float64

	for i := 0; i < mp.NumPolygons(); i++ {
		ring := mp.Polygon(i).LinearRing(0)
		coords := ring.FlatCoords()
		stride := ring.Stride()

		// Shoelace formula over the exterior ring.
		var a, cx, cy float64
		n := len(coords) / stride
		for j := 0; j < n; j++ {
			x1, y1 := coords[j*stride], coords[j*stride+1]
			k := (j + 1) % n
			x2, y2 := coords[k*stride], coords[k*stride+1]
			cross := x1*y2 - x2*y1
			a += cross
			cx += (x1 + x2) * cross
			cy += (y1 + y2) * cross
		}
		a /= 2
		if a == 0 {
			continue
		}
		cx /= 6 * a
		cy /= 6 * a

		w := math.Abs(a)
		sumArea += w
		sumCx += cx * w
		sumCy += cy * w
	}

	if sumArea == 0 {
		return model.Point{}, 0
	}

	centroid := model.Point{Lon: sumCx / sumArea, Lat: sumCy / sumArea}
	areaSqKm := sumArea * kmPerDegree * kmPerDegree * math.Cos(radians(centroid.Lat))
	return centroid, areaSqKm
}
