package regions

import (
	"context"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urbanalytics/insights-cli/internal/geo"
	"github.com/urbanalytics/insights-cli/internal/model"
)

// Radii for the services POI counts, matching the raw metric fields.
var poiRadiiKm = []float64{0.3, 0.5, 0.8, 1.0}

// enrichConcurrency bounds the number of regions enriched in parallel.
const enrichConcurrency = 8

// Enricher computes POI-derived raw metrics for regions. It holds the POI
// set split by role: service POIs feed the radius counts, bus stops feed
// transit density.
type Enricher struct {
	services []model.Point
	busStops []model.Point
}

// NewEnricher indexes a POI set for enrichment.
func NewEnricher(pois []model.POI) *Enricher {
	e := &Enricher{}
	for _, p := range pois {
		if p.Category == model.POIBusStop {
			e.busStops = append(e.busStops, p.Location)
			continue
		}
		e.services = append(e.services, p.Location)
	}
	return e
}

// Enrich computes the POI and transit metric fields for every region,
// returning one RawMetricSet per region in input order. Fields that come
// from CBS tables (population, crime, education, housing) are left nil for
// the caller to merge.
func (e *Enricher) Enrich(ctx context.Context, regions []model.Region) ([]model.RawMetricSet, error) {
	metrics := make([]model.RawMetricSet, len(regions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)

	for i, region := range regions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			metrics[i] = e.enrichOne(region)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("regions enriched",
		zap.Int("regions", len(regions)),
		zap.Int("service_pois", len(e.services)),
		zap.Int("bus_stops", len(e.busStops)))
	return metrics, nil
}

func (e *Enricher) enrichOne(region model.Region) model.RawMetricSet {
	m := model.RawMetricSet{RegionID: region.ID}

	counts := make([]float64, len(poiRadiiKm))
	for j, radius := range poiRadiiKm {
		counts[j] = float64(geo.CountWithinKm(region.Centroid, e.services, radius))
	}
	m.POIWithin300m = &counts[0]
	m.POIWithin500m = &counts[1]
	m.POIWithin800m = &counts[2]
	m.POIWithin1000m = &counts[3]

	if density, ok := e.transitDensity(region); ok {
		m.TransitStopDensity = &density
	}
	return m
}

// transitDensity approximates stops per square kilometer by counting bus
// stops inside a circle of the region's equivalent radius. Regions smaller
// than the minimum radius use it as a floor so tiny urban regions are not
// dominated by a single stop on their edge.
func (e *Enricher) transitDensity(region model.Region) (float64, bool) {
	if len(e.busStops) == 0 {
		return 0, false
	}

	radiusKm := math.Sqrt(region.AreaSqKm / math.Pi)
	if radiusKm < 0.3 {
		radiusKm = 0.3
	}
	circleArea := math.Pi * radiusKm * radiusKm

	count := geo.CountWithinKm(region.Centroid, e.busStops, radiusKm)
	return float64(count) / circleArea, true
}

// NearestService reports the distance to the closest service POI and a
// linear 0-100 proximity score (100 at the POI, 0 at maxKm and beyond).
func (e *Enricher) NearestService(p model.Point, maxKm float64) (distKm, score float64, ok bool) {
	dist, idx := geo.NearestKm(p, e.services)
	if idx < 0 {
		return 0, 0, false
	}
	return dist, geo.ProximityScore(dist, maxKm), true
}
