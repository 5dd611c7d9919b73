// Package model defines the shared domain types for the insights core:
// regions, raw metric snapshots, scores, and commute estimates.
package model

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Region is a CBS statistical area: an immutable boundary, a representative
// point, and a stable identifier. Regions are created by ingestion and are
// read-only everywhere else.
type Region struct {
	ID          string  `json:"id"` // LAMAS statistical-area code
	NameHe      string  `json:"name_he"`
	NameEn      string  `json:"name_en,omitempty"`
	City        string  `json:"city,omitempty"`
	Centroid    Point   `json:"centroid"`
	AreaSqKm    float64 `json:"area_sqkm"`
	BoundaryWKT string  `json:"-"` // MultiPolygon, EPSG:4326
}
