package model

// RawMetricSet holds the raw per-region signal values for one snapshot.
// Nil pointers mean the value is missing for that region; the normalizer
// substitutes a neutral z-score and flags it as imputed. Counts, prices and
// population are never negative.
type RawMetricSet struct {
	RegionID string `json:"region_id"`

	// Demographics.
	Population         *float64 `json:"population,omitempty"`
	SocioeconomicIndex *float64 `json:"socioeconomic_index,omitempty"` // CBS cluster 1-10

	// Crime (incidents per 1000 residents per year).
	CrimeRatePer1000 *float64 `json:"crime_rate_per_1000,omitempty"`

	// Education.
	SchoolMatriculationPct *float64 `json:"school_matriculation_pct,omitempty"`

	// Services: POI counts within fixed radii of the region centroid.
	POIWithin300m  *float64 `json:"poi_within_300m,omitempty"`
	POIWithin500m  *float64 `json:"poi_within_500m,omitempty"`
	POIWithin800m  *float64 `json:"poi_within_800m,omitempty"`
	POIWithin1000m *float64 `json:"poi_within_1000m,omitempty"`

	// Transit (stops per square kilometer).
	TransitStopDensity *float64 `json:"transit_stop_density,omitempty"`

	// Housing (NIS per square meter).
	HousingPricePerSqm *float64 `json:"housing_price_per_sqm,omitempty"`
}

// Snapshot is a full RawMetricSet collection identified by a stable ID.
// Scoring is a pure function of a snapshot; two runs over the same snapshot
// must produce identical scores.
type Snapshot struct {
	ID      string         `json:"id"`
	Metrics []RawMetricSet `json:"metrics"`
}
