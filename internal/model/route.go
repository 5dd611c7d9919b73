package model

import "time"

// Mode is a transport mode for commute estimation.
type Mode string

// Supported transport modes.
const (
	ModeDriving Mode = "driving"
	ModeTransit Mode = "transit"
	ModeWalking Mode = "walking"
	ModeCycling Mode = "cycling"
)

// ValidMode reports whether m is a supported transport mode.
func ValidMode(m Mode) bool {
	switch m {
	case ModeDriving, ModeTransit, ModeWalking, ModeCycling:
		return true
	}
	return false
}

// Provenance tags a routing estimate with the pipeline stage that produced it.
type Provenance string

const (
	// ProvenanceGeometric marks destinations discarded by the straight-line
	// prefilter before any routing provider was consulted.
	ProvenanceGeometric Provenance = "geometric"
	// ProvenanceBulk marks estimates from the self-hosted matrix router.
	ProvenanceBulk Provenance = "bulk"
	// ProvenancePrecise marks traffic-aware estimates from the metered provider.
	ProvenancePrecise Provenance = "precise"
)

// Confidence grades how much an estimate should be trusted.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// RouteQuery describes a single commute-estimate request. Ephemeral, never
// persisted.
type RouteQuery struct {
	Origin         Point
	OriginRegionID string // optional; used for cache identity when set
	Destinations   []Point
	Mode           Mode
	Departure      time.Time     // zero means "now"
	MaxDuration    time.Duration // commute-time threshold driving the prefilter; 0 disables it
	HighPrecision  bool          // caller explicitly requests the metered provider
}

// RouteEstimate is the travel-time result for one destination. Unreachable
// destinations keep their slot with the sentinel set, so consumers can
// distinguish "filtered out" or "no route" from a missing answer.
type RouteEstimate struct {
	Destination     Point      `json:"destination"`
	DurationSeconds float64    `json:"duration_seconds"`
	DistanceMeters  float64    `json:"distance_meters"`
	Unreachable     bool       `json:"unreachable"`
	Provenance      Provenance `json:"provenance"`
	Confidence      Confidence `json:"confidence"`
}
