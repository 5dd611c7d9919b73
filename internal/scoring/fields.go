package scoring

import "github.com/urbanalytics/insights-cli/internal/model"

// metricField describes one raw metric: which component it feeds, how to
// read it from a RawMetricSet, and whether a lower raw value is more
// desirable (those are sign-inverted after standardization).
type metricField struct {
	Key           string
	Component     model.Component
	LowerIsBetter bool
	Value         func(m *model.RawMetricSet) *float64
}

// metricFields is the fixed registry of raw metrics. Multi-field components
// (services) combine their constituent z-scores by an unweighted average;
// this sub-aggregation is deliberately not configurable at runtime.
var metricFields = []metricField{
	{
		Key:       "school_matriculation_pct",
		Component: model.ComponentEducation,
		Value:     func(m *model.RawMetricSet) *float64 { return m.SchoolMatriculationPct },
	},
	{
		Key:           "crime_rate_per_1000",
		Component:     model.ComponentCrime,
		LowerIsBetter: true,
		Value:         func(m *model.RawMetricSet) *float64 { return m.CrimeRatePer1000 },
	},
	{
		Key:       "poi_within_300m",
		Component: model.ComponentServices,
		Value:     func(m *model.RawMetricSet) *float64 { return m.POIWithin300m },
	},
	{
		Key:       "poi_within_500m",
		Component: model.ComponentServices,
		Value:     func(m *model.RawMetricSet) *float64 { return m.POIWithin500m },
	},
	{
		Key:       "poi_within_800m",
		Component: model.ComponentServices,
		Value:     func(m *model.RawMetricSet) *float64 { return m.POIWithin800m },
	},
	{
		Key:       "poi_within_1000m",
		Component: model.ComponentServices,
		Value:     func(m *model.RawMetricSet) *float64 { return m.POIWithin1000m },
	},
	{
		Key:       "transit_stop_density",
		Component: model.ComponentTransit,
		Value:     func(m *model.RawMetricSet) *float64 { return m.TransitStopDensity },
	},
	{
		Key:           "housing_price_per_sqm",
		Component:     model.ComponentHousing,
		LowerIsBetter: true, // price standardization rewards affordability
		Value:         func(m *model.RawMetricSet) *float64 { return m.HousingPricePerSqm },
	},
	{
		Key:       "socioeconomic_index",
		Component: model.ComponentDemographics,
		Value:     func(m *model.RawMetricSet) *float64 { return m.SocioeconomicIndex },
	},
}
