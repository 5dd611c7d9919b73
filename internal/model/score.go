package model

import "time"

// Component identifies one of the six scored dimensions.
type Component string

// The six scoring components. Demographics is tracked but carries weight 0
// in the reference configuration so socioeconomic effects already embedded
// in other components are not double-counted.
const (
	ComponentEducation    Component = "education"
	ComponentCrime        Component = "crime"
	ComponentServices     Component = "services"
	ComponentTransit      Component = "transit"
	ComponentHousing      Component = "housing"
	ComponentDemographics Component = "demographics"
)

// Components lists all components in canonical order.
var Components = []Component{
	ComponentEducation,
	ComponentCrime,
	ComponentServices,
	ComponentTransit,
	ComponentHousing,
	ComponentDemographics,
}

// ComponentScore is a per-region, per-component standardized value. Z is
// oriented so that higher always means more desirable (lower-is-better
// metrics are sign-inverted after standardization). Imputed marks a neutral
// zero substituted for missing data, distinguishable from a computed zero.
type ComponentScore struct {
	RegionID  string             `json:"region_id"`
	Component Component          `json:"component"`
	Z         float64            `json:"z"`
	Imputed   bool               `json:"imputed"`
	FieldZ    map[string]float64 `json:"field_z,omitempty"` // constituent field z-scores, for auditing
}

// Weights is the component weight vector. Weights are non-negative and need
// not sum to 1.
type Weights struct {
	Education    float64 `json:"education" yaml:"education" mapstructure:"education"`
	Crime        float64 `json:"crime" yaml:"crime" mapstructure:"crime"`
	Services     float64 `json:"services" yaml:"services" mapstructure:"services"`
	Transit      float64 `json:"transit" yaml:"transit" mapstructure:"transit"`
	Housing      float64 `json:"housing" yaml:"housing" mapstructure:"housing"`
	Demographics float64 `json:"demographics" yaml:"demographics" mapstructure:"demographics"`
}

// Of returns the weight assigned to a component.
func (w Weights) Of(c Component) float64 {
	switch c {
	case ComponentEducation:
		return w.Education
	case ComponentCrime:
		return w.Crime
	case ComponentServices:
		return w.Services
	case ComponentTransit:
		return w.Transit
	case ComponentHousing:
		return w.Housing
	case ComponentDemographics:
		return w.Demographics
	}
	return 0
}

// Sum returns the total of all component weights.
func (w Weights) Sum() float64 {
	return w.Education + w.Crime + w.Services + w.Transit + w.Housing + w.Demographics
}

// CompositeScore is the single 0-100 integer for a region, together with
// the per-component contributions and the exact weight vector used, for
// reproducibility when weights change over time. Contributions are for
// transparency; they do not re-sum exactly to the rounded total.
type CompositeScore struct {
	RegionID      string                `json:"region_id"`
	SnapshotID    string                `json:"snapshot_id"`
	Score         int                   `json:"score"`
	Contributions map[Component]float64 `json:"contributions"`
	Weights       Weights               `json:"weights"`
	ComputedAt    time.Time             `json:"computed_at"`
}
