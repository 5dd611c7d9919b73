// Package scoring turns per-region raw metrics into normalized component
// z-scores and a single composite 0-100 score per region.
package scoring

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// DefaultWeights returns the reference weight vector. Demographics carries
// weight 0: it stays visible in the output without double-counting
// socioeconomic effects already embedded in the other components.
func DefaultWeights() model.Weights {
	return model.Weights{
		Education:    0.25,
		Crime:        0.20,
		Services:     0.20,
		Transit:      0.15,
		Housing:      0.20,
		Demographics: 0,
	}
}

// ValidateWeights checks that a weight vector is usable: all weights
// non-negative and at least one positive.
func ValidateWeights(w model.Weights) error {
	var errs []string

	named := map[string]float64{
		"education":    w.Education,
		"crime":        w.Crime,
		"services":     w.Services,
		"transit":      w.Transit,
		"housing":      w.Housing,
		"demographics": w.Demographics,
	}
	for name, v := range named {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", name))
		}
	}
	if w.Sum() <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring: weight validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadWeightsProfile reads a weight vector from a YAML profile file.
// The file has a top-level "weights" key; absent components default to 0.
func LoadWeightsProfile(path string) (model.Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Weights{}, eris.Wrapf(err, "scoring: read weights profile %s", path)
	}

	var wrapper struct {
		Weights model.Weights `yaml:"weights"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return model.Weights{}, eris.Wrap(err, "scoring: parse weights profile")
	}

	if err := ValidateWeights(wrapper.Weights); err != nil {
		return model.Weights{}, err
	}
	return wrapper.Weights, nil
}
