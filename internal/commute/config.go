package commute

import (
	"time"

	"github.com/rotisserie/eris"
)

// Config controls the funnel's stage transitions and cost ceilings.
type Config struct {
	// SpeedCeilingKmh converts the query's time threshold into the
	// prefilter radius. Generous on purpose: no mode beats it, so the
	// prefilter never discards a reachable destination.
	SpeedCeilingKmh float64

	// BulkMaxCandidates caps how many destinations one bulk matrix call
	// may carry.
	BulkMaxCandidates int

	// PreciseMaxCandidates is the candidate-count ceiling under which the
	// precise refiner may trigger.
	PreciseMaxCandidates int

	// PeakWindows are the local-time windows in which driving estimates
	// are refined with the traffic-aware provider.
	PeakWindows []PeakWindow

	// BulkTimeout and PreciseTimeout bound each provider call. A timed-out
	// call is treated exactly like a provider failure.
	BulkTimeout    time.Duration
	PreciseTimeout time.Duration
}

// PeakWindow is an inclusive-start, exclusive-end window over hours of the
// day (local time), e.g. {7, 10} for the morning rush.
type PeakWindow struct {
	StartHour int `yaml:"start_hour" mapstructure:"start_hour"`
	EndHour   int `yaml:"end_hour" mapstructure:"end_hour"`
}

// Contains reports whether t falls inside the window.
func (w PeakWindow) Contains(t time.Time) bool {
	h := t.Hour()
	return h >= w.StartHour && h < w.EndHour
}

// DefaultConfig returns the reference funnel configuration: Israeli rush
// hours, a 120 km/h prefilter ceiling, and candidate caps sized for a
// self-hosted OSRM instance.
func DefaultConfig() Config {
	return Config{
		SpeedCeilingKmh:      120,
		BulkMaxCandidates:    1000,
		PreciseMaxCandidates: 100,
		PeakWindows: []PeakWindow{
			{StartHour: 7, EndHour: 10},
			{StartHour: 16, EndHour: 19},
		},
		BulkTimeout:    30 * time.Second,
		PreciseTimeout: 15 * time.Second,
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.SpeedCeilingKmh <= 0 {
		return eris.New("commute: speed ceiling must be positive")
	}
	if c.BulkMaxCandidates <= 0 {
		return eris.New("commute: bulk candidate cap must be positive")
	}
	if c.PreciseMaxCandidates <= 0 {
		return eris.New("commute: precise candidate cap must be positive")
	}
	for _, w := range c.PeakWindows {
		if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
			return eris.Errorf("commute: invalid peak window %d-%d", w.StartHour, w.EndHour)
		}
	}
	return nil
}

// inPeak reports whether the departure time falls in any configured peak
// window.
func (c Config) inPeak(departure time.Time) bool {
	for _, w := range c.PeakWindows {
		if w.Contains(departure) {
			return true
		}
	}
	return false
}
