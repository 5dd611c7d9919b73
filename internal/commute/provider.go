// Package commute implements the multi-stage commute-routing funnel:
// geometric prefilter, cached lookups, a bulk self-hosted matrix router,
// and a metered traffic-aware refiner with graceful degradation.
package commute

import (
	"context"
	"fmt"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// MatrixElement is one cell of a provider's travel matrix. Unreachable
// destinations come back as elements with Unreachable set, never omitted,
// so consumers can tell "no route exists" from "filtered out".
type MatrixElement struct {
	DurationSeconds float64
	DistanceMeters  float64
	Unreachable     bool
}

// MatrixProvider is the single capability the funnel requires of a routing
// backend: given one origin and N destinations, return N elements in input
// order. Implementations must honor context cancellation and deadlines.
type MatrixProvider interface {
	Name() string
	Matrix(ctx context.Context, origin model.Point, destinations []model.Point, mode model.Mode) ([]MatrixElement, error)
}

// ProviderUnavailableError reports that a routing provider failed wholesale
// (timeout, connection error, malformed response). For the bulk stage this
// fails the whole query batch — a partially failed matrix call is not
// trustworthy. For the precise stage the funnel recovers by keeping the
// bulk results.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("commute: provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }
