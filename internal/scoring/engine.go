package scoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// SnapshotSource provides the raw metrics for a snapshot.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, snapshotID string) ([]model.RawMetricSet, error)
}

// RegionFailure records a region that could not be scored. One bad region
// never blocks the rest of the batch.
type RegionFailure struct {
	RegionID string `json:"region_id"`
	Reason   string `json:"reason"`
}

// Result is the output of a scoring batch.
type Result struct {
	SnapshotID string                 `json:"snapshot_id"`
	Scores     []model.CompositeScore `json:"scores"`
	Failed     []RegionFailure        `json:"failed,omitempty"`
}

// Engine computes composite scores for whole snapshots. It is a pure
// function of (snapshot, weights): no implicit "current dataset" state, so
// concurrent runs against different snapshots are safe and two runs over
// the same snapshot are identical.
type Engine struct {
	source  SnapshotSource
	weights model.Weights
	now     func() time.Time // injectable for testing
}

// NewEngine creates a scoring engine with the given snapshot source and
// weight vector.
func NewEngine(source SnapshotSource, weights model.Weights) *Engine {
	return &Engine{
		source:  source,
		weights: weights,
		now:     time.Now,
	}
}

// WithNow fixes the clock, for testing.
func (e *Engine) WithNow(t time.Time) *Engine {
	e.now = func() time.Time { return t }
	return e
}

// ComputeCompositeScores scores every region in the snapshot: normalize the
// whole snapshot, then compose the weighted composite per region. Fails
// with ErrEmptyDataset when the snapshot has no metrics; per-region
// composite failures are isolated into Result.Failed.
func (e *Engine) ComputeCompositeScores(ctx context.Context, snapshotID string) (*Result, error) {
	snapshot, err := e.source.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: load snapshot %s", snapshotID)
	}

	normalized, err := Normalize(snapshot)
	if err != nil {
		return nil, err
	}

	at := e.now()
	result := &Result{SnapshotID: snapshotID}

	// Deterministic region order keeps repeated runs byte-identical.
	regionIDs := make([]string, 0, len(normalized))
	for id := range normalized {
		regionIDs = append(regionIDs, id)
	}
	sort.Strings(regionIDs)

	for _, regionID := range regionIDs {
		score, err := Compose(regionID, snapshotID, normalized[regionID], e.weights, at)
		if err != nil {
			result.Failed = append(result.Failed, RegionFailure{
				RegionID: regionID,
				Reason:   err.Error(),
			})
			zap.L().Warn("scoring: region skipped",
				zap.String("region_id", regionID),
				zap.Error(err),
			)
			continue
		}
		result.Scores = append(result.Scores, score)
	}

	zap.L().Info("scoring: batch complete",
		zap.String("snapshot_id", snapshotID),
		zap.Int("scored", len(result.Scores)),
		zap.Int("failed", len(result.Failed)),
	)

	return result, nil
}
