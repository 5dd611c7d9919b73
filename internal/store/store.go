// Package store persists regions, metric snapshots, and composite scores.
// Two backends: Postgres for deployments, SQLite for local single-file use.
package store

import (
	"context"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// ScoreFilter specifies criteria for listing composite scores.
type ScoreFilter struct {
	MinScore int `json:"min_score,omitempty"`
	Limit    int `json:"limit,omitempty"`
	Offset   int `json:"offset,omitempty"`
}

// Store defines the persistence interface for the insights core.
//
// Snapshots are immutable once written; scoring reads them and writes
// composite scores keyed by (snapshot, region). SaveScores replaces the
// whole batch for a snapshot atomically, so readers never observe a
// half-scored snapshot.
type Store interface {
	// Regions
	UpsertRegions(ctx context.Context, regions []model.Region) (int64, error)
	GetRegion(ctx context.Context, regionID string) (*model.Region, error)
	ListRegions(ctx context.Context) ([]model.Region, error)

	// Metric snapshots
	CreateSnapshot(ctx context.Context, snapshot model.Snapshot) error
	GetSnapshot(ctx context.Context, snapshotID string) ([]model.RawMetricSet, error)
	LatestSnapshotID(ctx context.Context) (string, error)

	// Composite scores
	SaveScores(ctx context.Context, snapshotID string, scores []model.CompositeScore) error
	GetScores(ctx context.Context, snapshotID string, filter ScoreFilter) ([]model.CompositeScore, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
