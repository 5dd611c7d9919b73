package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/urbanalytics/insights-cli/internal/db"
	"github.com/urbanalytics/insights-cli/internal/model"
	"github.com/urbanalytics/insights-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// scoreBatchLockID is the advisory lock guarding score batch replacement,
// so two concurrent scoring runs cannot interleave their delete+copy.
const scoreBatchLockID = 7301845

// metricColumns is the raw_metrics column order shared by COPY and SELECT.
var metricColumns = []string{
	"snapshot_id", "region_id",
	"population", "socioeconomic_index", "crime_rate_per_1000",
	"school_matriculation_pct",
	"poi_within_300m", "poi_within_500m", "poi_within_800m", "poi_within_1000m",
	"transit_stop_density", "housing_price_per_sqm",
}

var scoreColumns = []string{
	"snapshot_id", "region_id", "score", "contributions", "weights", "computed_at",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	// The database may still be accepting connections when the process
	// starts (container orchestration races), so the first ping retries.
	// Any ping failure at startup is worth retrying, not just ones
	// classified as transient.
	pingRetry := resilience.DefaultRetryConfig()
	pingRetry.ShouldRetry = func(error) bool { return true }
	pingRetry.OnRetry = resilience.RetryLogger("postgres", "ping")
	if err := resilience.Do(ctx, pingRetry, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., the region ingestion loader).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id           TEXT PRIMARY KEY,
	name_he      TEXT NOT NULL,
	name_en      TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	centroid_lat DOUBLE PRECISION NOT NULL,
	centroid_lon DOUBLE PRECISION NOT NULL,
	area_sqkm    DOUBLE PRECISION NOT NULL DEFAULT 0,
	boundary_wkt TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS raw_metrics (
	snapshot_id              TEXT NOT NULL REFERENCES snapshots(id),
	region_id                TEXT NOT NULL,
	population               DOUBLE PRECISION,
	socioeconomic_index      DOUBLE PRECISION,
	crime_rate_per_1000      DOUBLE PRECISION,
	school_matriculation_pct DOUBLE PRECISION,
	poi_within_300m          DOUBLE PRECISION,
	poi_within_500m          DOUBLE PRECISION,
	poi_within_800m          DOUBLE PRECISION,
	poi_within_1000m         DOUBLE PRECISION,
	transit_stop_density     DOUBLE PRECISION,
	housing_price_per_sqm    DOUBLE PRECISION,
	PRIMARY KEY (snapshot_id, region_id)
);

CREATE TABLE IF NOT EXISTS composite_scores (
	snapshot_id   TEXT NOT NULL REFERENCES snapshots(id),
	region_id     TEXT NOT NULL,
	score         INTEGER NOT NULL,
	contributions JSONB NOT NULL,
	weights       JSONB NOT NULL,
	computed_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (snapshot_id, region_id)
);

CREATE INDEX IF NOT EXISTS idx_regions_city ON regions(city);
CREATE INDEX IF NOT EXISTS idx_raw_metrics_region ON raw_metrics(region_id);
CREATE INDEX IF NOT EXISTS idx_scores_snapshot_score ON composite_scores(snapshot_id, score DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertRegions(ctx context.Context, regions []model.Region) (int64, error) {
	rows := make([][]any, len(regions))
	for i, r := range regions {
		rows[i] = []any{
			r.ID, r.NameHe, r.NameEn, r.City,
			r.Centroid.Lat, r.Centroid.Lon, r.AreaSqKm, r.BoundaryWKT,
		}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "regions",
		Columns: []string{
			"id", "name_he", "name_en", "city",
			"centroid_lat", "centroid_lon", "area_sqkm", "boundary_wkt",
		},
		ConflictKeys: []string{"id"},
	}, rows)
}

func (s *PostgresStore) GetRegion(ctx context.Context, regionID string) (*model.Region, error) {
	var r model.Region
	err := s.pool.QueryRow(ctx,
		`SELECT id, name_he, name_en, city, centroid_lat, centroid_lon, area_sqkm, boundary_wkt
		 FROM regions WHERE id = $1`,
		regionID,
	).Scan(&r.ID, &r.NameHe, &r.NameEn, &r.City,
		&r.Centroid.Lat, &r.Centroid.Lon, &r.AreaSqKm, &r.BoundaryWKT)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get region %s", regionID)
	}
	return &r, nil
}

func (s *PostgresStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name_he, name_en, city, centroid_lat, centroid_lon, area_sqkm, boundary_wkt
		 FROM regions ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list regions")
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.NameHe, &r.NameEn, &r.City,
			&r.Centroid.Lat, &r.Centroid.Lon, &r.AreaSqKm, &r.BoundaryWKT); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region")
		}
		regions = append(regions, r)
	}
	return regions, eris.Wrap(rows.Err(), "postgres: list regions iterate")
}

func (s *PostgresStore) CreateSnapshot(ctx context.Context, snapshot model.Snapshot) error {
	if snapshot.ID == "" {
		return eris.New("postgres: snapshot id is empty")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin snapshot tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshots (id, created_at) VALUES ($1, now())`,
		snapshot.ID,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert snapshot %s", snapshot.ID)
	}

	rows := make([][]any, len(snapshot.Metrics))
	for i, m := range snapshot.Metrics {
		rows[i] = metricRow(snapshot.ID, m)
	}
	if _, err := db.CopyFrom(ctx, tx, "raw_metrics", metricColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy metrics for snapshot %s", snapshot.ID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit snapshot tx")
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, snapshotID string) ([]model.RawMetricSet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT region_id, population, socioeconomic_index, crime_rate_per_1000,
		        school_matriculation_pct, poi_within_300m, poi_within_500m,
		        poi_within_800m, poi_within_1000m, transit_stop_density,
		        housing_price_per_sqm
		 FROM raw_metrics WHERE snapshot_id = $1 ORDER BY region_id`,
		snapshotID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get snapshot %s", snapshotID)
	}
	defer rows.Close()

	var metrics []model.RawMetricSet
	for rows.Next() {
		var m model.RawMetricSet
		if err := rows.Scan(&m.RegionID, &m.Population, &m.SocioeconomicIndex,
			&m.CrimeRatePer1000, &m.SchoolMatriculationPct,
			&m.POIWithin300m, &m.POIWithin500m, &m.POIWithin800m, &m.POIWithin1000m,
			&m.TransitStopDensity, &m.HousingPricePerSqm); err != nil {
			return nil, eris.Wrap(err, "postgres: scan metric row")
		}
		metrics = append(metrics, m)
	}
	return metrics, eris.Wrap(rows.Err(), "postgres: get snapshot iterate")
}

func (s *PostgresStore) LatestSnapshotID(ctx context.Context) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM snapshots ORDER BY created_at DESC LIMIT 1`,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", eris.New("postgres: no snapshots available")
		}
		return "", eris.Wrap(err, "postgres: latest snapshot")
	}
	return id, nil
}

// SaveScores replaces the whole score batch for a snapshot inside one
// transaction. An advisory transaction lock serializes concurrent scoring
// runs; readers see either the old batch or the new one, never a mix.
func (s *PostgresStore) SaveScores(ctx context.Context, snapshotID string, scores []model.CompositeScore) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin scores tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, scoreBatchLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire score batch lock")
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM composite_scores WHERE snapshot_id = $1`, snapshotID,
	); err != nil {
		return eris.Wrapf(err, "postgres: clear scores for snapshot %s", snapshotID)
	}

	rows := make([][]any, 0, len(scores))
	for _, sc := range scores {
		contribJSON, err := json.Marshal(sc.Contributions)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal contributions")
		}
		weightsJSON, err := json.Marshal(sc.Weights)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal weights")
		}
		rows = append(rows, []any{
			snapshotID, sc.RegionID, sc.Score, contribJSON, weightsJSON, sc.ComputedAt,
		})
	}
	if _, err := db.CopyFrom(ctx, tx, "composite_scores", scoreColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy scores for snapshot %s", snapshotID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit scores tx")
}

func (s *PostgresStore) GetScores(ctx context.Context, snapshotID string, filter ScoreFilter) ([]model.CompositeScore, error) {
	query := `SELECT region_id, score, contributions, weights, computed_at
	          FROM composite_scores WHERE snapshot_id = $1`
	args := []any{snapshotID}
	argIdx := 2

	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND score >= $%d`, argIdx)
		args = append(args, filter.MinScore)
		argIdx++
	}
	query += ` ORDER BY score DESC, region_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get scores")
	}
	defer rows.Close()

	var scores []model.CompositeScore
	for rows.Next() {
		var sc model.CompositeScore
		var contribJSON, weightsJSON []byte
		if err := rows.Scan(&sc.RegionID, &sc.Score, &contribJSON, &weightsJSON, &sc.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		sc.SnapshotID = snapshotID
		if err := json.Unmarshal(contribJSON, &sc.Contributions); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal contributions")
		}
		if err := json.Unmarshal(weightsJSON, &sc.Weights); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal weights")
		}
		scores = append(scores, sc)
	}
	return scores, eris.Wrap(rows.Err(), "postgres: get scores iterate")
}

// metricRow flattens a RawMetricSet into the raw_metrics column order.
func metricRow(snapshotID string, m model.RawMetricSet) []any {
	return []any{
		snapshotID, m.RegionID,
		m.Population, m.SocioeconomicIndex, m.CrimeRatePer1000,
		m.SchoolMatriculationPct,
		m.POIWithin300m, m.POIWithin500m, m.POIWithin800m, m.POIWithin1000m,
		m.TransitStopDensity, m.HousingPricePerSqm,
	}
}
