package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It serves local
// development and single-machine runs without a Postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id           TEXT PRIMARY KEY,
	name_he      TEXT NOT NULL,
	name_en      TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	centroid_lat REAL NOT NULL,
	centroid_lon REAL NOT NULL,
	area_sqkm    REAL NOT NULL DEFAULT 0,
	boundary_wkt TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS raw_metrics (
	snapshot_id              TEXT NOT NULL REFERENCES snapshots(id),
	region_id                TEXT NOT NULL,
	population               REAL,
	socioeconomic_index      REAL,
	crime_rate_per_1000      REAL,
	school_matriculation_pct REAL,
	poi_within_300m          REAL,
	poi_within_500m          REAL,
	poi_within_800m          REAL,
	poi_within_1000m         REAL,
	transit_stop_density     REAL,
	housing_price_per_sqm    REAL,
	PRIMARY KEY (snapshot_id, region_id)
);

CREATE TABLE IF NOT EXISTS composite_scores (
	snapshot_id   TEXT NOT NULL REFERENCES snapshots(id),
	region_id     TEXT NOT NULL,
	score         INTEGER NOT NULL,
	contributions TEXT NOT NULL,
	weights       TEXT NOT NULL,
	computed_at   DATETIME NOT NULL,
	PRIMARY KEY (snapshot_id, region_id)
);

CREATE INDEX IF NOT EXISTS idx_regions_city ON regions(city);
CREATE INDEX IF NOT EXISTS idx_raw_metrics_region ON raw_metrics(region_id);
CREATE INDEX IF NOT EXISTS idx_scores_snapshot_score ON composite_scores(snapshot_id, score DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertRegions(ctx context.Context, regions []model.Region) (int64, error) {
	if len(regions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin regions tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO regions (id, name_he, name_en, city, centroid_lat, centroid_lon, area_sqkm, boundary_wkt)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name_he = excluded.name_he, name_en = excluded.name_en, city = excluded.city,
		   centroid_lat = excluded.centroid_lat, centroid_lon = excluded.centroid_lon,
		   area_sqkm = excluded.area_sqkm, boundary_wkt = excluded.boundary_wkt`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare region upsert")
	}
	defer stmt.Close()

	var n int64
	for _, r := range regions {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.NameHe, r.NameEn, r.City,
			r.Centroid.Lat, r.Centroid.Lon, r.AreaSqKm, r.BoundaryWKT,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert region %s", r.ID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit regions tx")
	}
	return n, nil
}

func (s *SQLiteStore) GetRegion(ctx context.Context, regionID string) (*model.Region, error) {
	var r model.Region
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name_he, name_en, city, centroid_lat, centroid_lon, area_sqkm, boundary_wkt
		 FROM regions WHERE id = ?`,
		regionID,
	).Scan(&r.ID, &r.NameHe, &r.NameEn, &r.City,
		&r.Centroid.Lat, &r.Centroid.Lon, &r.AreaSqKm, &r.BoundaryWKT)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get region %s", regionID)
	}
	return &r, nil
}

func (s *SQLiteStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name_he, name_en, city, centroid_lat, centroid_lon, area_sqkm, boundary_wkt
		 FROM regions ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list regions")
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.NameHe, &r.NameEn, &r.City,
			&r.Centroid.Lat, &r.Centroid.Lon, &r.AreaSqKm, &r.BoundaryWKT); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region")
		}
		regions = append(regions, r)
	}
	return regions, eris.Wrap(rows.Err(), "sqlite: list regions iterate")
}

func (s *SQLiteStore) CreateSnapshot(ctx context.Context, snapshot model.Snapshot) error {
	if snapshot.ID == "" {
		return eris.New("sqlite: snapshot id is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin snapshot tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id) VALUES (?)`, snapshot.ID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert snapshot %s", snapshot.ID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO raw_metrics
		 (snapshot_id, region_id, population, socioeconomic_index, crime_rate_per_1000,
		  school_matriculation_pct, poi_within_300m, poi_within_500m, poi_within_800m,
		  poi_within_1000m, transit_stop_density, housing_price_per_sqm)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare metric insert")
	}
	defer stmt.Close()

	for _, m := range snapshot.Metrics {
		if _, err := stmt.ExecContext(ctx, metricRow(snapshot.ID, m)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert metrics for region %s", m.RegionID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit snapshot tx")
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, snapshotID string) ([]model.RawMetricSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region_id, population, socioeconomic_index, crime_rate_per_1000,
		        school_matriculation_pct, poi_within_300m, poi_within_500m,
		        poi_within_800m, poi_within_1000m, transit_stop_density,
		        housing_price_per_sqm
		 FROM raw_metrics WHERE snapshot_id = ? ORDER BY region_id`,
		snapshotID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s", snapshotID)
	}
	defer rows.Close()

	var metrics []model.RawMetricSet
	for rows.Next() {
		var m model.RawMetricSet
		if err := rows.Scan(&m.RegionID, &m.Population, &m.SocioeconomicIndex,
			&m.CrimeRatePer1000, &m.SchoolMatriculationPct,
			&m.POIWithin300m, &m.POIWithin500m, &m.POIWithin800m, &m.POIWithin1000m,
			&m.TransitStopDensity, &m.HousingPricePerSqm); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan metric row")
		}
		metrics = append(metrics, m)
	}
	return metrics, eris.Wrap(rows.Err(), "sqlite: get snapshot iterate")
}

func (s *SQLiteStore) LatestSnapshotID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM snapshots ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", eris.New("sqlite: no snapshots available")
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: latest snapshot")
	}
	return id, nil
}

// SaveScores replaces the whole score batch for a snapshot in one
// transaction. SQLite serializes writers on its own, so no extra lock.
func (s *SQLiteStore) SaveScores(ctx context.Context, snapshotID string, scores []model.CompositeScore) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin scores tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM composite_scores WHERE snapshot_id = ?`, snapshotID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: clear scores for snapshot %s", snapshotID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO composite_scores (snapshot_id, region_id, score, contributions, weights, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare score insert")
	}
	defer stmt.Close()

	for _, sc := range scores {
		contribJSON, err := json.Marshal(sc.Contributions)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal contributions")
		}
		weightsJSON, err := json.Marshal(sc.Weights)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal weights")
		}
		if _, err := stmt.ExecContext(ctx,
			snapshotID, sc.RegionID, sc.Score,
			string(contribJSON), string(weightsJSON), sc.ComputedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert score for region %s", sc.RegionID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit scores tx")
}

func (s *SQLiteStore) GetScores(ctx context.Context, snapshotID string, filter ScoreFilter) ([]model.CompositeScore, error) {
	query := `SELECT region_id, score, contributions, weights, computed_at
	          FROM composite_scores WHERE snapshot_id = ?`
	args := []any{snapshotID}

	if filter.MinScore > 0 {
		query += ` AND score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY score DESC, region_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get scores")
	}
	defer rows.Close()

	var scores []model.CompositeScore
	for rows.Next() {
		var sc model.CompositeScore
		var contribJSON, weightsJSON string
		if err := rows.Scan(&sc.RegionID, &sc.Score, &contribJSON, &weightsJSON, &sc.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		sc.SnapshotID = snapshotID
		if err := json.Unmarshal([]byte(contribJSON), &sc.Contributions); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal contributions")
		}
		if err := json.Unmarshal([]byte(weightsJSON), &sc.Weights); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal weights")
		}
		scores = append(scores, sc)
	}
	return scores, eris.Wrap(rows.Err(), "sqlite: get scores iterate")
}
