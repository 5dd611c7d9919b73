package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 120.0, cfg.Commute.SpeedCeilingKmh, 0.001)
	assert.Equal(t, 1000, cfg.Commute.BulkMaxCandidates)
	assert.Equal(t, 100, cfg.Commute.PreciseMaxCandidates)
	assert.Equal(t, 30, cfg.Commute.BulkTimeoutSecs)
	assert.Equal(t, 15, cfg.Commute.PreciseTimeoutSecs)
	assert.Equal(t, "http://localhost:5000", cfg.OSRM.BaseURL)
	assert.InDelta(t, 10.0, cfg.Google.QPS, 0.001)
	assert.Equal(t, 45, cfg.Cache.TTLMinutes)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: insights.db
log:
  level: debug
  format: console
server:
  port: 9090
commute:
  speed_ceiling_kmh: 100
  precise_max_candidates: 25
osrm:
  base_url: http://osrm.internal:5000
cache:
  ttl_minutes: 30
ingest:
  shapefile_path: data/stat_areas.shp
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "insights.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 100.0, cfg.Commute.SpeedCeilingKmh, 0.001)
	assert.Equal(t, 25, cfg.Commute.PreciseMaxCandidates)
	assert.Equal(t, "http://osrm.internal:5000", cfg.OSRM.BaseURL)
	assert.Equal(t, 30, cfg.Cache.TTLMinutes)
	assert.Equal(t, "data/stat_areas.shp", cfg.Ingest.ShapefilePath)

	// Unset values keep defaults
	assert.Equal(t, 1000, cfg.Commute.BulkMaxCandidates)
	assert.Equal(t, 30, cfg.Commute.BulkTimeoutSecs)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("INSIGHTS_STORE_DRIVER", "postgres")
	t.Setenv("INSIGHTS_STORE_DATABASE_URL", "postgres://localhost/insights")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/insights", cfg.Store.DatabaseURL)
}

func TestEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("INSIGHTS_LOG_LEVEL", "warn")
	t.Setenv("INSIGHTS_SERVER_PORT", "3000")
	t.Setenv("INSIGHTS_GOOGLE_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "test-key", cfg.Google.Key)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Store:  StoreConfig{Driver: "postgres", DatabaseURL: "postgres://localhost/insights"},
			OSRM:   OSRMConfig{BaseURL: "http://localhost:5000"},
			Server: ServerConfig{Port: 8080},
			Ingest: IngestConfig{ShapefilePath: "data/stat_areas.shp"},
		}
	}

	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "score valid", mode: "score"},
		{name: "serve valid", mode: "serve"},
		{name: "ingest valid", mode: "ingest"},
		{name: "commute valid", mode: "commute"},
		{
			name:    "score missing database url",
			mode:    "score",
			mutate:  func(c *Config) { c.Store.DatabaseURL = "" },
			wantErr: "store.database_url is required",
		},
		{
			name:    "score bad driver",
			mode:    "score",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: "store.driver must be postgres or sqlite",
		},
		{
			name:    "serve bad port",
			mode:    "serve",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port must be > 0",
		},
		{
			name:    "serve missing osrm",
			mode:    "serve",
			mutate:  func(c *Config) { c.OSRM.BaseURL = "" },
			wantErr: "osrm.base_url is required",
		},
		{
			name:    "commute missing osrm",
			mode:    "commute",
			mutate:  func(c *Config) { c.OSRM.BaseURL = "" },
			wantErr: "osrm.base_url is required",
		},
		{
			name:    "ingest missing shapefile",
			mode:    "ingest",
			mutate:  func(c *Config) { c.Ingest.ShapefilePath = "" },
			wantErr: "ingest.shapefile_path is required",
		},
		{
			name:    "negative ceiling",
			mode:    "commute",
			mutate:  func(c *Config) { c.Commute.SpeedCeilingKmh = -1 },
			wantErr: "commute.speed_ceiling_kmh must be >= 0",
		},
		{
			name:    "negative ttl",
			mode:    "score",
			mutate:  func(c *Config) { c.Cache.TTLMinutes = -5 },
			wantErr: "cache.ttl_minutes must be >= 0",
		},
		{
			name:    "unknown mode",
			mode:    "fly",
			wantErr: `unknown mode "fly"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{name: "json info", cfg: LogConfig{Level: "info", Format: "json"}},
		{name: "console debug", cfg: LogConfig{Level: "debug", Format: "console"}},
		{name: "invalid level", cfg: LogConfig{Level: "loud", Format: "json"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, zap.L())
		})
	}
}
