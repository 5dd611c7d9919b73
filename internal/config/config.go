// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Commute CommuteConfig `yaml:"commute" mapstructure:"commute"`
	OSRM    OSRMConfig    `yaml:"osrm" mapstructure:"osrm"`
	Google  GoogleConfig  `yaml:"google" mapstructure:"google"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Ingest  IngestConfig  `yaml:"ingest" mapstructure:"ingest"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ScoringConfig configures composite score computation.
type ScoringConfig struct {
	// WeightsProfile is an optional YAML file overriding the default
	// component weights.
	WeightsProfile string `yaml:"weights_profile" mapstructure:"weights_profile"`
}

// CommuteConfig configures the commute estimation funnel.
type CommuteConfig struct {
	SpeedCeilingKmh      float64 `yaml:"speed_ceiling_kmh" mapstructure:"speed_ceiling_kmh"`
	BulkMaxCandidates    int     `yaml:"bulk_max_candidates" mapstructure:"bulk_max_candidates"`
	PreciseMaxCandidates int     `yaml:"precise_max_candidates" mapstructure:"precise_max_candidates"`
	BulkTimeoutSecs      int     `yaml:"bulk_timeout_secs" mapstructure:"bulk_timeout_secs"`
	PreciseTimeoutSecs   int     `yaml:"precise_timeout_secs" mapstructure:"precise_timeout_secs"`
}

// OSRMConfig configures the self-hosted bulk routing backend.
type OSRMConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GoogleConfig configures the metered precise routing backend.
type GoogleConfig struct {
	Key string  `yaml:"key" mapstructure:"key"`
	QPS float64 `yaml:"qps" mapstructure:"qps"`
}

// CacheConfig configures the routing cache.
type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// IngestConfig configures region and metric ingestion.
type IngestConfig struct {
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	POIPath       string `yaml:"poi_path" mapstructure:"poi_path"`
	MetricsPath   string `yaml:"metrics_path" mapstructure:"metrics_path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INSIGHTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("commute.speed_ceiling_kmh", 120)
	v.SetDefault("commute.bulk_max_candidates", 1000)
	v.SetDefault("commute.precise_max_candidates", 100)
	v.SetDefault("commute.bulk_timeout_secs", 30)
	v.SetDefault("commute.precise_timeout_secs", 15)
	v.SetDefault("osrm.base_url", "http://localhost:5000")
	v.SetDefault("google.qps", 10)
	v.SetDefault("cache.ttl_minutes", 45)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that configuration required for the given mode is
// present. Modes: "score", "commute", "ingest", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	needsStore := func() {
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "score":
		needsStore()
	case "ingest":
		needsStore()
		if c.Ingest.ShapefilePath == "" {
			problems = append(problems, "ingest.shapefile_path is required")
		}
	case "commute":
		if c.OSRM.BaseURL == "" {
			problems = append(problems, "osrm.base_url is required")
		}
	case "serve":
		needsStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.OSRM.BaseURL == "" {
			problems = append(problems, "osrm.base_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Commute.SpeedCeilingKmh < 0 {
		problems = append(problems, "commute.speed_ceiling_kmh must be >= 0")
	}
	if c.Cache.TTLMinutes < 0 {
		problems = append(problems, "cache.ttl_minutes must be >= 0")
	}
	if c.Google.QPS < 0 {
		problems = append(problems, "google.qps must be >= 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
