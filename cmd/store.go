package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/urbanalytics/insights-cli/internal/commute"
	"github.com/urbanalytics/insights-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "insights.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		poolCfg := &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, poolCfg)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// funnelConfig maps the flat file/env configuration onto the funnel's
// runtime configuration, keeping the reference peak windows.
func funnelConfig() commute.Config {
	fc := commute.DefaultConfig()
	if cfg.Commute.SpeedCeilingKmh > 0 {
		fc.SpeedCeilingKmh = cfg.Commute.SpeedCeilingKmh
	}
	if cfg.Commute.BulkMaxCandidates > 0 {
		fc.BulkMaxCandidates = cfg.Commute.BulkMaxCandidates
	}
	if cfg.Commute.PreciseMaxCandidates > 0 {
		fc.PreciseMaxCandidates = cfg.Commute.PreciseMaxCandidates
	}
	if cfg.Commute.BulkTimeoutSecs > 0 {
		fc.BulkTimeout = time.Duration(cfg.Commute.BulkTimeoutSecs) * time.Second
	}
	if cfg.Commute.PreciseTimeoutSecs > 0 {
		fc.PreciseTimeout = time.Duration(cfg.Commute.PreciseTimeoutSecs) * time.Second
	}
	return fc
}

// initFunnel wires the bulk and (when a key is configured) precise routing
// providers plus the shared estimate cache.
func initFunnel() (*commute.Funnel, *commute.Cache, error) {
	fc := funnelConfig()
	cache := commute.NewCache(time.Duration(cfg.Cache.TTLMinutes) * time.Minute)

	bulk := commute.NewOSRMClient(cfg.OSRM.BaseURL, fc.BulkTimeout)

	var opts []commute.FunnelOption
	if cfg.Google.Key != "" {
		precise := commute.NewGoogleMatrixClient(cfg.Google.Key, cfg.Google.QPS, fc.PreciseTimeout)
		opts = append(opts, commute.WithPreciseProvider(precise))
	}

	funnel, err := commute.NewFunnel(bulk, cache, fc, opts...)
	if err != nil {
		return nil, nil, err
	}
	return funnel, cache, nil
}
