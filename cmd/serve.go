package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanalytics/insights-cli/internal/commute"
	"github.com/urbanalytics/insights-cli/internal/model"
	"github.com/urbanalytics/insights-cli/internal/scoring"
	"github.com/urbanalytics/insights-cli/internal/store"
)

var servePort int

// cacheSweepInterval bounds how long expired estimates linger in memory.
const cacheSweepInterval = 10 * time.Minute

// shutdownTimeout is how long in-flight requests get to drain on SIGTERM.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the insights HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		funnel, cache, err := initFunnel()
		if err != nil {
			return err
		}

		// Periodic sweep keeps the estimate cache bounded between requests.
		go func() {
			ticker := time.NewTicker(cacheSweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := cache.Sweep(); n > 0 {
						zap.L().Debug("cache sweep", zap.Int("evicted", n))
					}
				}
			}
		}()

		api := &apiServer{store: st, funnel: funnel, cache: cache}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.routes(),
		}

		go shutdownOnDone(ctx, srv)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// shutdownOnDone drains the server once ctx is canceled. The signal context
// is already dead at that point, so the drain gets its own deadline.
func shutdownOnDone(ctx context.Context, srv *http.Server) {
	<-ctx.Done()
	zap.L().Info("shutting down server")

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		zap.L().Error("server shutdown", zap.Error(err))
	}
}

type apiServer struct {
	store  store.Store
	funnel *commute.Funnel
	cache  *commute.Cache
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/regions", s.handleListRegions)
		r.Get("/regions/{regionID}", s.handleGetRegion)
		r.Get("/scores", s.handleGetScores)
		r.Post("/scores/compute", s.handleComputeScores)
		r.Post("/commute/estimate", s.handleCommuteEstimate)
		r.Get("/cache/stats", s.handleCacheStats)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.store.ListRegions(r.Context())
	if err != nil {
		zap.L().Error("list regions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list regions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": regions})
}

func (s *apiServer) handleGetRegion(w http.ResponseWriter, r *http.Request) {
	regionID := chi.URLParam(r, "regionID")
	region, err := s.store.GetRegion(r.Context(), regionID)
	if err != nil {
		zap.L().Error("get region", zap.String("region_id", regionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get region failed")
		return
	}
	if region == nil {
		writeError(w, http.StatusNotFound, "region not found")
		return
	}
	writeJSON(w, http.StatusOK, region)
}

func (s *apiServer) handleGetScores(w http.ResponseWriter, r *http.Request) {
	snapshotID := r.URL.Query().Get("snapshot_id")
	var err error
	if snapshotID == "" {
		snapshotID, err = s.store.LatestSnapshotID(r.Context())
		if err != nil {
			writeError(w, http.StatusNotFound, "no snapshots available")
			return
		}
	}

	var filter store.ScoreFilter
	q := r.URL.Query()
	if v := q.Get("min_score"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &filter.MinScore); err != nil {
			writeError(w, http.StatusBadRequest, "min_score must be an integer")
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &filter.Limit); err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &filter.Offset); err != nil {
			writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
	}

	scores, err := s.store.GetScores(r.Context(), snapshotID, filter)
	if err != nil {
		zap.L().Error("get scores", zap.String("snapshot_id", snapshotID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get scores failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot_id": snapshotID,
		"scores":      scores,
	})
}

func (s *apiServer) handleComputeScores(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SnapshotID string        `json:"snapshot_id"`
		Weights    model.Weights `json:"weights"`
		Save       bool          `json:"save"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snapshotID := req.SnapshotID
	var err error
	if snapshotID == "" {
		snapshotID, err = s.store.LatestSnapshotID(r.Context())
		if err != nil {
			writeError(w, http.StatusNotFound, "no snapshots available")
			return
		}
	}

	weights := req.Weights
	if weights.Sum() == 0 {
		weights = scoring.DefaultWeights()
	}
	if err := scoring.ValidateWeights(weights); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := scoring.NewEngine(s.store, weights).ComputeCompositeScores(r.Context(), snapshotID)
	if err != nil {
		zap.L().Error("compute scores", zap.String("snapshot_id", snapshotID), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if req.Save && len(result.Scores) > 0 {
		if err := s.store.SaveScores(r.Context(), snapshotID, result.Scores); err != nil {
			zap.L().Error("save scores", zap.String("snapshot_id", snapshotID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "save scores failed")
			return
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleCommuteEstimate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Origin         model.Point   `json:"origin"`
		OriginRegionID string        `json:"origin_region_id"`
		Destinations   []model.Point `json:"destinations"`
		Mode           string        `json:"mode"`
		Departure      *time.Time    `json:"departure"`
		MaxMinutes     int           `json:"max_minutes"`
		HighPrecision  bool          `json:"high_precision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Mode == "" {
		req.Mode = string(model.ModeDriving)
	}

	query := model.RouteQuery{
		Origin:         req.Origin,
		OriginRegionID: req.OriginRegionID,
		Destinations:   req.Destinations,
		Mode:           model.Mode(req.Mode),
		MaxDuration:    time.Duration(req.MaxMinutes) * time.Minute,
		HighPrecision:  req.HighPrecision,
	}
	if req.Departure != nil {
		query.Departure = *req.Departure
	}

	result, err := s.funnel.Estimate(r.Context(), query)
	if err != nil {
		var unavailable *commute.ProviderUnavailableError
		if eris.As(err, &unavailable) {
			writeError(w, http.StatusBadGateway, unavailable.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"estimates": result.Estimates,
		"degraded":  result.Degraded,
	})
}

func (s *apiServer) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}
