//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanalytics/insights-cli/internal/commute"
	"github.com/urbanalytics/insights-cli/internal/model"
	"github.com/urbanalytics/insights-cli/internal/store"
)

type stubMatrix struct {
	name string
	err  error
}

func (s *stubMatrix) Name() string { return s.name }

func (s *stubMatrix) Matrix(_ context.Context, _ model.Point, dests []model.Point, _ model.Mode) ([]commute.MatrixElement, error) {
	if s.err != nil {
		return nil, s.err
	}
	elements := make([]commute.MatrixElement, len(dests))
	for i := range elements {
		elements[i] = commute.MatrixElement{DurationSeconds: 600, DistanceMeters: 5000}
	}
	return elements, nil
}

func fptr(v float64) *float64 { return &v }

func newTestAPI(t *testing.T) *apiServer {
	t.Helper()

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	cache := commute.NewCache(time.Minute)
	funnel, err := commute.NewFunnel(&stubMatrix{name: "stub"}, cache, commute.DefaultConfig())
	require.NoError(t, err)

	return &apiServer{store: st, funnel: funnel, cache: cache}
}

func seedSnapshot(t *testing.T, api *apiServer, snapshotID string) {
	t.Helper()
	ctx := context.Background()

	regions := []model.Region{
		{ID: "5000-611", NameHe: "רמת גן מרכז", City: "רמת גן", Centroid: model.Point{Lat: 32.0684, Lon: 34.8248}, AreaSqKm: 1.2},
		{ID: "3000-214", NameHe: "ירושלים דרום", City: "ירושלים", Centroid: model.Point{Lat: 31.7683, Lon: 35.2137}, AreaSqKm: 2.4},
	}
	_, err := api.store.UpsertRegions(ctx, regions)
	require.NoError(t, err)

	metrics := []model.RawMetricSet{
		{
			RegionID:               "5000-611",
			Population:             fptr(4200),
			SocioeconomicIndex:     fptr(7),
			CrimeRatePer1000:       fptr(12),
			SchoolMatriculationPct: fptr(81),
			POIWithin300m:          fptr(3),
			POIWithin500m:          fptr(6),
			POIWithin800m:          fptr(11),
			POIWithin1000m:         fptr(15),
			TransitStopDensity:     fptr(9.5),
			HousingPricePerSqm:     fptr(32000),
		},
		{
			RegionID:               "3000-214",
			Population:             fptr(6100),
			SocioeconomicIndex:     fptr(4),
			CrimeRatePer1000:       fptr(22),
			SchoolMatriculationPct: fptr(64),
			POIWithin300m:          fptr(1),
			POIWithin500m:          fptr(2),
			POIWithin800m:          fptr(5),
			POIWithin1000m:         fptr(8),
			TransitStopDensity:     fptr(4.1),
			HousingPricePerSqm:     fptr(24000),
		},
	}
	require.NoError(t, api.store.CreateSnapshot(ctx, model.Snapshot{ID: snapshotID, Metrics: metrics}))
}

func TestRoutes_Health(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	api.routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRoutes_GetRegion(t *testing.T) {
	api := newTestAPI(t)
	seedSnapshot(t, api, "snap-1")

	req := httptest.NewRequest(http.MethodGet, "/v1/regions/5000-611", nil)
	rr := httptest.NewRecorder()
	api.routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var region model.Region
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &region))
	assert.Equal(t, "5000-611", region.ID)
	assert.Equal(t, "רמת גן מרכז", region.NameHe)
}

func TestRoutes_GetRegion_NotFound(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/regions/9999-999", nil)
	rr := httptest.NewRecorder()
	api.routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRoutes_ComputeScores_SaveAndList(t *testing.T) {
	api := newTestAPI(t)
	seedSnapshot(t, api, "snap-1")

	payload := map[string]any{"snapshot_id": "snap-1", "save": true}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/v1/scores/compute", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	api.routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var result struct {
		SnapshotID string                 `json:"snapshot_id"`
		Scores     []model.CompositeScore `json:"scores"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, "snap-1", result.SnapshotID)
	require.Len(t, result.Scores, 2)
	for _, s := range result.Scores {
		assert.GreaterOrEqual(t, s.Score, 0)
		assert.LessOrEqual(t, s.Score, 100)
	}

	// Saved scores are listable.
	req = httptest.NewRequest(http.MethodGet, "/v1/scores?snapshot_id=snap-1", nil)
	rr = httptest.NewRecorder()
	api.routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var listed struct {
		SnapshotID string                 `json:"snapshot_id"`
		Scores     []model.CompositeScore `json:"scores"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	assert.Len(t, listed.Scores, 2)
}

func TestRoutes_ComputeScores_UnknownSnapshot(t *testing.T) {
	api := newTestAPI(t)
	seedSnapshot(t, api, "snap-1")

	body, _ := json.Marshal(map[string]any{"snapshot_id": "missing"})
	req := httptest.NewRequest(http.MethodPost, "/v1/scores/compute", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	api.routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRoutes_CommuteEstimate(t *testing.T) {
	api := newTestAPI(t)

	payload := map[string]any{
		"origin":       map[string]float64{"lat": 32.0684, "lon": 34.8248},
		"destinations": []map[string]float64{{"lat": 32.0853, "lon": 34.7818}},
		"mode":         "driving",
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/v1/commute/estimate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	api.routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp struct {
		Estimates []model.RouteEstimate `json:"estimates"`
		Degraded  bool                  `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Estimates, 1)
	assert.False(t, resp.Degraded)
	assert.Equal(t, model.ProvenanceBulk, resp.Estimates[0].Provenance)
	assert.InDelta(t, 600, resp.Estimates[0].DurationSeconds, 0.001)
}

func TestRoutes_CommuteEstimate_InvalidMode(t *testing.T) {
	api := newTestAPI(t)

	payload := map[string]any{
		"origin":       map[string]float64{"lat": 32.0684, "lon": 34.8248},
		"destinations": []map[string]float64{{"lat": 32.0853, "lon": 34.7818}},
		"mode":         "teleport",
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/v1/commute/estimate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	api.routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRoutes_CacheStats(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil)
	rr := httptest.NewRecorder()
	api.routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var stats commute.CacheStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.Entries)
}

func TestShutdownOnDone_DrainsServer(t *testing.T) {
	api := newTestAPI(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &http.Server{Handler: api.routes()}
	ctx, cancel := context.WithCancel(context.Background())
	go shutdownOnDone(ctx, srv)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	// Canceling the lifecycle context must stop Serve cleanly even though
	// the context itself is dead; the drain runs on its own deadline.
	cancel()
	select {
	case err := <-serveErr:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
