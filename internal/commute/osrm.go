package commute

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/urbanalytics/insights-cli/internal/model"
	"github.com/urbanalytics/insights-cli/internal/resilience"
)

// OSRMClient is the bulk estimator backend: one /table call per origin
// covers every candidate destination at once. Durations come from the
// routing graph without live traffic, so results carry medium confidence.
type OSRMClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOSRMClient creates a client against an OSRM HTTP server, e.g. a
// self-hosted instance loaded with the israel-and-palestine extract.
func NewOSRMClient(baseURL string, timeout time.Duration) *OSRMClient {
	return &OSRMClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies the provider in logs and errors.
func (c *OSRMClient) Name() string { return "osrm" }

// osrmTableResponse is the JSON response from the OSRM /table service.
// Durations and distances are row-major; a null cell means no route.
type osrmTableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Durations [][]*float64 `json:"durations"`
	Distances [][]*float64 `json:"distances"`
}

// osrmProfile maps a travel mode onto an OSRM routing profile. Transit has
// no OSRM equivalent; the caller must route transit queries elsewhere.
func osrmProfile(mode model.Mode) (string, error) {
	switch mode {
	case model.ModeDriving:
		return "driving", nil
	case model.ModeWalking:
		return "foot", nil
	case model.ModeCycling:
		return "bicycle", nil
	default:
		return "", eris.Errorf("commute: osrm does not support mode %q", mode)
	}
}

// Matrix computes one-to-many durations and distances via the OSRM table
// service. The returned slice is index-aligned with destinations; cells the
// router could not reach come back as Unreachable elements, never errors.
func (c *OSRMClient) Matrix(ctx context.Context, origin model.Point, destinations []model.Point, mode model.Mode) ([]MatrixElement, error) {
	if len(destinations) == 0 {
		return nil, nil
	}

	profile, err := osrmProfile(mode)
	if err != nil {
		return nil, err
	}

	// OSRM wants lon,lat pairs separated by semicolons, origin first.
	var coords strings.Builder
	writeCoord := func(p model.Point) {
		coords.WriteString(strconv.FormatFloat(p.Lon, 'f', 6, 64))
		coords.WriteByte(',')
		coords.WriteString(strconv.FormatFloat(p.Lat, 'f', 6, 64))
	}
	writeCoord(origin)
	for _, d := range destinations {
		coords.WriteByte(';')
		writeCoord(d)
	}

	reqURL := fmt.Sprintf("%s/table/v1/%s/%s?sources=0&annotations=duration,distance",
		c.baseURL, profile, coords.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "commute: osrm build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "commute: osrm request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("commute: osrm returned status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("commute: osrm returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "commute: osrm read body")
	}

	var table osrmTableResponse
	if err := json.Unmarshal(body, &table); err != nil {
		return nil, eris.Wrap(err, "commute: osrm parse response")
	}
	if table.Code != "Ok" {
		return nil, eris.Errorf("commute: osrm error %s: %s", table.Code, table.Message)
	}
	if len(table.Durations) == 0 || len(table.Durations[0]) != len(destinations)+1 {
		return nil, eris.New("commute: osrm returned malformed table")
	}

	elements := make([]MatrixElement, len(destinations))
	for i := range destinations {
		// Column 0 is origin-to-origin; destination i sits at column i+1.
		dur := table.Durations[0][i+1]
		if dur == nil {
			elements[i] = MatrixElement{Unreachable: true}
			continue
		}
		elem := MatrixElement{DurationSeconds: *dur}
		if len(table.Distances) > 0 && len(table.Distances[0]) > i+1 && table.Distances[0][i+1] != nil {
			elem.DistanceMeters = *table.Distances[0][i+1]
		}
		elements[i] = elem
	}
	return elements, nil
}
