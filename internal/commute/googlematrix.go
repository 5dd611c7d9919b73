package commute

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/urbanalytics/insights-cli/internal/model"
	"github.com/urbanalytics/insights-cli/internal/resilience"
)

const googleMatrixURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// GoogleMatrixClient is the precise refiner backend. It returns
// traffic-aware durations, costs real money per element, and is therefore
// rate-limited here and capped and breaker-guarded by the funnel.
type GoogleMatrixClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGoogleMatrixClient creates a Distance Matrix client. qps bounds the
// request rate against the shared project quota.
func NewGoogleMatrixClient(apiKey string, qps float64, timeout time.Duration) *GoogleMatrixClient {
	return &GoogleMatrixClient{
		apiKey:     apiKey,
		baseURL:    googleMatrixURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(qps), 1),
	}
}

// Name identifies the provider in logs and errors.
func (c *GoogleMatrixClient) Name() string { return "google" }

// googleMatrixResponse is the JSON response from the Distance Matrix API.
type googleMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []googleMatrixElement `json:"elements"`
	} `json:"rows"`
	ErrorMessage string `json:"error_message"`
}

type googleMatrixElement struct {
	Status   string `json:"status"`
	Duration struct {
		Value int `json:"value"`
	} `json:"duration"`
	DurationInTraffic struct {
		Value int `json:"value"`
	} `json:"duration_in_traffic"`
	Distance struct {
		Value int `json:"value"`
	} `json:"distance"`
}

// googleMode maps a travel mode onto the API's mode parameter.
func googleMode(mode model.Mode) string {
	switch mode {
	case model.ModeTransit:
		return "transit"
	case model.ModeWalking:
		return "walking"
	case model.ModeCycling:
		return "bicycling"
	default:
		return "driving"
	}
}

// Matrix computes one-to-many durations via the Distance Matrix API,
// requesting departure-time traffic for driving. The departure time is
// carried on the context by the funnel via WithDeparture.
func (c *GoogleMatrixClient) Matrix(ctx context.Context, origin model.Point, destinations []model.Point, mode model.Mode) ([]MatrixElement, error) {
	if c.apiKey == "" {
		return nil, eris.New("commute: google api key not configured")
	}
	if len(destinations) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "commute: google rate limit")
	}

	var dests strings.Builder
	for i, d := range destinations {
		if i > 0 {
			dests.WriteByte('|')
		}
		fmt.Fprintf(&dests, "%.6f,%.6f", d.Lat, d.Lon)
	}

	params := url.Values{
		"origins":      {fmt.Sprintf("%.6f,%.6f", origin.Lat, origin.Lon)},
		"destinations": {dests.String()},
		"mode":         {googleMode(mode)},
		"key":          {c.apiKey},
	}
	if dep, ok := departureFrom(ctx); ok {
		params.Set("departure_time", strconv.FormatInt(dep.Unix(), 10))
		if mode == model.ModeDriving {
			params.Set("traffic_model", "best_guess")
		}
	}

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "commute: google build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "commute: google request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("commute: google returned status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("commute: google returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "commute: google read body")
	}

	var matrixResp googleMatrixResponse
	if err := json.Unmarshal(body, &matrixResp); err != nil {
		return nil, eris.Wrap(err, "commute: google parse response")
	}

	switch matrixResp.Status {
	case "OK":
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return nil, resilience.NewTransientError(
			eris.Errorf("commute: google status %s: %s", matrixResp.Status, matrixResp.ErrorMessage), 0)
	default:
		return nil, eris.Errorf("commute: google status %s: %s", matrixResp.Status, matrixResp.ErrorMessage)
	}

	if len(matrixResp.Rows) == 0 || len(matrixResp.Rows[0].Elements) != len(destinations) {
		return nil, eris.New("commute: google returned malformed matrix")
	}

	elements := make([]MatrixElement, len(destinations))
	for i, el := range matrixResp.Rows[0].Elements {
		if el.Status != "OK" {
			// ZERO_RESULTS and friends: no route, not a provider failure.
			elements[i] = MatrixElement{Unreachable: true}
			continue
		}
		duration := el.Duration.Value
		if el.DurationInTraffic.Value > 0 {
			duration = el.DurationInTraffic.Value
		}
		elements[i] = MatrixElement{
			DurationSeconds: float64(duration),
			DistanceMeters:  float64(el.Distance.Value),
		}
	}
	return elements, nil
}

type departureKey struct{}

// WithDeparture attaches the requested departure time so providers that
// support traffic-aware routing can pass it through.
func WithDeparture(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, departureKey{}, t)
}

func departureFrom(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(departureKey{}).(time.Time)
	return t, ok
}
