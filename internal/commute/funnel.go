package commute

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbanalytics/insights-cli/internal/model"
	"github.com/urbanalytics/insights-cli/internal/resilience"
)

// Funnel runs commute estimation as a cascade of progressively more
// expensive stages: geometric prefilter, cache, bulk matrix, and an
// optional precise refiner. Each stage narrows the candidate set before
// the next one spends anything on it.
type Funnel struct {
	bulk    MatrixProvider
	precise MatrixProvider
	cache   *Cache
	cfg     Config
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	nowFunc func() time.Time
}

// Result is the outcome of one funnel run. Estimates are index-aligned
// with the query's destinations. Degraded is set when the precise stage
// was wanted but unavailable and bulk figures were served instead.
type Result struct {
	Estimates []model.RouteEstimate
	Degraded  bool
}

// FunnelOption configures a Funnel.
type FunnelOption func(*Funnel)

// WithPreciseProvider attaches the high-precision refiner. Without one the
// funnel serves bulk estimates only.
func WithPreciseProvider(p MatrixProvider) FunnelOption {
	return func(f *Funnel) { f.precise = p }
}

// WithRetryConfig overrides the bulk stage retry policy.
func WithRetryConfig(rc resilience.RetryConfig) FunnelOption {
	return func(f *Funnel) { f.retry = rc }
}

// WithClock overrides the funnel's clock for tests.
func WithClock(now func() time.Time) FunnelOption {
	return func(f *Funnel) { f.nowFunc = now }
}

// NewFunnel wires the funnel stages together. bulk and cache are required;
// the precise refiner is optional and guarded by its own circuit breaker so
// a flapping paid provider cannot stall estimation.
func NewFunnel(bulk MatrixProvider, cache *Cache, cfg Config, opts ...FunnelOption) (*Funnel, error) {
	if bulk == nil {
		return nil, eris.New("commute: bulk provider is required")
	}
	if cache == nil {
		return nil, eris.New("commute: cache is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := &Funnel{
		bulk:    bulk,
		cache:   cache,
		cfg:     cfg,
		retry:   resilience.DefaultRetryConfig(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	breakerCfg := resilience.CircuitBreakerConfig{
		OnStateChange: func(from, to resilience.CircuitState) {
			zap.L().Warn("precise routing breaker state change",
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	}
	f.breaker = resilience.NewCircuitBreaker(breakerCfg)

	return f, nil
}

// Estimate runs the full funnel for one query. Estimates come back in
// destination order, every destination accounted for: prefiltered ones as
// unreachable geometric results, routed ones with bulk or precise figures.
// A bulk provider outage fails the whole batch; a precise outage degrades
// silently to bulk figures.
func (f *Funnel) Estimate(ctx context.Context, query model.RouteQuery) (*Result, error) {
	if err := f.validate(query); err != nil {
		return nil, err
	}

	estimates := make([]model.RouteEstimate, len(query.Destinations))
	keep := Prefilter(query.Origin, query.Destinations, query.MaxDuration, f.cfg.SpeedCeilingKmh)

	// Candidates that survive the prefilter, with their original indexes.
	var candidateIdx []int
	for i, kept := range keep {
		if kept {
			candidateIdx = append(candidateIdx, i)
			continue
		}
		estimates[i] = model.RouteEstimate{
			Destination: query.Destinations[i],
			Unreachable: true,
			Provenance:  model.ProvenanceGeometric,
			Confidence:  model.ConfidenceLow,
		}
	}

	zap.L().Debug("commute prefilter complete",
		zap.Int("destinations", len(query.Destinations)),
		zap.Int("candidates", len(candidateIdx)))

	// Cache stage: fingerprints are index-aligned with candidateIdx and
	// reused for the writes below.
	fingerprints := make([]string, len(candidateIdx))
	var missIdx []int
	for ci, i := range candidateIdx {
		fingerprints[ci] = Fingerprint(query.OriginRegionID, query.Origin,
			query.Destinations[i], query.Mode, query.Departure)
		if cached, ok := f.cache.Get(fingerprints[ci]); ok {
			cached.Destination = query.Destinations[i]
			estimates[i] = cached
			continue
		}
		missIdx = append(missIdx, ci)
	}

	if len(missIdx) == 0 {
		return &Result{Estimates: estimates}, nil
	}

	missDests := make([]model.Point, len(missIdx))
	for mi, ci := range missIdx {
		missDests[mi] = query.Destinations[candidateIdx[ci]]
	}

	elements, err := f.runBulk(ctx, query, missDests)
	if err != nil {
		return nil, err
	}

	for mi, ci := range missIdx {
		i := candidateIdx[ci]
		estimates[i] = estimateFromElement(query.Destinations[i], elements[mi],
			model.ProvenanceBulk, model.ConfidenceMedium)
	}

	degraded := f.refinePrecise(ctx, query, estimates, candidateIdx, missIdx, fingerprints)

	// Cache writes happen last so precise figures, when obtained, are what
	// future queries replay.
	for _, ci := range missIdx {
		f.cache.Put(fingerprints[ci], estimates[candidateIdx[ci]])
	}

	return &Result{Estimates: estimates, Degraded: degraded}, nil
}

func (f *Funnel) validate(query model.RouteQuery) error {
	if !model.ValidMode(query.Mode) {
		return eris.Errorf("commute: invalid travel mode %q", query.Mode)
	}
	if len(query.Destinations) == 0 {
		return eris.New("commute: query has no destinations")
	}
	if query.MaxDuration < 0 {
		return eris.New("commute: max duration must not be negative")
	}
	return nil
}

// runBulk fetches the bulk matrix for cache misses with retries, splitting
// the miss set into BulkMaxCandidates-sized matrix calls so reverse
// searches over every region centroid stay within the provider's per-call
// limit. Any post-retry failure is a batch failure: serving half a batch
// would leave callers unable to tell "unreachable" from "never asked".
func (f *Funnel) runBulk(ctx context.Context, query model.RouteQuery, dests []model.Point) ([]MatrixElement, error) {
	bulkCtx, cancel := context.WithTimeout(ctx, f.cfg.BulkTimeout)
	defer cancel()

	retryCfg := f.retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger(f.bulk.Name(), "matrix")
	}

	elements := make([]MatrixElement, 0, len(dests))
	for start := 0; start < len(dests); start += f.cfg.BulkMaxCandidates {
		end := start + f.cfg.BulkMaxCandidates
		if end > len(dests) {
			end = len(dests)
		}
		chunk := dests[start:end]

		got, err := resilience.DoVal(bulkCtx, retryCfg,
			func(ctx context.Context) ([]MatrixElement, error) {
				return f.bulk.Matrix(ctx, query.Origin, chunk, query.Mode)
			})
		if err != nil {
			return nil, &ProviderUnavailableError{Provider: f.bulk.Name(), Err: err}
		}
		if len(got) != len(chunk) {
			return nil, &ProviderUnavailableError{
				Provider: f.bulk.Name(),
				Err:      eris.New("commute: bulk matrix size mismatch"),
			}
		}
		elements = append(elements, got...)
	}
	return elements, nil
}

// refinePrecise upgrades bulk figures with traffic-aware ones when the
// query warrants the spend. Reports whether refinement was wanted but
// could not be served.
func (f *Funnel) refinePrecise(ctx context.Context, query model.RouteQuery, estimates []model.RouteEstimate, candidateIdx, missIdx []int, fingerprints []string) bool {
	if f.precise == nil {
		return false
	}
	if !f.wantsPrecise(query, len(missIdx)) {
		return false
	}

	preciseCtx, cancel := context.WithTimeout(ctx, f.cfg.PreciseTimeout)
	defer cancel()
	if !query.Departure.IsZero() {
		preciseCtx = WithDeparture(preciseCtx, query.Departure)
	}

	dests := make([]model.Point, len(missIdx))
	for mi, ci := range missIdx {
		dests[mi] = query.Destinations[candidateIdx[ci]]
	}

	elements, err := resilience.ExecuteVal(preciseCtx, f.breaker,
		func(ctx context.Context) ([]MatrixElement, error) {
			return f.precise.Matrix(ctx, query.Origin, dests, query.Mode)
		})
	if err != nil || len(elements) != len(dests) {
		// Precise failure degrades, never fails: bulk figures stand.
		zap.L().Warn("precise routing unavailable, serving bulk estimates",
			zap.String("provider", f.precise.Name()),
			zap.Error(err))
		return true
	}

	for mi, ci := range missIdx {
		i := candidateIdx[ci]
		refined := estimateFromElement(query.Destinations[i], elements[mi],
			model.ProvenancePrecise, model.ConfidenceHigh)
		// A destination the precise router cannot reach keeps its bulk
		// figure rather than regressing to unreachable.
		if refined.Unreachable && !estimates[i].Unreachable {
			continue
		}
		estimates[i] = refined
	}
	return false
}

// wantsPrecise decides whether the refiner runs: always on explicit
// request, otherwise only for peak-hour driving, and never for candidate
// sets large enough to blow the per-query budget.
func (f *Funnel) wantsPrecise(query model.RouteQuery, candidates int) bool {
	if candidates == 0 || candidates > f.cfg.PreciseMaxCandidates {
		return false
	}
	if query.HighPrecision {
		return true
	}
	departure := query.Departure
	if departure.IsZero() {
		departure = f.nowFunc()
	}
	return query.Mode == model.ModeDriving && f.cfg.inPeak(departure)
}

func estimateFromElement(dest model.Point, el MatrixElement, prov model.Provenance, conf model.Confidence) model.RouteEstimate {
	if el.Unreachable {
		return model.RouteEstimate{
			Destination: dest,
			Unreachable: true,
			Provenance:  prov,
			Confidence:  conf,
		}
	}
	return model.RouteEstimate{
		Destination:     dest,
		DurationSeconds: el.DurationSeconds,
		DistanceMeters:  el.DistanceMeters,
		Provenance:      prov,
		Confidence:      conf,
	}
}
