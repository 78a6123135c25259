package hotspot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/astana-data/hotspot.report/internal/monitoring"
	"github.com/astana-data/hotspot.report/internal/observability"
)

// PipelineConfig carries the resolved tunables for one pipeline. No
// ambient state: every invocation reads only this struct.
type PipelineConfig struct {
	GridSize       int
	Threshold      float64
	TileSizeMeters float64
	Bounds         GeoBounds

	// HorizonSteps forecast steps of StepMinutes each are rolled
	// forward; the published prediction is step PublishStep (1-based).
	HorizonSteps int
	StepMinutes  int
	PublishStep  int

	LookupRadiusMeters float64
	LookupTimeout      time.Duration

	Refine RefineParams
}

// Validate checks the configuration before a run.
func (c PipelineConfig) Validate() error {
	if c.GridSize <= 0 {
		return fmt.Errorf("%w: grid size must be positive, got %d", ErrConfig, c.GridSize)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold %g outside [0,1]", ErrConfig, c.Threshold)
	}
	if c.TileSizeMeters <= 0 {
		return fmt.Errorf("%w: tile size must be positive, got %g meters", ErrConfig, c.TileSizeMeters)
	}
	if c.PublishStep < 1 || c.PublishStep > c.HorizonSteps {
		return fmt.Errorf("%w: publish step %d outside horizon of %d steps", ErrConfig, c.PublishStep, c.HorizonSteps)
	}
	return c.Bounds.Validate()
}

// RunResult is the output of one pipeline run.
type RunResult struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Current   Report    `json:"current"`
	// Predicted is nil when no forecaster was available or prediction
	// failed; the current report is still valid.
	Predicted *Report `json:"predicted,omitempty"`
}

// Pipeline runs detection, context gathering, refinement, and report
// assembly for one grid history. Stages consume immutable inputs and
// return fresh outputs, so a Pipeline is safe to invoke concurrently
// for different runs.
type Pipeline struct {
	cfg        PipelineConfig
	forecaster Forecaster // nil means current-state only
	orgs       OrganizationLookup
	events     EventLookup
	metrics    *observability.Metrics // nil disables instrumentation
	clock      clockwork.Clock
}

// NewPipeline builds a pipeline. forecaster may be nil; orgs and
// events must not be (use the lookup package's null variants to run
// without external context).
func NewPipeline(cfg PipelineConfig, forecaster Forecaster, orgs OrganizationLookup, events EventLookup, metrics *observability.Metrics) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if orgs == nil || events == nil {
		return nil, fmt.Errorf("%w: organization and event lookups are required (use null lookups to disable)", ErrConfig)
	}
	return &Pipeline{
		cfg:        cfg,
		forecaster: forecaster,
		orgs:       orgs,
		events:     events,
		metrics:    metrics,
		clock:      clockwork.NewRealClock(),
	}, nil
}

// SetClock swaps the time source. Tests inject a fake for
// deterministic report timestamps; passing nil resets to real time.
func (p *Pipeline) SetClock(c clockwork.Clock) {
	if c == nil {
		p.clock = clockwork.NewRealClock()
		return
	}
	p.clock = c
}

// Run executes one full detection pass over the given grid history.
// The last grid in history is the current state; earlier grids feed
// the forecaster. A failed or absent forecaster degrades the run to a
// current-state report, never to an error.
func (p *Pipeline) Run(ctx context.Context, history []Grid) (*RunResult, error) {
	started := p.clock.Now()
	result, err := p.run(ctx, history, started)
	if p.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
		p.metrics.RunDuration.Observe(p.clock.Since(started).Seconds())
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, history []Grid, started time.Time) (*RunResult, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: empty grid history", ErrConfig)
	}
	raw := history[len(history)-1]
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	if raw.Size != p.cfg.GridSize {
		return nil, fmt.Errorf("%w: grid is %dx%d but pipeline is configured for %dx%d",
			ErrConfig, raw.Size, raw.Size, p.cfg.GridSize, p.cfg.GridSize)
	}

	// Current state: normalise, detect, gather context.
	normalized := Normalize(raw)
	clusters, err := Detect(normalized, raw, p.cfg.Bounds, p.cfg.Threshold)
	if err != nil {
		return nil, err
	}
	p.observeClusters(string(ReportCurrent), len(clusters))

	orgReports, eventReports := p.gatherContext(ctx, clusters)

	// Refinement factors always exist per cluster; application happens
	// on the predicted grid below when one is available.
	factors := make([]float64, len(clusters))
	for i := range clusters {
		factors[i] = p.cfg.Refine.Factor(orgReports[i], eventReports[i])
		if p.metrics != nil {
			p.metrics.RefinementFactor.Observe(factors[i])
		}
	}

	currentTiles, err := BuildTiles(raw, p.cfg.Bounds, p.cfg.TileSizeMeters)
	if err != nil {
		return nil, err
	}
	currentSummary := Summarize(clusters, orgReports, eventReports, factors)

	// Horizon: forecast, refine, re-detect.
	var predictedSummary []ClusterSummary
	var predictedTiles []Tile
	havePrediction := false
	if p.forecaster != nil {
		horizon, ferr := p.rollForecast(ctx, history)
		if ferr != nil {
			monitoring.Logf("pipeline: forecaster unavailable, current-state report only: %v", ferr)
			if p.metrics != nil {
				p.metrics.ForecastsFailed.Inc()
			}
		} else {
			refined := horizon.Clone()
			for i, c := range clusters {
				if aerr := ApplyCluster(refined, c, factors[i]); aerr != nil {
					// Data errors are fatal to this cluster's
					// refinement only; its prediction passes through
					// unrefined.
					monitoring.Logf("pipeline: skipping refinement of cluster %d: %v", i, aerr)
				}
			}

			predictedClusters, derr := Detect(Normalize(refined), refined, p.cfg.Bounds, p.cfg.Threshold)
			if derr != nil {
				return nil, derr
			}
			p.observeClusters(string(ReportPredicted), len(predictedClusters))

			pOrgs, pEvents := p.gatherContext(ctx, predictedClusters)
			pFactors := make([]float64, len(predictedClusters))
			for i := range predictedClusters {
				pFactors[i] = p.cfg.Refine.Factor(pOrgs[i], pEvents[i])
			}
			predictedSummary = Summarize(predictedClusters, pOrgs, pEvents, pFactors)

			predictedTiles, err = BuildTiles(refined, p.cfg.Bounds, p.cfg.TileSizeMeters)
			if err != nil {
				return nil, err
			}
			havePrediction = true
		}
	}

	horizonMinutes := p.cfg.PublishStep * p.cfg.StepMinutes
	current, predicted := AssembleReports(started, p.cfg.Bounds, horizonMinutes,
		currentSummary, currentTiles, predictedSummary, predictedTiles)

	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Current:   current,
	}
	if havePrediction {
		result.Predicted = &predicted
	}
	return result, nil
}

// rollForecast feeds the forecaster its own output HorizonSteps times
// and returns the grid at the published step.
func (p *Pipeline) rollForecast(ctx context.Context, history []Grid) (Grid, error) {
	window := make([]Grid, len(history))
	copy(window, history)

	var published Grid
	for step := 1; step <= p.cfg.HorizonSteps; step++ {
		next, err := p.forecaster.Predict(ctx, window)
		if err != nil {
			return Grid{}, fmt.Errorf("step %d: %w", step, err)
		}
		if err := next.Validate(); err != nil {
			return Grid{}, fmt.Errorf("step %d: %w", step, err)
		}
		if next.Size != p.cfg.GridSize {
			return Grid{}, fmt.Errorf("%w: forecast step %d returned %dx%d grid, want %dx%d",
				ErrConfig, step, next.Size, next.Size, p.cfg.GridSize, p.cfg.GridSize)
		}
		window = append(window[1:], next)
		if step == p.cfg.PublishStep {
			published = next
		}
	}
	return published, nil
}

// gatherContext resolves organisation and event context for every
// cluster. Lookups are independent per cluster and run in parallel,
// each under its own timeout. Failures and timeouts degrade to empty
// reports; they are recoverable by design and never fail the run.
func (p *Pipeline) gatherContext(ctx context.Context, clusters []Cluster) ([]OrganizationReport, []EventReport) {
	orgReports := make([]OrganizationReport, len(clusters))
	eventReports := make([]EventReport, len(clusters))

	var wg sync.WaitGroup
	for i, c := range clusters {
		wg.Add(2)
		go func(i int, lat, lon float64) {
			defer wg.Done()
			orgReports[i] = OrganizationReport{Organizations: p.fetchOrganizations(ctx, lat, lon)}
		}(i, c.CenterLat, c.CenterLon)
		go func(i int, lat, lon float64) {
			defer wg.Done()
			eventReports[i] = EventReport{Events: p.fetchEvents(ctx, lat, lon)}
		}(i, c.CenterLat, c.CenterLon)
	}
	wg.Wait()
	return orgReports, eventReports
}

func (p *Pipeline) fetchOrganizations(ctx context.Context, lat, lon float64) []Organization {
	lctx, cancel := context.WithTimeout(ctx, p.cfg.LookupTimeout)
	defer cancel()

	started := p.clock.Now()
	orgs, err := p.orgs.Nearby(lctx, lat, lon, p.cfg.LookupRadiusMeters)
	p.observeLookup("organizations", started, len(orgs), err)
	if err != nil {
		monitoring.Logf("lookup: organizations near %.4f,%.4f unavailable: %v", lat, lon, err)
		return nil
	}
	return orgs
}

func (p *Pipeline) fetchEvents(ctx context.Context, lat, lon float64) []Event {
	lctx, cancel := context.WithTimeout(ctx, p.cfg.LookupTimeout)
	defer cancel()

	started := p.clock.Now()
	events, err := p.events.Nearby(lctx, lat, lon)
	p.observeLookup("events", started, len(events), err)
	if err != nil {
		monitoring.Logf("lookup: events near %.4f,%.4f unavailable: %v", lat, lon, err)
		return nil
	}
	return events
}

func (p *Pipeline) observeLookup(kind string, started time.Time, n int, err error) {
	if p.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case n == 0:
		outcome = "empty"
	}
	p.metrics.LookupRequests.WithLabelValues(kind, outcome).Inc()
	if err == nil || !errors.Is(err, context.Canceled) {
		p.metrics.LookupDuration.WithLabelValues(kind).Observe(p.clock.Since(started).Seconds())
	}
}

func (p *Pipeline) observeClusters(kind string, n int) {
	if p.metrics != nil {
		p.metrics.ClustersFound.WithLabelValues(kind).Observe(float64(n))
	}
	if n == 0 {
		monitoring.Logf("pipeline: no %s hot spots detected", kind)
	}
}
