package hotspot

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipelineConfig() PipelineConfig {
	return PipelineConfig{
		GridSize:           10,
		Threshold:          0.7,
		TileSizeMeters:     1100,
		Bounds:             testBounds,
		HorizonSteps:       12,
		StepMinutes:        5,
		PublishStep:        6,
		LookupRadiusMeters: 500,
		LookupTimeout:      time.Second,
		Refine:             DefaultRefineParams(),
	}
}

type stubOrgLookup struct {
	orgs []Organization
	err  error
}

func (s *stubOrgLookup) Nearby(context.Context, float64, float64, float64) ([]Organization, error) {
	return s.orgs, s.err
}

type stubEventLookup struct {
	events []Event
	err    error
}

func (s *stubEventLookup) Nearby(context.Context, float64, float64) ([]Event, error) {
	return s.events, s.err
}

// echoForecaster returns the last history grid unchanged and counts
// invocations.
type echoForecaster struct {
	calls int
}

func (f *echoForecaster) Predict(_ context.Context, history []Grid) (Grid, error) {
	f.calls++
	return history[len(history)-1].Clone(), nil
}

type failingForecaster struct{}

func (failingForecaster) Predict(context.Context, []Grid) (Grid, error) {
	return Grid{}, fmt.Errorf("model unavailable")
}

func blockGrid() Grid {
	raw := NewGrid(10)
	for i := range raw.Cells {
		raw.Cells[i] = 30
	}
	for _, c := range []Cell{{3, 3}, {3, 4}, {4, 3}, {4, 4}} {
		raw.Set(c.Row, c.Col, 55)
	}
	return raw
}

func TestPipelineCurrentOnly(t *testing.T) {
	p, err := NewPipeline(testPipelineConfig(), nil, &stubOrgLookup{}, &stubEventLookup{}, nil)
	require.NoError(t, err)

	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	p.SetClock(clockwork.NewFakeClockAt(now))
	defer p.SetClock(nil)

	result, err := p.Run(context.Background(), []Grid{blockGrid()})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, now, result.StartedAt)
	assert.Nil(t, result.Predicted, "no forecaster means a current-state report only")

	require.Len(t, result.Current.Clusters, 1)
	c := result.Current.Clusters[0]
	assert.Equal(t, 4, c.MemberCount)
	assert.Equal(t, 1.0, c.Intensity)
	assert.InDelta(t, 51.1594, c.CenterLat, 1e-9)
	assert.InDelta(t, 71.4391, c.CenterLon, 1e-9)
	assert.Len(t, result.Current.Tiles, 100)
}

func TestPipelineRefinementFactor(t *testing.T) {
	orgs := &stubOrgLookup{}
	for i := 0; i < 12; i++ {
		orgs.orgs = append(orgs.orgs, Organization{Name: "org", ClosingHour: 18})
	}
	events := &stubEventLookup{events: []Event{{Name: "Concert"}}}

	p, err := NewPipeline(testPipelineConfig(), nil, orgs, events, nil)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), []Grid{blockGrid()})
	require.NoError(t, err)

	require.Len(t, result.Current.Clusters, 1)
	c := result.Current.Clusters[0]
	assert.Equal(t, 12, c.OrganizationCount)
	// Organisation factor caps at 1.5, event multiplies by 1.8.
	assert.InDelta(t, 2.7, c.RefinementFactor, 1e-12)
}

func TestPipelineWithForecaster(t *testing.T) {
	forecaster := &echoForecaster{}
	p, err := NewPipeline(testPipelineConfig(), forecaster, &stubOrgLookup{}, &stubEventLookup{}, nil)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), []Grid{blockGrid()})
	require.NoError(t, err)

	assert.Equal(t, 12, forecaster.calls, "the horizon is rolled one step at a time")
	require.NotNil(t, result.Predicted)
	assert.Equal(t, 30, result.Predicted.HorizonMinutes)
	assert.Len(t, result.Predicted.Tiles, 100)
	require.Len(t, result.Predicted.Clusters, 1, "an echoed forecast keeps the hot spot")
}

func TestPipelineForecastFailureDegrades(t *testing.T) {
	p, err := NewPipeline(testPipelineConfig(), failingForecaster{}, &stubOrgLookup{}, &stubEventLookup{}, nil)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), []Grid{blockGrid()})
	require.NoError(t, err, "a failed forecast degrades the run, never fails it")
	assert.Nil(t, result.Predicted)
	require.Len(t, result.Current.Clusters, 1)
}

func TestPipelineLookupFailureDegrades(t *testing.T) {
	orgs := &stubOrgLookup{err: errors.New("catalog down")}
	events := &stubEventLookup{err: errors.New("feed down")}
	p, err := NewPipeline(testPipelineConfig(), nil, orgs, events, nil)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), []Grid{blockGrid()})
	require.NoError(t, err)

	require.Len(t, result.Current.Clusters, 1)
	c := result.Current.Clusters[0]
	assert.Equal(t, 0, c.OrganizationCount)
	assert.Equal(t, 1.0, c.RefinementFactor, "failed lookups degrade to empty context")
}

func TestPipelineDeterministic(t *testing.T) {
	p, err := NewPipeline(testPipelineConfig(), &echoForecaster{}, &stubOrgLookup{}, &stubEventLookup{}, nil)
	require.NoError(t, err)

	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	p.SetClock(clockwork.NewFakeClockAt(now))
	defer p.SetClock(nil)

	history := []Grid{blockGrid()}
	first, err := p.Run(context.Background(), history)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), history)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Current, second.Current); diff != "" {
		t.Errorf("current reports differ across identical runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Predicted, second.Predicted); diff != "" {
		t.Errorf("predicted reports differ across identical runs (-first +second):\n%s", diff)
	}
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestPipelineRejectsBadHistory(t *testing.T) {
	p, err := NewPipeline(testPipelineConfig(), nil, &stubOrgLookup{}, &stubEventLookup{}, nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))

	_, err = p.Run(context.Background(), []Grid{NewGrid(6)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestPipelineConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PipelineConfig)
	}{
		{"zero grid size", func(c *PipelineConfig) { c.GridSize = 0 }},
		{"threshold above one", func(c *PipelineConfig) { c.Threshold = 1.2 }},
		{"negative tile size", func(c *PipelineConfig) { c.TileSizeMeters = -1 }},
		{"publish step past horizon", func(c *PipelineConfig) { c.PublishStep = 13 }},
		{"publish step zero", func(c *PipelineConfig) { c.PublishStep = 0 }},
		{"inverted bounds", func(c *PipelineConfig) { c.Bounds.LatMax = c.Bounds.LatMin - 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testPipelineConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))
		})
	}
}

func TestNewPipelineRequiresLookups(t *testing.T) {
	_, err := NewPipeline(testPipelineConfig(), nil, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}
