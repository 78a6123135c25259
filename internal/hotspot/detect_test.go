package hotspot

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBounds covers a 0.1 degree square over central Astana.
var testBounds = GeoBounds{
	LatMin: 51.1194,
	LatMax: 51.2194,
	LonMin: 71.3991,
	LonMax: 71.4991,
}

func TestDetectSingleBlock(t *testing.T) {
	raw := NewGrid(10)
	for i := range raw.Cells {
		raw.Cells[i] = 30
	}
	for _, c := range []Cell{{3, 3}, {3, 4}, {4, 3}, {4, 4}} {
		raw.Set(c.Row, c.Col, 55)
	}

	clusters, err := Detect(Normalize(raw), raw, testBounds, 0.7)
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	c := clusters[0]
	assert.Len(t, c.Members, 4)
	assert.Equal(t, 1.0, c.PeakIntensity)
	assert.Equal(t, 55.0, c.MeanHeat)

	// Equal weights: the centre is the midpoint of the 2x2 block.
	assert.InDelta(t, 51.1594, c.CenterLat, 1e-9)
	assert.InDelta(t, 71.4391, c.CenterLon, 1e-9)
	assert.InDelta(t, 3.5, c.CenterRow, 1e-12)
	assert.InDelta(t, 3.5, c.CenterCol, 1e-12)
}

func TestDetectStrictThreshold(t *testing.T) {
	normalized := NewGrid(3)
	normalized.Set(0, 0, 0.7)
	normalized.Set(2, 2, 0.71)
	raw := NewGrid(3)

	clusters, err := Detect(normalized, raw, testBounds, 0.7)
	require.NoError(t, err)
	require.Len(t, clusters, 1, "a cell exactly at the threshold must be excluded")
	assert.Equal(t, Cell{Row: 2, Col: 2}, clusters[0].Members[0].Cell)
}

func TestDetectEightConnected(t *testing.T) {
	// Two diagonal cells touch only at a corner; 8-connectivity joins
	// them into one cluster.
	normalized := NewGrid(5)
	normalized.Set(1, 1, 0.9)
	normalized.Set(2, 2, 0.8)
	// A cell separated by more than one step stays apart.
	normalized.Set(4, 4, 0.85)

	clusters, err := Detect(normalized, NewGrid(5), testBounds, 0.5)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0].Members, 2)
	assert.Len(t, clusters[1].Members, 1)
}

func TestDetectWeightedCenter(t *testing.T) {
	normalized := NewGrid(10)
	normalized.Set(2, 2, 0.8)
	normalized.Set(2, 3, 0.4)
	raw := NewGrid(10)
	raw.Set(2, 2, 50)
	raw.Set(2, 3, 40)

	clusters, err := Detect(normalized, raw, testBounds, 0.3)
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	c := clusters[0]
	// Both members sit in row 2; the centre latitude is the row centre.
	assert.InDelta(t, 51.1444, c.CenterLat, 1e-9)
	// Weighted mean pulls the longitude toward the 0.8 cell.
	wantLon := (0.8*71.4241 + 0.4*71.4341) / 1.2
	assert.InDelta(t, wantLon, c.CenterLon, 1e-9)
	assert.InDelta(t, (0.8*2+0.4*3)/1.2, c.CenterCol, 1e-12)
}

func TestDetectPeakIntensity(t *testing.T) {
	normalized := NewGrid(10)
	normalized.Set(5, 4, 0.75)
	normalized.Set(5, 5, 0.82)
	normalized.Set(5, 6, 0.79)

	clusters, err := Detect(normalized, NewGrid(10), testBounds, 0.7)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, 0.82, clusters[0].PeakIntensity, "aggregate intensity is the member maximum")
}

func TestDetectNoCandidates(t *testing.T) {
	raw := NewGrid(10)
	clusters, err := Detect(NewGrid(10), raw, testBounds, 0.7)
	require.NoError(t, err)
	assert.Empty(t, clusters, "an empty result is a valid outcome, not an error")
}

func TestDetectBadInputs(t *testing.T) {
	g := NewGrid(10)

	_, err := Detect(g, g, testBounds, 1.5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))

	_, err = Detect(g, NewGrid(8), testBounds, 0.7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))

	_, err = Detect(g, g, GeoBounds{LatMin: 2, LatMax: 1, LonMin: 0, LonMax: 1}, 0.7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestDetectDeterministic(t *testing.T) {
	raw := NewGrid(10)
	for i := range raw.Cells {
		raw.Cells[i] = float64((i*37)%100) / 2
	}

	first, err := Detect(Normalize(raw), raw, testBounds, 0.6)
	require.NoError(t, err)
	second, err := Detect(Normalize(raw), raw, testBounds, 0.6)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated detection differs (-first +second):\n%s", diff)
	}
}
