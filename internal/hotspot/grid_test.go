package hotspot

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridFromRows(t *testing.T) {
	g, err := GridFromRows([][]float64{
		{1, 2},
		{3, 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Size)
	assert.Equal(t, 1.0, g.At(0, 0))
	assert.Equal(t, 4.0, g.At(1, 1))
	assert.Equal(t, 3, g.Idx(1, 1))
}

func TestGridFromRowsRagged(t *testing.T) {
	_, err := GridFromRows([][]float64{
		{1, 2},
		{3},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))

	_, err = GridFromRows(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestGridClone(t *testing.T) {
	g := NewGrid(2)
	g.Set(0, 1, 7)

	c := g.Clone()
	c.Set(0, 1, 99)
	assert.Equal(t, 7.0, g.At(0, 1), "clone must not share backing storage")
}

func TestNormalizeBounds(t *testing.T) {
	g, err := GridFromRows([][]float64{
		{10, 20, 30},
		{40, 50, 60},
		{70, 80, 90},
	})
	require.NoError(t, err)

	n := Normalize(g)
	for i, v := range n.Cells {
		if v < 0 || v > 1 {
			t.Fatalf("cell %d = %g outside [0,1]", i, v)
		}
	}
	assert.Equal(t, 0.0, n.At(0, 0), "minimum maps to 0")
	assert.Equal(t, 1.0, n.At(2, 2), "maximum maps to 1")
	assert.InDelta(t, 0.5, n.At(1, 1), 1e-12)
}

func TestNormalizeConstantGrid(t *testing.T) {
	g := NewGrid(4)
	for i := range g.Cells {
		g.Cells[i] = 42
	}

	n := Normalize(g)
	for i, v := range n.Cells {
		if v != 0 {
			t.Fatalf("constant grid: cell %d = %g, want 0", i, v)
		}
		if math.IsNaN(v) {
			t.Fatalf("constant grid produced NaN at cell %d", i)
		}
	}
}

func TestNormalizePreservesInput(t *testing.T) {
	g, err := GridFromRows([][]float64{
		{5, 10},
		{15, 20},
	})
	require.NoError(t, err)

	Normalize(g)
	assert.Equal(t, []float64{5, 10, 15, 20}, g.Cells, "input grid must not be mutated")
}

func TestValidateFinite(t *testing.T) {
	g := NewGrid(2)
	require.NoError(t, g.ValidateFinite())

	g.Set(1, 0, math.NaN())
	err := g.ValidateFinite()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrData))

	g.Set(1, 0, -5)
	err = g.ValidateFinite()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrData))
}
