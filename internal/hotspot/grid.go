package hotspot

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Grid is a square matrix of traffic values for one time instant,
// stored row-major. All grids in one pipeline execution share the same
// Size.
type Grid struct {
	Size  int
	Cells []float64
}

// NewGrid allocates a zeroed size×size grid.
func NewGrid(size int) Grid {
	return Grid{Size: size, Cells: make([]float64, size*size)}
}

// GridFromRows builds a Grid from row slices, validating squareness.
func GridFromRows(rows [][]float64) (Grid, error) {
	size := len(rows)
	if size == 0 {
		return Grid{}, fmt.Errorf("%w: empty grid", ErrConfig)
	}
	g := NewGrid(size)
	for r, row := range rows {
		if len(row) != size {
			return Grid{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrConfig, r, len(row), size)
		}
		copy(g.Cells[r*size:(r+1)*size], row)
	}
	return g, nil
}

// Idx returns the flat index for (row, col).
func (g Grid) Idx(row, col int) int { return row*g.Size + col }

// At returns the value at (row, col).
func (g Grid) At(row, col int) float64 { return g.Cells[g.Idx(row, col)] }

// Set stores v at (row, col). The backing slice is shared between
// copies of the struct; use Clone first when the source must survive.
func (g Grid) Set(row, col int, v float64) { g.Cells[g.Idx(row, col)] = v }

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	out := Grid{Size: g.Size, Cells: make([]float64, len(g.Cells))}
	copy(out.Cells, g.Cells)
	return out
}

// Validate checks the grid is non-empty and square.
func (g Grid) Validate() error {
	if g.Size <= 0 {
		return fmt.Errorf("%w: grid size must be positive, got %d", ErrConfig, g.Size)
	}
	if len(g.Cells) != g.Size*g.Size {
		return fmt.Errorf("%w: grid has %d cells, want %d", ErrConfig, len(g.Cells), g.Size*g.Size)
	}
	return nil
}

// ValidateFinite checks every cell is finite and non-negative. Used at
// the refinement boundary where bad values must surface, not pass.
func (g Grid) ValidateFinite() error {
	for i, v := range g.Cells {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at cell (%d,%d)", ErrData, i/g.Size, i%g.Size)
		}
		if v < 0 {
			return fmt.Errorf("%w: negative value %g at cell (%d,%d)", ErrData, v, i/g.Size, i%g.Size)
		}
	}
	return nil
}

// Normalize rescales the grid to [0,1] by min-max. A constant grid
// normalises to all zeros: no spread means no signal, and the
// degenerate case must never produce NaN.
func Normalize(g Grid) Grid {
	out := NewGrid(g.Size)
	if len(g.Cells) == 0 {
		return out
	}
	lo := floats.Min(g.Cells)
	hi := floats.Max(g.Cells)
	spread := hi - lo
	if spread == 0 {
		return out
	}
	for i, v := range g.Cells {
		n := (v - lo) / spread
		// Guard against floating rounding pushing values outside [0,1].
		if n < 0 {
			n = 0
		} else if n > 1 {
			n = 1
		}
		out.Cells[i] = n
	}
	return out
}
