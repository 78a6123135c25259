// Package dataset loads velocity grid histories from CSV files. Each
// row is one timestep holding the row-major cells of one grid.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/astana-data/hotspot.report/internal/hotspot"
	"github.com/astana-data/hotspot.report/internal/monitoring"
)

// LoadHistory reads a velocity history from the CSV file at path.
func LoadHistory(path string, gridSize int) ([]hotspot.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	history, err := ReadHistory(f, gridSize)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	monitoring.Logf("dataset: loaded %d timesteps of %dx%d grids from %s",
		len(history), gridSize, gridSize, path)
	return history, nil
}

// ReadHistory parses CSV rows into grids. Every row must hold exactly
// gridSize*gridSize numeric cells; a short or malformed row names its
// position in the error.
func ReadHistory(r io.Reader, gridSize int) ([]hotspot.Grid, error) {
	if gridSize <= 0 {
		return nil, fmt.Errorf("grid size must be positive, got %d", gridSize)
	}
	wantCells := gridSize * gridSize

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = wantCells

	var history []hotspot.Grid
	for row := 1; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		grid := hotspot.NewGrid(gridSize)
		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d, cell %d: %w", row, i+1, err)
			}
			grid.Cells[i] = v
		}
		if err := grid.ValidateFinite(); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		history = append(history, grid)
	}

	if len(history) == 0 {
		return nil, fmt.Errorf("dataset holds no timesteps")
	}
	return history, nil
}
