// Package testutil provides shared fixtures for grid and report
// tests.
//
// This package centralises common fixtures to reduce duplication
// across test files. It must not be imported by non-test code.
package testutil

import (
	"time"

	"github.com/astana-data/hotspot.report/internal/hotspot"
)

// Bounds returns the coverage area used across tests: a 0.1 degree
// square over central Astana.
func Bounds() hotspot.GeoBounds {
	return hotspot.GeoBounds{
		LatMin: 51.1194,
		LatMax: 51.2194,
		LonMin: 71.3991,
		LonMax: 71.4991,
	}
}

// BlockGrid returns a size×size grid filled with base and a
// blockSize×blockSize block of peak values whose top-left corner is at
// (blockRow, blockCol).
func BlockGrid(size int, base, peak float64, blockRow, blockCol, blockSize int) hotspot.Grid {
	grid := hotspot.NewGrid(size)
	for i := range grid.Cells {
		grid.Cells[i] = base
	}
	for r := blockRow; r < blockRow+blockSize && r < size; r++ {
		for c := blockCol; c < blockCol+blockSize && c < size; c++ {
			grid.Set(r, c, peak)
		}
	}
	return grid
}

// GradientGrid returns a size×size grid with distinct ascending cell
// values, useful for tiling and rendering tests.
func GradientGrid(size int) hotspot.Grid {
	grid := hotspot.NewGrid(size)
	for i := range grid.Cells {
		grid.Cells[i] = float64(30 + i%25)
	}
	return grid
}

// FixedTime returns the reference timestamp used for deterministic
// report assertions.
func FixedTime() time.Time {
	return time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
}

// SampleRun builds a stored-run fixture with one current cluster over
// the standard bounds, and optionally a predicted report.
func SampleRun(runID string, started time.Time, withPrediction bool) (*hotspot.RunResult, error) {
	tiles, err := hotspot.BuildTiles(GradientGrid(10), Bounds(), 1100)
	if err != nil {
		return nil, err
	}
	clusters := []hotspot.ClusterSummary{
		{CenterLat: 51.16, CenterLon: 71.44, Intensity: 0.9, HeatLevel: 54, MemberCount: 4, RefinementFactor: 1.5},
	}
	current, predicted := hotspot.AssembleReports(started, Bounds(), 30, clusters, tiles, clusters, tiles)

	result := &hotspot.RunResult{RunID: runID, StartedAt: started, Current: current}
	if withPrediction {
		result.Predicted = &predicted
	}
	return result, nil
}
