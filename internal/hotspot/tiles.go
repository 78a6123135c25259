package hotspot

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/astana-data/hotspot.report/internal/units"
)

// BuildTiles partitions bounds into fixed-size tiles and attaches the
// heat value of the corresponding source grid cell to each. The number
// of tiles per axis is derived from the physical extent of the bounds
// and tileSizeMeters; with the default configuration this yields a
// 10×10 tile grid aligned with the detection grid. When tile and grid
// resolutions match, the mapping is the identity; otherwise each tile
// reads the proportionally corresponding cell.
//
// Tiles cover the bounds exactly, with no gaps or overlaps beyond
// floating rounding. NormalizedHeat is min-max scaled over the tile
// set emitted by this call.
func BuildTiles(grid Grid, bounds GeoBounds, tileSizeMeters float64) ([]Tile, error) {
	if tileSizeMeters <= 0 {
		return nil, fmt.Errorf("%w: tile size must be positive, got %g meters", ErrConfig, tileSizeMeters)
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	// The tile grid is square: the count per axis comes from the
	// meridional extent, so the zonal tile edge follows the aspect
	// ratio of the bounds rather than being exactly tileSizeMeters.
	latMeters := units.HaversineMeters(bounds.LatMin, bounds.LonMin, bounds.LatMax, bounds.LonMin)
	rows := tileAxisCount(latMeters, tileSizeMeters)
	cols := rows

	latStep := (bounds.LatMax - bounds.LatMin) / float64(rows)
	lonStep := (bounds.LonMax - bounds.LonMin) / float64(cols)

	// Sample heats first: normalization ranges over the emitted tile
	// set, not the source grid, so cells skipped by a coarser tile
	// grid do not shift the scale.
	heats := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			srcRow := i * grid.Size / rows
			srcCol := j * grid.Size / cols
			heats = append(heats, grid.At(srcRow, srcCol))
		}
	}
	lo, hi := floats.Min(heats), floats.Max(heats)
	spread := hi - lo

	tiles := make([]Tile, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			heat := heats[i*cols+j]

			normalized := 0.0
			if spread > 0 {
				normalized = (heat - lo) / spread
			}

			latMin := bounds.LatMin + float64(i)*latStep
			lonMin := bounds.LonMin + float64(j)*lonStep
			tiles = append(tiles, Tile{
				TileID:         fmt.Sprintf("%02d_%02d", i, j),
				GridX:          i,
				GridY:          j,
				LatMin:         latMin,
				LatMax:         latMin + latStep,
				LonMin:         lonMin,
				LonMax:         lonMin + lonStep,
				CenterLat:      latMin + latStep/2,
				CenterLon:      lonMin + lonStep/2,
				HeatLevel:      heat,
				NormalizedHeat: normalized,
			})
		}
	}
	return tiles, nil
}

// tileAxisCount converts a physical extent into a whole tile count,
// never below one.
func tileAxisCount(extentMeters, tileSizeMeters float64) int {
	n := int(extentMeters/tileSizeMeters + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}
