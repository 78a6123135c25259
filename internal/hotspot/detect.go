package hotspot

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/astana-data/hotspot.report/internal/monitoring"
)

// Detect thresholds the normalised grid, clusters the surviving cells
// by 8-connected adjacency, and computes a weighted geographic centre
// and aggregate intensity per cluster.
//
// Cells are compared with strict > so a cell exactly at the threshold
// is excluded. Iteration is row-major, which fixes tie-breaking in the
// connected-component labelling and makes cluster membership and
// ordering exactly reproducible for a given grid and threshold.
//
// An empty cluster list is a valid outcome, not an error.
func Detect(normalized, raw Grid, bounds GeoBounds, threshold float64) ([]Cluster, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %g outside [0,1]", ErrConfig, threshold)
	}
	if err := normalized.Validate(); err != nil {
		return nil, err
	}
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	if normalized.Size != raw.Size {
		return nil, fmt.Errorf("%w: normalized grid is %dx%d but raw grid is %dx%d",
			ErrConfig, normalized.Size, normalized.Size, raw.Size, raw.Size)
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	size := normalized.Size
	mask := make([]bool, size*size)
	count := 0
	for i, v := range normalized.Cells {
		if v > threshold {
			mask[i] = true
			count++
		}
	}
	if count == 0 {
		monitoring.Logf("detect: no cells above threshold %.2f", threshold)
		return nil, nil
	}

	visited := make([]bool, size*size)
	var clusters []Cluster
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			idx := normalized.Idx(row, col)
			if !mask[idx] || visited[idx] {
				continue
			}
			members := floodFill(normalized, raw, mask, visited, row, col)
			clusters = append(clusters, buildCluster(members, bounds, size))
		}
	}
	return clusters, nil
}

// floodFill collects the 8-connected component containing (row, col).
// Members come back sorted in row-major order regardless of traversal
// order.
func floodFill(normalized, raw Grid, mask, visited []bool, row, col int) []Candidate {
	size := normalized.Size
	queue := []Cell{{Row: row, Col: col}}
	visited[normalized.Idx(row, col)] = true

	var members []Candidate
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		members = append(members, Candidate{
			Cell:      c,
			Intensity: normalized.At(c.Row, c.Col),
			Heat:      raw.At(c.Row, c.Col),
		})
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if dr == 0 && dc == 0 {
					continue
				}
				nr, nc := c.Row+dr, c.Col+dc
				if nr < 0 || nr >= size || nc < 0 || nc >= size {
					continue
				}
				nIdx := normalized.Idx(nr, nc)
				if mask[nIdx] && !visited[nIdx] {
					visited[nIdx] = true
					queue = append(queue, Cell{Row: nr, Col: nc})
				}
			}
		}
	}

	sort.Slice(members, func(a, b int) bool {
		if members[a].Row != members[b].Row {
			return members[a].Row < members[b].Row
		}
		return members[a].Col < members[b].Col
	})
	return members
}

// buildCluster computes the intensity-weighted centre and aggregate
// intensity for one component. Weights are the normalised intensities,
// all strictly positive by the threshold comparison.
func buildCluster(members []Candidate, bounds GeoBounds, size int) Cluster {
	lats := make([]float64, len(members))
	lons := make([]float64, len(members))
	rows := make([]float64, len(members))
	cols := make([]float64, len(members))
	weights := make([]float64, len(members))

	peak := 0.0
	heatSum := 0.0
	for i, m := range members {
		lat, lon := bounds.CellCenter(m.Row, m.Col, size)
		lats[i] = lat
		lons[i] = lon
		rows[i] = float64(m.Row)
		cols[i] = float64(m.Col)
		weights[i] = m.Intensity
		if m.Intensity > peak {
			peak = m.Intensity
		}
		heatSum += m.Heat
	}

	return Cluster{
		Members:       members,
		CenterLat:     stat.Mean(lats, weights),
		CenterLon:     stat.Mean(lons, weights),
		CenterRow:     stat.Mean(rows, weights),
		CenterCol:     stat.Mean(cols, weights),
		PeakIntensity: peak,
		MeanHeat:      heatSum / float64(len(members)),
	}
}
