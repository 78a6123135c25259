package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/astana-data/hotspot.report/internal/hotspot"
)

// tileHeader is the stable column contract for tile exports. Changing
// it breaks downstream consumers.
var tileHeader = []string{
	"tile_id", "grid_x", "grid_y",
	"lat_min", "lat_max", "lon_min", "lon_max",
	"center_lat", "center_lon",
	"heat_level", "normalized_heat",
}

// WriteTilesCSV writes the tile set of a report as CSV with a header
// row. Tiles are written in the order given; reports already order
// them by tile_id.
func WriteTilesCSV(w io.Writer, tiles []hotspot.Tile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tileHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range tiles {
		record := []string{
			t.TileID,
			strconv.Itoa(t.GridX),
			strconv.Itoa(t.GridY),
			formatCoord(t.LatMin),
			formatCoord(t.LatMax),
			formatCoord(t.LonMin),
			formatCoord(t.LonMax),
			formatCoord(t.CenterLat),
			formatCoord(t.CenterLon),
			formatValue(t.HeatLevel),
			formatValue(t.NormalizedHeat),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write tile %s: %w", t.TileID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var clusterHeader = []string{
	"center_lat", "center_lon",
	"intensity", "heat_level", "member_count",
	"refinement_factor", "organization_count", "event_count",
}

// WriteClustersCSV writes the cluster summaries of a report as CSV.
func WriteClustersCSV(w io.Writer, clusters []hotspot.ClusterSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(clusterHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, c := range clusters {
		record := []string{
			formatCoord(c.CenterLat),
			formatCoord(c.CenterLon),
			formatValue(c.Intensity),
			formatValue(c.HeatLevel),
			strconv.Itoa(c.MemberCount),
			formatValue(c.RefinementFactor),
			strconv.Itoa(c.OrganizationCount),
			strconv.Itoa(len(c.Events)),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write cluster %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCoord(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

func formatValue(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
