// Package render produces the output artefacts of a detection run:
// interactive HTML heat maps, tile CSV exports, and PNG grid plots.
package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/astana-data/hotspot.report/internal/hotspot"
)

// viridisColors is the perceptually uniform ramp used across all heat
// visualisations.
var viridisColors = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// TileHeatmapHTML renders the tile heat map of a report as a
// standalone HTML page.
func TileHeatmapHTML(report hotspot.Report, w io.Writer) error {
	rows, cols := tileGridDims(report.Tiles)
	if rows == 0 {
		return fmt.Errorf("report has no tiles to render")
	}

	data := make([]opts.HeatMapData, 0, len(report.Tiles))
	maxHeat := 0.0
	for _, tile := range report.Tiles {
		if tile.HeatLevel > maxHeat {
			maxHeat = tile.HeatLevel
		}
		data = append(data, opts.HeatMapData{Value: [3]interface{}{tile.GridY, tile.GridX, tile.HeatLevel}})
	}
	if maxHeat == 0 {
		maxHeat = 1
	}

	xLabels := make([]string, cols)
	for j := range xLabels {
		xLabels[j] = fmt.Sprintf("%02d", j)
	}
	yLabels := make([]string, rows)
	for i := range yLabels {
		yLabels[i] = fmt.Sprintf("%02d", i)
	}

	title := "Traffic Hot Spots"
	subtitle := fmt.Sprintf("%s report, %d clusters, generated %s",
		report.Kind, len(report.Clusters), report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if report.Kind == hotspot.ReportPredicted {
		subtitle = fmt.Sprintf("%s (+%d min)", subtitle, report.HorizonMinutes)
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "tile column", SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "tile row", Data: yLabels, SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxHeat),
			InRange:    &opts.VisualMapInRange{Color: viridisColors},
		}),
	)
	hm.SetXAxis(xLabels).AddSeries("heat", data)

	return hm.Render(w)
}

// tileGridDims returns the tile grid dimensions implied by the tile
// indices.
func tileGridDims(tiles []hotspot.Tile) (rows, cols int) {
	for _, t := range tiles {
		if t.GridX+1 > rows {
			rows = t.GridX + 1
		}
		if t.GridY+1 > cols {
			cols = t.GridY + 1
		}
	}
	return rows, cols
}
