package render

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/astana-data/hotspot.report/internal/hotspot"
)

// gridXYZ adapts a velocity grid to gonum's heat map data interface,
// mapping cell indices to geographic coordinates.
type gridXYZ struct {
	grid   hotspot.Grid
	bounds hotspot.GeoBounds
}

func (g gridXYZ) Dims() (c, r int) { return g.grid.Size, g.grid.Size }

func (g gridXYZ) Z(c, r int) float64 { return g.grid.At(r, c) }

func (g gridXYZ) X(c int) float64 {
	_, lon := g.bounds.CellCenter(0, c, g.grid.Size)
	return lon
}

func (g gridXYZ) Y(r int) float64 {
	lat, _ := g.bounds.CellCenter(r, 0, g.grid.Size)
	return lat
}

// SaveGridPNG renders a velocity grid as a PNG heat map at path.
func SaveGridPNG(grid hotspot.Grid, bounds hotspot.GeoBounds, title, path string) error {
	if err := grid.Validate(); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "longitude"
	p.Y.Label.Text = "latitude"

	hm := plotter.NewHeatMap(gridXYZ{grid: grid, bounds: bounds}, palette.Heat(16, 1))
	p.Add(hm)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save grid plot: %w", err)
	}
	return nil
}
