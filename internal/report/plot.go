package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// RenderPlot draws the per height series as a line chart and saves it,
// the format follows the file extension (.png for the CLI default).
func RenderPlot(points []Point, path string) error {
	if len(points) == 0 {
		return fmt.Errorf("no indexed heights to plot")
	}

	p := plot.New()
	p.Title.Text = "OP_CAT transactions per block"
	p.X.Label.Text = "block height"
	p.Y.Label.Text = "transactions"

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = float64(pt.Height)
		xys[i].Y = float64(pt.Count)
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	p.Add(plotter.NewGrid(), line)

	return p.Save(12*vg.Inch, 6*vg.Inch, path)
}
