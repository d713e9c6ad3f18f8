package metrics

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot renders the confusion matrix as a heat map image at path, with
// one axis tick per class name. The image format follows the file
// extension.
func Plot(c *Confusion, classes []string, path string) error {
	if len(classes) != c.Classes() {
		return errors.Errorf("metrics: %d class names for a %d-class matrix", len(classes), c.Classes())
	}

	p := plot.New()
	p.Title.Text = "Confusion Matrix"
	p.X.Label.Text = "predicted"
	p.Y.Label.Text = "true"

	hm := plotter.NewHeatMap(confusionGrid{c}, palette.Heat(12, 1))
	p.Add(hm)

	ticks := classTicks(classes)
	p.X.Tick.Marker = ticks
	p.Y.Tick.Marker = ticks

	if err := p.Save(5*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "metrics: save plot %s", path)
	}
	return nil
}

// confusionGrid adapts a Confusion to plotter.GridXYZ. Rows are true
// classes, columns predicted classes.
type confusionGrid struct {
	c *Confusion
}

func (g confusionGrid) Dims() (int, int) {
	return g.c.Classes(), g.c.Classes()
}

func (g confusionGrid) X(col int) float64 {
	return float64(col)
}

func (g confusionGrid) Y(row int) float64 {
	return float64(row)
}

func (g confusionGrid) Z(col, row int) float64 {
	return float64(g.c.Count(col, row))
}

type classTicks []string

func (t classTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for i, name := range t {
		v := float64(i)
		if v < min || v > max {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: name})
	}
	return ticks
}
