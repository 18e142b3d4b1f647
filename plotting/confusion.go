package plotting

import (
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// confusionGrid adapts a confusion matrix to plotter.GridXYZ.
// Column c is the predicted label, row r counts from the bottom so that
// the first true label is drawn at the top.
type confusionGrid struct {
	cm *mat.Dense
	n  int
}

func (g confusionGrid) Dims() (c, r int)   { return g.n, g.n }
func (g confusionGrid) Z(c, r int) float64 { return g.cm.At(g.n-1-r, c) }
func (g confusionGrid) X(c int) float64    { return float64(c) }
func (g confusionGrid) Y(r int) float64    { return float64(r) }

// ConfusionMatrix draws cm (rows: true label, columns: predicted label) as a heat map
// with the count of each cell written on it.
func ConfusionMatrix(cm mat.Matrix, displayLabels []string) (*plot.Plot, error) {
	if cm == nil {
		return nil, errors.NewValueError("plotting.ConfusionMatrix", "confusion matrix is nil")
	}
	r, c := cm.Dims()
	if r != c || r == 0 {
		return nil, errors.NewValueError("plotting.ConfusionMatrix", "confusion matrix must be square and non-empty")
	}
	if len(displayLabels) != r {
		return nil, errors.NewDimensionError("plotting.ConfusionMatrix", r, len(displayLabels), 0)
	}

	grid := confusionGrid{cm: mat.DenseCopyOf(cm), n: r}
	p := newPlot("Confusion Matrix", "Predicted label", "True label")

	hm := plotter.NewHeatMap(grid, palette.Heat(16, 1))
	if hm.Min == hm.Max {
		// 単色の行列でもパレットの添字が定まるようにする
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	var cells plotter.XYLabels
	for row := 0; row < r; row++ {
		for col := 0; col < r; col++ {
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(col), Y: float64(row)})
			cells.Labels = append(cells.Labels, strconv.FormatFloat(grid.Z(col, row), 'f', -1, 64))
		}
	}
	labels, err := plotter.NewLabels(cells)
	if err != nil {
		return nil, errors.Wrap(err, "confusion matrix labels")
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = text.XCenter
		labels.TextStyle[i].YAlign = text.YCenter
	}
	p.Add(labels)

	p.NominalX(displayLabels...)
	reversed := make([]string, r)
	for i, l := range displayLabels {
		reversed[r-1-i] = l
	}
	p.NominalY(reversed...)
	return p, nil
}
