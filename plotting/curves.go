package plotting

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

func curvePoints(op string, xs, ys []float64) (plotter.XYs, error) {
	if len(xs) != len(ys) {
		return nil, errors.NewDimensionError(op, len(xs), len(ys), 0)
	}
	if len(xs) == 0 {
		return nil, errors.NewValueError(op, "curve has no points")
	}
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	return pts, nil
}

func unitAxes(p *plot.Plot) {
	p.X.Min, p.X.Max = -0.01, 1.01
	p.Y.Min, p.Y.Max = -0.01, 1.01
	p.Add(plotter.NewGrid())
}

// ROCCurve draws the receiver operating characteristic curve.
// The legend reads "<name> (AUC = 0.97)", or "AUC = 0.97" when name is empty.
// positive names the class the rates are computed for and is shown on both axes.
func ROCCurve(fpr, tpr []float64, auc float64, name, positive string) (*plot.Plot, error) {
	pts, err := curvePoints("plotting.ROCCurve", fpr, tpr)
	if err != nil {
		return nil, err
	}
	p := newPlot("ROC Curve", axisLabel("False Positive Rate", positive), axisLabel("True Positive Rate", positive))
	unitAxes(p)

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, errors.Wrap(err, "roc line")
	}
	line.Color = plotutil.Color(0)
	line.Width = vg.Points(1.5)

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return nil, errors.Wrap(err, "chance line")
	}
	chance.Color = plotutil.Color(1)
	chance.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(chance, line)
	p.Legend.Add(legendText(name, "AUC", auc), line)
	p.Legend.Top = false
	p.Legend.Left = false
	return p, nil
}

// PrecisionRecallCurve draws precision against recall as a post step function.
// The legend reads "<name> (AP = 0.95)", or "AP = 0.95" when name is empty.
func PrecisionRecallCurve(precision, recall []float64, averagePrecision float64, name, positive string) (*plot.Plot, error) {
	pts, err := curvePoints("plotting.PrecisionRecallCurve", recall, precision)
	if err != nil {
		return nil, err
	}
	p := newPlot("Precision-Recall Curve", axisLabel("Recall", positive), axisLabel("Precision", positive))
	unitAxes(p)

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, errors.Wrap(err, "precision-recall line")
	}
	line.Color = plotutil.Color(0)
	line.Width = vg.Points(1.5)
	line.StepStyle = plotter.PostStep

	p.Add(line)
	p.Legend.Add(legendText(name, "AP", averagePrecision), line)
	p.Legend.Top = false
	p.Legend.Left = true
	return p, nil
}

func legendText(name, metric string, value float64) string {
	if name == "" {
		return fmt.Sprintf("%s = %.2f", metric, value)
	}
	return fmt.Sprintf("%s (%s = %.2f)", name, metric, value)
}

func axisLabel(base, positive string) string {
	if positive == "" {
		return base
	}
	return fmt.Sprintf("%s (Positive label: %s)", base, positive)
}
