// Package render turns an evaluation result into the requested diagnostic figures.
package render

import (
	"html/template"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/binclass/internal/evaluate"
	"github.com/YuminosukeSato/binclass/internal/form"
	"github.com/YuminosukeSato/binclass/metrics"
	"github.com/YuminosukeSato/binclass/pkg/errors"
	"github.com/YuminosukeSato/binclass/plotting"
)

// DefaultClassNames label the confusion matrix axes (negative, positive).
var DefaultClassNames = []string{"edible", "poisonous"}

// Figure is one rendered plot.
type Figure struct {
	Kind  form.PlotKind
	Title string
	Plot  *plot.Plot
}

// SVG encodes the figure for inline use in a page.
func (f Figure) SVG() (template.HTML, error) {
	b, err := plotting.Encode(f.Plot, plotting.FormatSVG, plotting.DefaultWidth, plotting.DefaultHeight)
	if err != nil {
		return "", err
	}
	return template.HTML(b), nil //nolint:gosec // generated by vgsvg
}

// PNG encodes the figure as a PNG image of the given size.
func (f Figure) PNG(width, height vg.Length) ([]byte, error) {
	return plotting.Encode(f.Plot, plotting.FormatPNG, width, height)
}

// Renderer draws figures for evaluation results.
type Renderer struct {
	classNames []string
}

// New returns a Renderer; classNames are the (negative, positive) display labels.
func New(classNames []string) *Renderer {
	if len(classNames) != 2 {
		classNames = DefaultClassNames
	}
	return &Renderer{classNames: append([]string(nil), classNames...)}
}

// Render returns one figure per requested kind in form.PlotKinds() order.
// No kinds gives no figures.
func (r *Renderer) Render(res *evaluate.Result, kinds []form.PlotKind) ([]Figure, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	if res == nil {
		return nil, errors.NewValueError("render.Render", "no result")
	}

	requested := make(map[form.PlotKind]bool, len(kinds))
	for _, k := range kinds {
		if !slices.Contains(form.PlotKinds(), k) {
			return nil, errors.NewValueError("render.Render", "unknown plot kind: "+string(k))
		}
		requested[k] = true
	}

	name := res.Algorithm.DisplayName()
	var figures []Figure
	for _, kind := range form.PlotKinds() {
		if !requested[kind] {
			continue
		}
		var (
			p   *plot.Plot
			err error
		)
		switch kind {
		case form.ConfusionMatrix:
			p, err = r.confusionMatrix(res)
		case form.ROCCurve:
			p, err = r.rocCurve(res, name)
		case form.PrecisionRecallCurve:
			p, err = r.precisionRecallCurve(res, name)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "render %s", kind)
		}
		figures = append(figures, Figure{Kind: kind, Title: kind.Title(), Plot: p})
	}
	return figures, nil
}

func (r *Renderer) confusionMatrix(res *evaluate.Result) (*plot.Plot, error) {
	cm, err := res.ConfusionMatrix()
	if err != nil {
		return nil, err
	}
	return plotting.ConfusionMatrix(cm, r.classNames)
}

func (r *Renderer) rocCurve(res *evaluate.Result, name string) (*plot.Plot, error) {
	fpr, tpr, _, err := metrics.ROCCurve(res.YTrue, res.Scores, res.PositiveLabel)
	if err != nil {
		return nil, err
	}
	auc, err := metrics.AUC(res.YTrue, res.Scores, res.PositiveLabel)
	if err != nil {
		return nil, err
	}
	return plotting.ROCCurve(fpr, tpr, auc, name, r.positiveName())
}

func (r *Renderer) precisionRecallCurve(res *evaluate.Result, name string) (*plot.Plot, error) {
	precision, recall, _, err := metrics.PrecisionRecallCurve(res.YTrue, res.Scores, res.PositiveLabel)
	if err != nil {
		return nil, err
	}
	ap, err := metrics.AveragePrecisionScore(res.YTrue, res.Scores, res.PositiveLabel)
	if err != nil {
		return nil, err
	}
	return plotting.PrecisionRecallCurve(precision, recall, ap, name, r.positiveName())
}

// positiveName is the display name of the class scored as positive.
func (r *Renderer) positiveName() string {
	return r.classNames[1]
}
