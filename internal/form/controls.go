package form

import (
	"strconv"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// ControlKind is the widget used for a control.
type ControlKind string

const (
	KindNumber ControlKind = "number"
	KindSlider ControlKind = "slider"
	KindRadio  ControlKind = "radio"
)

// Control describes one hyperparameter widget.
type Control struct {
	Name    string
	Label   string
	Kind    ControlKind
	Min     float64
	Max     float64
	Step    float64
	Options []string
	Default string
}

// Controls returns the widgets of alg in display order; nil for an unknown algorithm.
func Controls(alg Algorithm) []Control {
	switch alg {
	case SVM:
		return []Control{
			{Name: "C", Label: "C (Regularization Parameter)", Kind: KindNumber, Min: CMin, Max: CMax, Step: CStep, Default: formatFloat(CMin)},
			{Name: "kernel", Label: "Kernel", Kind: KindRadio, Options: kernels, Default: KernelRBF},
			{Name: "gamma", Label: "Gamma (Kernel Coefficient)", Kind: KindRadio, Options: gammas, Default: GammaScale},
		}
	case LogisticRegression:
		return []Control{
			{Name: "C", Label: "C (Regularization Parameter)", Kind: KindNumber, Min: CMin, Max: CMax, Step: CStep, Default: formatFloat(CMin)},
			{Name: "max_iter", Label: "Maximum number of iterations", Kind: KindSlider, Min: MaxIterMin, Max: MaxIterMax, Step: 1, Default: strconv.Itoa(MaxIterMin)},
		}
	case RandomForest:
		return []Control{
			{Name: "n_estimators", Label: "The number of trees in the forest", Kind: KindNumber, Min: NEstimatorsMin, Max: NEstimatorsMax, Step: NEstimatorsStep, Default: strconv.Itoa(NEstimatorsMin)},
			{Name: "max_depth", Label: "The maximum depth of the tree", Kind: KindNumber, Min: MaxDepthMin, Max: MaxDepthMax, Step: 1, Default: strconv.Itoa(MaxDepthMin)},
			{Name: "bootstrap", Label: "Bootstrap samples while building trees", Kind: KindRadio, Options: []string{"true", "false"}, Default: "true"},
		}
	default:
		return nil
	}
}

// PlotKind is a diagnostic figure the user can request.
type PlotKind string

const (
	ConfusionMatrix      PlotKind = "confusion_matrix"
	ROCCurve             PlotKind = "roc_curve"
	PrecisionRecallCurve PlotKind = "precision_recall_curve"
)

// PlotKinds returns every plot kind in rendering order.
func PlotKinds() []PlotKind {
	return []PlotKind{ConfusionMatrix, ROCCurve, PrecisionRecallCurve}
}

// Title returns the subheading of the figure.
func (k PlotKind) Title() string {
	switch k {
	case ConfusionMatrix:
		return "Confusion Matrix"
	case ROCCurve:
		return "ROC Curve"
	case PrecisionRecallCurve:
		return "Precision-Recall Curve"
	default:
		return string(k)
	}
}

// ParsePlotKinds accepts identifiers or titles and returns the requested kinds
// de-duplicated, in PlotKinds() order regardless of the input order.
func ParsePlotKinds(values []string) ([]PlotKind, error) {
	requested := make(map[PlotKind]bool, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		found := false
		for _, k := range PlotKinds() {
			if v == string(k) || v == k.Title() {
				requested[k] = true
				found = true
				break
			}
		}
		if !found {
			return nil, errors.NewValueError("form.ParsePlotKinds", "unknown metric to plot: "+v)
		}
	}

	kinds := make([]PlotKind, 0, len(requested))
	for _, k := range PlotKinds() {
		if requested[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}
