// Package form describes the per-algorithm hyperparameter controls and turns
// submitted values into a validated parameter set.
package form

import (
	"math"
	"slices"
	"strconv"

	"github.com/go-viper/mapstructure/v2"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// Algorithm identifies one of the selectable classifiers.
type Algorithm string

const (
	SVM                Algorithm = "svm"
	LogisticRegression Algorithm = "logistic_regression"
	RandomForest       Algorithm = "random_forest"
)

// Hyperparameter ranges of the controls.
const (
	CMin  = 0.01
	CMax  = 10.0
	CStep = 0.01

	MaxIterMin = 100
	MaxIterMax = 500

	NEstimatorsMin  = 100
	NEstimatorsMax  = 5000
	NEstimatorsStep = 10

	MaxDepthMin = 1
	MaxDepthMax = 20

	KernelRBF    = "rbf"
	KernelLinear = "linear"
	GammaScale   = "scale"
	GammaAuto    = "auto"
)

var (
	kernels = []string{KernelRBF, KernelLinear}
	gammas  = []string{GammaScale, GammaAuto}
)

// Algorithms returns every algorithm in selector order.
func Algorithms() []Algorithm {
	return []Algorithm{SVM, LogisticRegression, RandomForest}
}

// DisplayName returns the label shown in the selector.
func (a Algorithm) DisplayName() string {
	switch a {
	case SVM:
		return "Support Vector Machine (SVM)"
	case LogisticRegression:
		return "Logistic Regression"
	case RandomForest:
		return "Random Forest"
	default:
		return string(a)
	}
}

// Valid reports whether a is one of Algorithms().
func (a Algorithm) Valid() bool {
	return slices.Contains(Algorithms(), a)
}

// ParseAlgorithm accepts an identifier ("svm") or a display name.
func ParseAlgorithm(s string) (Algorithm, error) {
	for _, a := range Algorithms() {
		if s == string(a) || s == a.DisplayName() {
			return a, nil
		}
	}
	return "", errors.NewValueError("form.ParseAlgorithm", "unknown classifier: "+s)
}

// Params is the hyperparameter set of exactly one algorithm.
type Params interface {
	Algorithm() Algorithm
	// Clamp moves numeric values into their ranges and rejects choices outside their sets.
	Clamp() error
	// Values renders the parameters as form values keyed by control name.
	Values() map[string]string
}

// SVMParams are the controls of the support vector machine.
type SVMParams struct {
	C      float64 `mapstructure:"C"`
	Kernel string  `mapstructure:"kernel"`
	Gamma  string  `mapstructure:"gamma"`
}

// LogisticParams are the controls of logistic regression.
type LogisticParams struct {
	C       float64 `mapstructure:"C"`
	MaxIter int     `mapstructure:"max_iter"`
}

// ForestParams are the controls of the random forest.
type ForestParams struct {
	NEstimators int  `mapstructure:"n_estimators"`
	MaxDepth    int  `mapstructure:"max_depth"`
	Bootstrap   bool `mapstructure:"bootstrap"`
}

func (SVMParams) Algorithm() Algorithm      { return SVM }
func (LogisticParams) Algorithm() Algorithm { return LogisticRegression }
func (ForestParams) Algorithm() Algorithm   { return RandomForest }

func (p *SVMParams) Clamp() error {
	c, err := clampFloat(SVM, "C", p.C, CMin, CMax)
	if err != nil {
		return err
	}
	p.C = c
	if !slices.Contains(kernels, p.Kernel) {
		return errors.NewInvalidHyperparameterError(string(SVM), "kernel", p.Kernel, nil)
	}
	if !slices.Contains(gammas, p.Gamma) {
		return errors.NewInvalidHyperparameterError(string(SVM), "gamma", p.Gamma, nil)
	}
	return nil
}

func (p *LogisticParams) Clamp() error {
	c, err := clampFloat(LogisticRegression, "C", p.C, CMin, CMax)
	if err != nil {
		return err
	}
	p.C = c
	p.MaxIter = min(max(p.MaxIter, MaxIterMin), MaxIterMax)
	return nil
}

func (p *ForestParams) Clamp() error {
	p.NEstimators = min(max(p.NEstimators, NEstimatorsMin), NEstimatorsMax)
	p.MaxDepth = min(max(p.MaxDepth, MaxDepthMin), MaxDepthMax)
	return nil
}

func (p SVMParams) Values() map[string]string {
	return map[string]string{"C": formatFloat(p.C), "kernel": p.Kernel, "gamma": p.Gamma}
}

func (p LogisticParams) Values() map[string]string {
	return map[string]string{"C": formatFloat(p.C), "max_iter": strconv.Itoa(p.MaxIter)}
}

func (p ForestParams) Values() map[string]string {
	return map[string]string{
		"n_estimators": strconv.Itoa(p.NEstimators),
		"max_depth":    strconv.Itoa(p.MaxDepth),
		"bootstrap":    strconv.FormatBool(p.Bootstrap),
	}
}

func clampFloat(alg Algorithm, name string, v, lo, hi float64) (float64, error) {
	if math.IsNaN(v) {
		return 0, errors.NewInvalidHyperparameterError(string(alg), name, v, nil)
	}
	return math.Min(math.Max(v, lo), hi), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Defaults returns the initial control values of alg.
func Defaults(alg Algorithm) (Params, error) {
	switch alg {
	case SVM:
		return &SVMParams{C: CMin, Kernel: KernelRBF, Gamma: GammaScale}, nil
	case LogisticRegression:
		return &LogisticParams{C: CMin, MaxIter: MaxIterMin}, nil
	case RandomForest:
		return &ForestParams{NEstimators: NEstimatorsMin, MaxDepth: MaxDepthMin, Bootstrap: true}, nil
	default:
		return nil, errors.NewValueError("form.Defaults", "unknown classifier: "+string(alg))
	}
}

// Decode reads the controls of alg from submitted values on top of its defaults.
// Keys of other algorithms are ignored, so switching the classifier discards
// values entered for the previous one. Numbers are clamped into range.
func Decode(alg Algorithm, values map[string][]string) (Params, error) {
	params, err := Defaults(alg)
	if err != nil {
		return nil, err
	}

	input := make(map[string]any)
	for _, c := range Controls(alg) {
		vs := values[c.Name]
		if len(vs) == 0 || vs[0] == "" {
			continue
		}
		input[c.Name] = vs[0]
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           params,
	})
	if err != nil {
		return nil, errors.Wrap(err, "form decoder")
	}
	if err := decoder.Decode(input); err != nil {
		return nil, errors.NewInvalidHyperparameterError(string(alg), "", nil, err)
	}
	if err := params.Clamp(); err != nil {
		return nil, err
	}
	return params, nil
}
