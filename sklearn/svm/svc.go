// Package svm はサポートベクターマシンによる二値分類器を提供します。
package svm

import (
	"context"
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/binclass/core/model"
	"github.com/YuminosukeSato/binclass/core/parallel"
	"github.com/YuminosukeSato/binclass/pkg/errors"
	"github.com/YuminosukeSato/binclass/pkg/log"
)

const (
	// GammaScale は 1 / (n_features * X.var())
	GammaScale = "scale"
	// GammaAuto は 1 / n_features
	GammaAuto = "auto"

	decisionParallelThreshold = 512
)

// SVC is a C-support vector classifier for binary problems.
// Compatible with scikit-learn's SVC: the decision function is positive for Classes()[1].
type SVC struct {
	state *model.StateManager

	// Hyperparameters
	C           float64
	kernel      string
	gamma       string  // "scale" or "auto"; ignored when gammaValue > 0
	gammaValue  float64 // explicit gamma
	tol         float64
	maxIter     int     // <= 0 means max(10_000_000, 100*n_samples)
	cacheSize   float64 // kernel cache in MB
	probability bool
	verbose     int

	// Model parameters
	classes_        []int
	support_        []int
	supportVectors_ [][]float64
	supportSqNorm_  []float64
	dualCoef_       []float64 // α_i y_i
	intercept_      float64
	gamma_          float64
	nIter_          int
	probA_, probB_  float64
	kernelFn        kernelFunc
}

// SVCOption is a functional option for SVC
type SVCOption func(*SVC)

// NewSVC creates a new SVC
func NewSVC(opts ...SVCOption) *SVC {
	svc := &SVC{
		state:     model.NewStateManager(),
		C:         1.0,
		kernel:    KernelRBF,
		gamma:     GammaScale,
		tol:       1e-3,
		maxIter:   -1,
		cacheSize: 200,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithC sets the regularization parameter
func WithC(c float64) SVCOption {
	return func(svc *SVC) {
		svc.C = c
	}
}

// WithKernel sets the kernel ("rbf" or "linear")
func WithKernel(kernel string) SVCOption {
	return func(svc *SVC) {
		svc.kernel = kernel
	}
}

// WithGamma sets the gamma rule ("scale" or "auto")
func WithGamma(gamma string) SVCOption {
	return func(svc *SVC) {
		svc.gamma = gamma
	}
}

// WithGammaValue sets an explicit gamma, overriding the rule
func WithGammaValue(gamma float64) SVCOption {
	return func(svc *SVC) {
		svc.gammaValue = gamma
	}
}

// WithTol sets the tolerance of the stopping criterion
func WithTol(tol float64) SVCOption {
	return func(svc *SVC) {
		svc.tol = tol
	}
}

// WithMaxIter sets the iteration limit of the solver; <= 0 means the default cap
func WithMaxIter(n int) SVCOption {
	return func(svc *SVC) {
		svc.maxIter = n
	}
}

// WithCacheSize sets the kernel cache size in MB
func WithCacheSize(mb float64) SVCOption {
	return func(svc *SVC) {
		svc.cacheSize = mb
	}
}

// WithProbability enables Platt scaling so that PredictProba is available
func WithProbability(enable bool) SVCOption {
	return func(svc *SVC) {
		svc.probability = enable
	}
}

// WithVerbose sets the verbosity level
func WithVerbose(v int) SVCOption {
	return func(svc *SVC) {
		svc.verbose = v
	}
}

func (svc *SVC) validate() error {
	if svc.C <= 0 {
		return errors.NewValidationError("C", "must be strictly positive", svc.C)
	}
	if svc.kernel != KernelRBF && svc.kernel != KernelLinear {
		return errors.NewValidationError("kernel", "must be 'rbf' or 'linear'", svc.kernel)
	}
	if svc.gammaValue < 0 {
		return errors.NewValidationError("gamma", "must be positive", svc.gammaValue)
	}
	if svc.gammaValue == 0 && svc.gamma != GammaScale && svc.gamma != GammaAuto {
		return errors.NewValidationError("gamma", "must be 'scale' or 'auto'", svc.gamma)
	}
	if svc.tol <= 0 {
		return errors.NewValidationError("tol", "must be strictly positive", svc.tol)
	}
	return nil
}

// resolveGamma は gamma の規則を数値にする
func (svc *SVC) resolveGamma(rows [][]float64, nFeatures int) float64 {
	if svc.gammaValue > 0 {
		return svc.gammaValue
	}
	if svc.gamma == GammaAuto {
		return 1 / float64(nFeatures)
	}
	all := make([]float64, 0, len(rows)*nFeatures)
	for _, r := range rows {
		all = append(all, r...)
	}
	// X.var() は母分散
	_, variance := stat.MeanVariance(all, nil)
	n := float64(len(all))
	if n > 1 {
		variance *= (n - 1) / n
	}
	if variance == 0 {
		return 1
	}
	return 1 / (float64(nFeatures) * variance)
}

// Fit trains the classifier
func (svc *SVC) Fit(X, y mat.Matrix) error {
	return svc.FitContext(context.Background(), X, y)
}

// FitContext trains the classifier; cancelling ctx stops the solver and leaves the model unfitted.
func (svc *SVC) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if err := svc.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, _ := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("SVC.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("SVC.Fit", nSamples, yRows, 0)
	}

	classes := model.ExtractClasses(y)
	switch {
	case len(classes) < 2:
		return errors.NewModelError("SVC.Fit", "the number of classes has to be greater than one", errors.ErrSingleClass)
	case len(classes) > 2:
		return errors.NewValueError("SVC.Fit", fmt.Sprintf("only binary classification is supported, got %d classes", len(classes)))
	}

	start := time.Now()
	rows := make([][]float64, nSamples)
	signs := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		rows[i] = mat.Row(nil, i, X)
		signs[i] = -1
		if int(y.At(i, 0)) == classes[1] {
			signs[i] = 1
		}
	}

	gamma := svc.resolveGamma(rows, nFeatures)
	kfn := newKernelFunc(svc.kernel, gamma)
	cache := newKernelCache(rows, kfn, svc.cacheSize)
	solver := newSMOSolver(signs, svc.C, svc.tol, cache)

	maxIter := svc.maxIter
	if maxIter <= 0 {
		maxIter = max(10_000_000, 100*nSamples)
	}
	iter, converged, err := solver.solve(ctx, maxIter)
	if err != nil {
		return err
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("SVC", iter, "solver terminated early (max_iter reached)"))
	}

	svc.support_ = svc.support_[:0]
	svc.supportVectors_ = svc.supportVectors_[:0]
	svc.supportSqNorm_ = svc.supportSqNorm_[:0]
	svc.dualCoef_ = svc.dualCoef_[:0]
	for i, a := range solver.alpha {
		if a > 0 {
			svc.support_ = append(svc.support_, i)
			svc.supportVectors_ = append(svc.supportVectors_, rows[i])
			svc.supportSqNorm_ = append(svc.supportSqNorm_, cache.sqNorm[i])
			svc.dualCoef_ = append(svc.dualCoef_, a*signs[i])
		}
	}
	svc.intercept_ = -solver.rho()
	svc.gamma_ = gamma
	svc.kernelFn = kfn
	svc.classes_ = classes
	svc.nIter_ = iter

	svc.state.SetDimensions(nFeatures, nSamples)
	svc.state.SetFitted()

	if svc.probability {
		dec := svc.decision(rows)
		svc.probA_, svc.probB_ = plattFit(dec, signs)
	}

	if svc.verbose > 0 {
		logger := log.GetLoggerWithName("svm.svc")
		logger.Debug("SVC fitted",
			log.SamplesKey, nSamples,
			log.FeaturesKey, nFeatures,
			log.IterationKey, iter,
			"n_support", len(svc.support_),
			"gamma", gamma,
			log.DurationMsKey, time.Since(start).Milliseconds())
	}
	return nil
}

// decision は各行の決定関数値を計算する
func (svc *SVC) decision(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	parallel.ParallelizeWithThreshold(len(rows), decisionParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			x := rows[i]
			sq := 0.0
			for _, v := range x {
				sq += v * v
			}
			f := svc.intercept_
			for s, sv := range svc.supportVectors_ {
				f += svc.dualCoef_[s] * svc.kernelFn(sv, x, svc.supportSqNorm_[s], sq)
			}
			out[i] = f
		}
	})
	return out
}

func (svc *SVC) checkInput(op string, X mat.Matrix) ([][]float64, error) {
	if err := svc.state.RequireFitted("SVC", op); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := svc.state.CheckFeatures("SVC."+op, nFeatures); err != nil {
		return nil, err
	}
	rows := make([][]float64, nSamples)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}
	return rows, nil
}

// DecisionFunction returns the signed distance to the separating hyperplane (n_samples × 1).
// Positive values favour Classes()[1].
func (svc *SVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	rows, err := svc.checkInput("DecisionFunction", X)
	if err != nil {
		return nil, err
	}
	dec := svc.decision(rows)
	return mat.NewDense(len(dec), 1, dec), nil
}

// Predict returns Classes()[1] where the decision function is positive, Classes()[0] otherwise
func (svc *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, err := svc.checkInput("Predict", X)
	if err != nil {
		return nil, err
	}
	dec := svc.decision(rows)
	predictions := mat.NewDense(len(dec), 1, nil)
	for i, f := range dec {
		label := svc.classes_[0]
		if f > 0 {
			label = svc.classes_[1]
		}
		predictions.Set(i, 0, float64(label))
	}
	return predictions, nil
}

// PredictProba returns Platt-scaled probabilities; requires WithProbability(true)
func (svc *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !svc.probability {
		return nil, errors.NewValueError("SVC.PredictProba", "probability estimates are not available when probability=false")
	}
	rows, err := svc.checkInput("PredictProba", X)
	if err != nil {
		return nil, err
	}
	dec := svc.decision(rows)
	probas := mat.NewDense(len(dec), 2, nil)
	for i, f := range dec {
		p := plattPredict(f, svc.probA_, svc.probB_)
		probas.Set(i, 0, 1-p)
		probas.Set(i, 1, p)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (svc *SVC) Score(X, y mat.Matrix) float64 {
	predictions, err := svc.Predict(X)
	if err != nil {
		return 0.0
	}
	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// Classes returns the class labels seen during fitting, in ascending order
func (svc *SVC) Classes() []int {
	return slices.Clone(svc.classes_)
}

// Support returns the indices of the support vectors in the training data
func (svc *SVC) Support() []int {
	return slices.Clone(svc.support_)
}

// DualCoef returns α_i y_i for each support vector
func (svc *SVC) DualCoef() []float64 {
	return slices.Clone(svc.dualCoef_)
}

// Intercept returns the constant term of the decision function
func (svc *SVC) Intercept() float64 {
	return svc.intercept_
}

// Gamma returns the kernel coefficient used during fitting
func (svc *SVC) Gamma() float64 {
	return svc.gamma_
}

// NIter returns the number of solver iterations
func (svc *SVC) NIter() int {
	return svc.nIter_
}

// GetParams returns the model hyperparameters
func (svc *SVC) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"C":           svc.C,
		"kernel":      svc.kernel,
		"gamma":       svc.gamma,
		"tol":         svc.tol,
		"max_iter":    svc.maxIter,
		"cache_size":  svc.cacheSize,
		"probability": svc.probability,
		"verbose":     svc.verbose,
	}
	if svc.gammaValue > 0 {
		params["gamma"] = svc.gammaValue
	}
	return params
}

// SetParams sets the model hyperparameters
func (svc *SVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "C":
			v, ok := value.(float64)
			if !ok {
				return errors.NewValidationError(key, "must be float64", value)
			}
			svc.C = v
		case "kernel":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be string", value)
			}
			svc.kernel = v
		case "gamma":
			switch v := value.(type) {
			case string:
				svc.gamma, svc.gammaValue = v, 0
			case float64:
				svc.gammaValue = v
			default:
				return errors.NewValidationError(key, "must be 'scale', 'auto' or a float64", value)
			}
		case "tol":
			v, ok := value.(float64)
			if !ok {
				return errors.NewValidationError(key, "must be float64", value)
			}
			svc.tol = v
		case "max_iter":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be int", value)
			}
			svc.maxIter = v
		case "cache_size":
			v, ok := value.(float64)
			if !ok {
				return errors.NewValidationError(key, "must be float64", value)
			}
			svc.cacheSize = v
		case "probability":
			v, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be bool", value)
			}
			svc.probability = v
		case "verbose":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be int", value)
			}
			svc.verbose = v
		default:
			return errors.NewValueError("SVC.SetParams", fmt.Sprintf("unknown parameter: %s", key))
		}
	}
	return nil
}
