package linear_model

import (
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/binclass/core/model"
	"github.com/YuminosukeSato/binclass/pkg/errors"
	"github.com/YuminosukeSato/binclass/pkg/log"
)

const (
	// PenaltyL2 は二乗ノルム正則化
	PenaltyL2 = "l2"
	// PenaltyNone は正則化なし
	PenaltyNone = "none"
)

// LogisticRegression implements logistic regression for classification
// Compatible with scikit-learn's LogisticRegression (lbfgs solver).
// Two classes use the sigmoid model, more than two the multinomial (softmax) model.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	maxIter      int     // Maximum L-BFGS iterations
	tol          float64 // Gradient threshold (max norm)
	verbose      int     // Verbosity level

	// Model parameters
	coef_      [][]float64 // Coefficients (1 x n_features for binary, n_classes x n_features otherwise)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels
	nClasses_  int         // Number of classes
	nFeatures_ int         // Number of features
	nIter_     int         // Actual iterations
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      PenaltyL2,
		C:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
	}

	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRVerbose sets the verbosity level
func WithLRVerbose(v int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.verbose = v
	}
}

func (lr *LogisticRegression) validate() error {
	if lr.penalty != PenaltyL2 && lr.penalty != PenaltyNone {
		return errors.NewValidationError("penalty", "must be 'l2' or 'none'", lr.penalty)
	}
	if lr.penalty == PenaltyL2 && lr.C <= 0 {
		return errors.NewValidationError("C", "must be strictly positive", lr.C)
	}
	if lr.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	}
	if lr.tol <= 0 {
		return errors.NewValidationError("tol", "must be strictly positive", lr.tol)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}

	classes := model.ExtractClasses(y)
	if len(classes) < 2 {
		return errors.NewModelError("LogisticRegression.Fit",
			"this solver needs samples of at least 2 classes in the data", errors.ErrSingleClass)
	}

	start := time.Now()
	rows := make([][]float64, nSamples)
	target := make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		rows[i] = mat.Row(nil, i, X)
		target[i], _ = slices.BinarySearch(classes, int(y.At(i, 0)))
	}

	nModels := len(classes)
	if nModels == 2 {
		nModels = 1
	}
	obj := &logisticObjective{
		rows:      rows,
		target:    target,
		nModels:   nModels,
		nFeatures: nFeatures,
		intercept: lr.fitIntercept,
	}
	if lr.penalty == PenaltyL2 {
		// sum(loss)/n + ||w||^2/(2Cn): scikit-learn の目的関数を n で割ったもの
		obj.alpha = 1 / (lr.C * float64(nSamples))
	}

	problem := optimize.Problem{
		Func: obj.value,
		Grad: obj.grad,
	}
	settings := &optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
	}
	// 初期点で NaN/Inf になる場合は直線探索に渡さない
	x0 := make([]float64, obj.size())
	obj.value(x0)
	obj.grad(make([]float64, len(x0)), x0)
	if obj.err != nil {
		return obj.err
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if obj.err != nil {
		return obj.err
	}
	if result == nil {
		return errors.NewModelError("LogisticRegression.Fit", "optimization failed", err)
	}
	if err := errors.CheckNumericalStability("LogisticRegression.Fit", result.X, result.MajorIterations); err != nil {
		return err
	}
	switch {
	case result.Status == optimize.IterationLimit:
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", result.MajorIterations,
			"lbfgs failed to converge, increase the number of iterations (max_iter)"))
	case err != nil:
		// 直線探索の失敗は勾配が十分小さい近傍でも起きる
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", result.MajorIterations, err.Error()))
	}

	lr.coef_ = make([][]float64, nModels)
	lr.intercept_ = make([]float64, nModels)
	for k := 0; k < nModels; k++ {
		lr.coef_[k] = slices.Clone(obj.weights(result.X, k))
		if lr.fitIntercept {
			lr.intercept_[k] = obj.bias(result.X, k)
		}
	}
	lr.classes_ = classes
	lr.nClasses_ = len(classes)
	lr.nFeatures_ = nFeatures
	lr.nIter_ = result.MajorIterations

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()

	if lr.verbose > 0 {
		logger := log.GetLoggerWithName("linear_model.logistic")
		logger.Debug("LogisticRegression fitted",
			log.SamplesKey, nSamples,
			log.FeaturesKey, nFeatures,
			log.IterationKey, result.MajorIterations,
			log.LossKey, result.F,
			"status", result.Status.String(),
			log.DurationMsKey, time.Since(start).Milliseconds())
	}
	return nil
}

// logisticObjective はパラメータを [w_0, b_0, w_1, b_1, ...] の順に平らに並べる
type logisticObjective struct {
	rows      [][]float64
	target    []int
	nModels   int
	nFeatures int
	intercept bool
	alpha     float64

	// evals は value の呼び出し回数、err は最初に検出した NaN/Inf
	evals int
	err   error
}

func (o *logisticObjective) stride() int {
	if o.intercept {
		return o.nFeatures + 1
	}
	return o.nFeatures
}

func (o *logisticObjective) size() int {
	return o.nModels * o.stride()
}

func (o *logisticObjective) weights(x []float64, k int) []float64 {
	off := k * o.stride()
	return x[off : off+o.nFeatures]
}

func (o *logisticObjective) bias(x []float64, k int) float64 {
	if !o.intercept {
		return 0
	}
	return x[k*o.stride()+o.nFeatures]
}

func (o *logisticObjective) logits(x, row, z []float64) {
	for k := 0; k < o.nModels; k++ {
		z[k] = floats.Dot(o.weights(x, k), row) + o.bias(x, k)
	}
}

func (o *logisticObjective) value(x []float64) float64 {
	z := make([]float64, o.nModels)
	loss := 0.0
	for i, row := range o.rows {
		o.logits(x, row, z)
		if o.nModels == 1 {
			yi := float64(o.target[i])
			loss += errors.Softplus(z[0]) - yi*z[0]
			continue
		}
		loss += floats.LogSumExp(z) - z[o.target[i]]
	}
	loss /= float64(len(o.rows))
	if o.alpha > 0 {
		for k := 0; k < o.nModels; k++ {
			w := o.weights(x, k)
			loss += 0.5 * o.alpha * floats.Dot(w, w)
		}
	}
	if o.err == nil {
		o.err = errors.CheckScalar("LogisticRegression.loss", loss, o.evals)
	}
	o.evals++
	return loss
}

func (o *logisticObjective) grad(grad, x []float64) {
	for j := range grad {
		grad[j] = 0
	}
	z := make([]float64, o.nModels)
	n := float64(len(o.rows))
	stride := o.stride()
	for i, row := range o.rows {
		o.logits(x, row, z)
		if o.nModels == 1 {
			z[0] = errors.Sigmoid(z[0]) - float64(o.target[i])
		} else {
			lse := floats.LogSumExp(z)
			for k := range z {
				z[k] = math.Exp(z[k] - lse)
			}
			z[o.target[i]] -= 1
		}
		for k, r := range z {
			off := k * stride
			floats.AddScaled(grad[off:off+o.nFeatures], r/n, row)
			if o.intercept {
				grad[off+o.nFeatures] += r / n
			}
		}
	}
	if o.alpha > 0 {
		for k := 0; k < o.nModels; k++ {
			off := k * stride
			floats.AddScaled(grad[off:off+o.nFeatures], o.alpha, x[off:off+o.nFeatures])
		}
	}
	if o.err == nil {
		o.err = errors.CheckNumericalStability("LogisticRegression.grad", grad, o.evals)
	}
}

func (lr *LogisticRegression) checkInput(op string, X mat.Matrix) error {
	if err := lr.state.RequireFitted("LogisticRegression", op); err != nil {
		return err
	}
	_, nFeatures := X.Dims()
	return lr.state.CheckFeatures("LogisticRegression."+op, nFeatures)
}

// DecisionFunction returns the linear scores (n_samples × 1 for binary, n_samples × n_classes otherwise).
// For binary problems positive values favour Classes()[1].
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.checkInput("DecisionFunction", X); err != nil {
		return nil, err
	}
	return lr.decision(X), nil
}

func (lr *LogisticRegression) decision(X mat.Matrix) *mat.Dense {
	nSamples, _ := X.Dims()
	scores := mat.NewDense(nSamples, len(lr.coef_), nil)
	row := make([]float64, lr.nFeatures_)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		for k, w := range lr.coef_ {
			scores.Set(i, k, floats.Dot(w, row)+lr.intercept_[k])
		}
	}
	return scores
}

// PredictProba returns class probabilities, one column per class in Classes() order
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.checkInput("PredictProba", X); err != nil {
		return nil, err
	}
	scores := lr.decision(X)
	nSamples, _ := scores.Dims()
	probas := mat.NewDense(nSamples, lr.nClasses_, nil)
	z := make([]float64, lr.nClasses_)
	for i := 0; i < nSamples; i++ {
		if lr.nClasses_ == 2 {
			p := errors.Sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
			continue
		}
		mat.Row(z, i, scores)
		lse := floats.LogSumExp(z)
		for k := range z {
			probas.Set(i, k, math.Exp(z[k]-lse))
		}
	}
	return probas, nil
}

// Predict returns the most probable class for each sample
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	p := make([]float64, lr.nClasses_)
	for i := 0; i < nSamples; i++ {
		mat.Row(p, i, probas)
		predictions.Set(i, 0, float64(lr.classes_[floats.MaxIdx(p)]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
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
func (lr *LogisticRegression) Classes() []int {
	return slices.Clone(lr.classes_)
}

// Coef returns a copy of the coefficients
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for k, w := range lr.coef_ {
		out[k] = slices.Clone(w)
	}
	return out
}

// Intercept returns a copy of the intercept terms
func (lr *LogisticRegression) Intercept() []float64 {
	return slices.Clone(lr.intercept_)
}

// NIter returns the number of L-BFGS iterations of the last fit
func (lr *LogisticRegression) NIter() int {
	return lr.nIter_
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"verbose":       lr.verbose,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			err = setParam(&lr.penalty, key, value)
		case "C":
			err = setParam(&lr.C, key, value)
		case "fit_intercept":
			err = setParam(&lr.fitIntercept, key, value)
		case "max_iter":
			err = setParam(&lr.maxIter, key, value)
		case "tol":
			err = setParam(&lr.tol, key, value)
		case "verbose":
			err = setParam(&lr.verbose, key, value)
		default:
			err = errors.NewValueError("LogisticRegression.SetParams", fmt.Sprintf("unknown parameter: %s", key))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func setParam[T any](dst *T, key string, value interface{}) error {
	v, ok := value.(T)
	if !ok {
		return errors.NewValidationError(key, fmt.Sprintf("must be %T", *dst), value)
	}
	*dst = v
	return nil
}
