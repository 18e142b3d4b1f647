// Package evaluate fits a fresh classifier on the training split and scores it
// on the holdout split.
package evaluate

import (
	"context"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/binclass/core/model"
	"github.com/YuminosukeSato/binclass/internal/form"
	"github.com/YuminosukeSato/binclass/metrics"
	"github.com/YuminosukeSato/binclass/model_selection"
	"github.com/YuminosukeSato/binclass/pkg/errors"
	"github.com/YuminosukeSato/binclass/pkg/log"
	"github.com/YuminosukeSato/binclass/sklearn/ensemble"
	"github.com/YuminosukeSato/binclass/sklearn/linear_model"
	"github.com/YuminosukeSato/binclass/sklearn/svm"
)

// Report holds the holdout metrics. Values are unrounded; use Rounded for display.
type Report struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Round2 rounds v to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rounded returns the report with every metric rounded to 2 decimals.
func (r Report) Rounded() Report {
	return Report{
		Accuracy:  Round2(r.Accuracy),
		Precision: Round2(r.Precision),
		Recall:    Round2(r.Recall),
	}
}

// FormatMetric prints v rounded to 2 decimals, keeping at least one fractional digit (1 → "1.0").
func FormatMetric(v float64) string {
	s := strconv.FormatFloat(Round2(v), 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEN") {
		s += ".0"
	}
	return s
}

// Lines returns the report lines in display order.
func (r Report) Lines() []string {
	return []string{
		"Accuracy: " + FormatMetric(r.Accuracy),
		"Precision: " + FormatMetric(r.Precision),
		"Recall: " + FormatMetric(r.Recall),
	}
}

// Result is the outcome of one classify action.
type Result struct {
	RunID     string
	Algorithm form.Algorithm
	Params    form.Params
	Model     model.Classifier

	// PositiveLabel / NegativeLabel are encoded label values
	PositiveLabel float64
	NegativeLabel float64

	YTrue  *mat.VecDense
	YPred  *mat.VecDense
	Scores *mat.VecDense // P(positive) when the model has probabilities, its decision function otherwise

	Report   Report
	Duration time.Duration
}

// ConfusionMatrix returns the 2×2 matrix with rows and columns ordered (negative, positive).
func (r *Result) ConfusionMatrix() (*mat.Dense, error) {
	return metrics.ConfusionMatrix(r.YTrue, r.YPred, []float64{r.NegativeLabel, r.PositiveLabel})
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithForestRandomState sets the seed of every random forest built.
func WithForestRandomState(seed uint64) Option {
	return func(e *Evaluator) {
		e.forestRandomState = seed
	}
}

// WithForestNJobs sets the number of workers fitting forest trees; -1 uses every CPU.
func WithForestNJobs(n int) Option {
	return func(e *Evaluator) {
		e.forestNJobs = n
	}
}

// WithSVMMaxIter caps the SMO iterations of every SVC built; n <= 0 keeps the library default.
func WithSVMMaxIter(n int) Option {
	return func(e *Evaluator) {
		e.svmMaxIter = n
	}
}

// WithLogger replaces the component logger.
func WithLogger(l log.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// Evaluator builds, fits and scores classifiers. It keeps no state between calls.
type Evaluator struct {
	positive          float64
	forestRandomState uint64
	forestNJobs       int
	svmMaxIter        int
	logger            log.Logger
}

// New returns an Evaluator that treats the encoded label positive as the positive class.
func New(positive int, opts ...Option) *Evaluator {
	e := &Evaluator{
		positive:    float64(positive),
		forestNJobs: -1,
		logger:      log.GetLoggerWithName("evaluate"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build returns an unfitted classifier configured from params.
func (e *Evaluator) Build(params form.Params) (model.Classifier, error) {
	switch p := params.(type) {
	case *form.SVMParams:
		return svm.NewSVC(
			svm.WithC(p.C),
			svm.WithKernel(p.Kernel),
			svm.WithGamma(p.Gamma),
			svm.WithMaxIter(e.svmMaxIter),
		), nil
	case *form.LogisticParams:
		return linear_model.NewLogisticRegression(
			linear_model.WithLRC(p.C),
			linear_model.WithLRMaxIter(p.MaxIter),
		), nil
	case *form.ForestParams:
		return ensemble.NewRandomForestClassifier(
			ensemble.WithNEstimators(p.NEstimators),
			ensemble.WithMaxDepth(p.MaxDepth),
			ensemble.WithBootstrap(p.Bootstrap),
			ensemble.WithRandomState(e.forestRandomState),
			ensemble.WithNJobs(e.forestNJobs),
		), nil
	case nil:
		return nil, errors.NewValueError("evaluate.Build", "no hyperparameters")
	default:
		return nil, errors.NewValueError("evaluate.Build", "unsupported classifier: "+string(params.Algorithm()))
	}
}

type contextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

// Evaluate fits a fresh model on the training split and computes accuracy,
// precision and recall on the holdout split. Either every output is produced
// or an error is returned.
func (e *Evaluator) Evaluate(ctx context.Context, params form.Params, split *model_selection.Split) (res *Result, err error) {
	defer errors.Recover(&err, "evaluate.Evaluate")

	if split == nil {
		return nil, errors.NewValueError("evaluate.Evaluate", "no split")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clf, err := e.Build(params)
	if err != nil {
		return nil, err
	}
	alg := params.Algorithm()
	runID := uuid.NewString()
	logger := e.logger.With(
		log.ModelNameKey, string(alg),
		log.EstimatorIDKey, runID,
	)

	start := time.Now()
	if cf, ok := clf.(contextFitter); ok {
		err = cf.FitContext(ctx, split.XTrain, split.YTrain)
	} else {
		err = clf.Fit(split.XTrain, split.YTrain)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("fit failed", err, log.OperationKey, log.OperationFit)
		return nil, asInvalidHyperparameter(params, err)
	}

	classes := clf.Classes()
	posIdx := slices.Index(classes, int(e.positive))
	if len(classes) != 2 || posIdx < 0 {
		return nil, errors.NewValueError("evaluate.Evaluate", "training split does not contain both classes")
	}
	negative := float64(classes[1-posIdx])

	pred, err := clf.Predict(split.XTest)
	if err != nil {
		return nil, errors.Wrap(err, "predict")
	}
	yPred := columnVector(pred, 0)

	scores, probabilistic, err := e.scores(clf, split.XTest, posIdx)
	if err != nil {
		return nil, errors.Wrap(err, "scores")
	}

	report, err := e.report(split.YTest, yPred)
	if err != nil {
		return nil, err
	}

	res = &Result{
		RunID:         runID,
		Algorithm:     alg,
		Params:        params,
		Model:         clf,
		PositiveLabel: e.positive,
		NegativeLabel: negative,
		YTrue:         split.YTest,
		YPred:         yPred,
		Scores:        scores,
		Report:        report,
		Duration:      time.Since(start),
	}

	fields := []any{
		log.OperationKey, log.OperationScore,
		log.SamplesKey, split.YTrain.Len(),
		log.TestSamplesKey, split.YTest.Len(),
		log.AccuracyKey, report.Accuracy,
		log.PrecisionKey, report.Precision,
		log.RecallKey, report.Recall,
		log.DurationMsKey, res.Duration.Milliseconds(),
	}
	if probabilistic {
		if loss, err := metrics.BinaryLogLoss(indicator(split.YTest, e.positive), scores); err == nil {
			fields = append(fields, log.LossKey, loss)
		}
	}
	logger.Info("classifier evaluated", fields...)
	return res, nil
}

// scores は正例らしさのスコアを返す。確率が出せるモデルは正例の確率、
// 出せないモデルは決定関数の値を使い、probabilistic で区別する。
func (e *Evaluator) scores(clf model.Classifier, X mat.Matrix, posIdx int) (v *mat.VecDense, probabilistic bool, err error) {
	proba, err := clf.PredictProba(X)
	if err == nil {
		return columnVector(proba, posIdx), true, nil
	}
	df, ok := clf.(model.DecisionFunctioner)
	if !ok {
		return nil, false, err
	}
	dec, err := df.DecisionFunction(X)
	if err != nil {
		return nil, false, err
	}
	v = columnVector(dec, 0)
	if posIdx == 0 {
		// 決定関数は Classes()[1] 向きなので符号を反転する
		v.ScaleVec(-1, v)
	}
	return v, false, nil
}

func (e *Evaluator) report(yTrue, yPred *mat.VecDense) (Report, error) {
	var r Report
	scorers := []struct {
		dst *float64
		fn  model.ScoreFunc
	}{
		{&r.Accuracy, metrics.Accuracy},
		{&r.Precision, func(t, p *mat.VecDense) (float64, error) { return metrics.PrecisionScore(t, p, e.positive) }},
		{&r.Recall, func(t, p *mat.VecDense) (float64, error) { return metrics.RecallScore(t, p, e.positive) }},
	}
	for _, s := range scorers {
		v, err := s.fn(yTrue, yPred)
		if err != nil {
			return Report{}, errors.Wrap(err, "metrics")
		}
		*s.dst = v
	}
	return r, nil
}

func asInvalidHyperparameter(params form.Params, err error) error {
	alg := string(params.Algorithm())
	if errors.Is(err, errors.ErrInvalidHyperparameter) {
		return err
	}
	var ve *errors.ValidationError
	if errors.As(err, &ve) {
		return errors.NewInvalidHyperparameterError(alg, ve.ParamName, ve.Value, err)
	}
	// 学習データは固定なので、目的関数の NaN/Inf は正則化の強さに起因する
	var ni *errors.NumericalInstabilityError
	if lp, ok := params.(*form.LogisticParams); ok && errors.As(err, &ni) {
		return errors.NewInvalidHyperparameterError(alg, "C", lp.C, err)
	}
	return errors.NewInvalidHyperparameterError(alg, "", nil, err)
}

func columnVector(m mat.Matrix, j int) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, j))
	}
	return v
}

// indicator は positive を 1、それ以外を 0 にしたベクトル
func indicator(y *mat.VecDense, positive float64) *mat.VecDense {
	out := mat.NewVecDense(y.Len(), nil)
	for i := 0; i < y.Len(); i++ {
		if y.AtVec(i) == positive {
			out.SetVec(i, 1)
		}
	}
	return out
}
