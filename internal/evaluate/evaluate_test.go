package evaluate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/binclass/core/model"
	"github.com/YuminosukeSato/binclass/internal/dataset"
	"github.com/YuminosukeSato/binclass/internal/form"
	"github.com/YuminosukeSato/binclass/metrics"
	"github.com/YuminosukeSato/binclass/model_selection"
	"github.com/YuminosukeSato/binclass/pkg/errors"
	"github.com/YuminosukeSato/binclass/pkg/log"
)

func loadSplit(t *testing.T) (*dataset.Dataset, *model_selection.Split) {
	t.Helper()
	store := dataset.NewStore("../dataset/testdata/mushrooms_small.csv", "type", dataset.DefaultSplitOptions())
	ds, err := store.Get(context.Background())
	require.NoError(t, err)
	split, err := store.SplitOf(ds)
	require.NoError(t, err)
	return ds, split
}

func newEvaluator(t *testing.T, ds *dataset.Dataset) *Evaluator {
	t.Helper()
	pos, err := ds.LabelCode("p")
	require.NoError(t, err)
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return New(pos, WithForestNJobs(2), WithLogger(logger))
}

func TestEvaluate_AllAlgorithms(t *testing.T) {
	ds, split := loadSplit(t)
	ev := newEvaluator(t, ds)

	for _, alg := range form.Algorithms() {
		t.Run(string(alg), func(t *testing.T) {
			params, err := form.Defaults(alg)
			require.NoError(t, err)
			if p, ok := params.(*form.SVMParams); ok {
				p.C = 1
			}
			if p, ok := params.(*form.LogisticParams); ok {
				p.C = 1
			}

			res, err := ev.Evaluate(context.Background(), params, split)
			require.NoError(t, err)

			assert.NotEmpty(t, res.RunID)
			assert.Equal(t, alg, res.Algorithm)
			assert.Equal(t, 1.0, res.PositiveLabel)
			assert.Equal(t, 0.0, res.NegativeLabel)
			assert.Equal(t, split.YTest.Len(), res.YPred.Len())
			assert.Equal(t, split.YTest.Len(), res.Scores.Len())

			for _, v := range []float64{res.Report.Accuracy, res.Report.Precision, res.Report.Recall} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
			acc, err := metrics.Accuracy(split.YTest, res.YPred)
			require.NoError(t, err)
			assert.Equal(t, acc, res.Report.Accuracy)
			assert.InDelta(t, res.Model.Score(split.XTest, split.YTest), res.Report.Accuracy, 1e-12)

			cm, err := res.ConfusionMatrix()
			require.NoError(t, err)
			assert.Equal(t, float64(split.YTest.Len()), mat.Sum(cm))
			// recall = TP / (TP + FN) on the positive row
			if tp, fn := cm.At(1, 1), cm.At(1, 0); tp+fn > 0 {
				assert.InDelta(t, tp/(tp+fn), res.Report.Recall, 1e-12)
			}
		})
	}
}

func TestEvaluate_FreshModelEachTime(t *testing.T) {
	ds, split := loadSplit(t)
	ev := newEvaluator(t, ds)
	params := &form.LogisticParams{C: 1, MaxIter: 200}

	a, err := ev.Evaluate(context.Background(), params, split)
	require.NoError(t, err)
	b, err := ev.Evaluate(context.Background(), params, split)
	require.NoError(t, err)

	assert.NotSame(t, a.Model, b.Model)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.Report, b.Report)
}

func TestEvaluate_ForestDeterministic(t *testing.T) {
	ds, split := loadSplit(t)
	ev := newEvaluator(t, ds)
	params := &form.ForestParams{NEstimators: 100, MaxDepth: 3, Bootstrap: true}

	a, err := ev.Evaluate(context.Background(), params, split)
	require.NoError(t, err)
	b, err := ev.Evaluate(context.Background(), params, split)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.Scores, b.Scores))
}

func TestEvaluate_InvalidHyperparameter(t *testing.T) {
	ds, split := loadSplit(t)
	ev := newEvaluator(t, ds)

	_, err := ev.Evaluate(context.Background(), &form.SVMParams{C: -1, Kernel: "rbf", Gamma: "scale"}, split)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidHyperparameter))

	var ih *errors.InvalidHyperparameterError
	require.True(t, errors.As(err, &ih))
	assert.Equal(t, "C", ih.Param)
	assert.Equal(t, "svm", ih.Algorithm)

	_, err = ev.Evaluate(context.Background(), &form.SVMParams{C: 1, Kernel: "poly", Gamma: "scale"}, split)
	assert.True(t, errors.Is(err, errors.ErrInvalidHyperparameter))
}

func TestEvaluate_LogisticNaNLoss(t *testing.T) {
	ds, split := loadSplit(t)
	ev := newEvaluator(t, ds)

	_, err := ev.Evaluate(context.Background(), &form.LogisticParams{C: 1e-320, MaxIter: 100}, split)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidHyperparameter))

	var ih *errors.InvalidHyperparameterError
	require.True(t, errors.As(err, &ih))
	assert.Equal(t, "C", ih.Param)
	assert.Equal(t, "logistic_regression", ih.Algorithm)

	var ni *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &ni))
}

func TestScores_DecisionFunctionFallback(t *testing.T) {
	ds, split := loadSplit(t)
	ev := newEvaluator(t, ds)

	svc, err := ev.Build(&form.SVMParams{C: 1, Kernel: form.KernelRBF, Gamma: form.GammaScale})
	require.NoError(t, err)
	require.NoError(t, svc.Fit(split.XTrain, split.YTrain))

	// SVC には確率がないので決定関数を使う
	v1, probabilistic, err := ev.scores(svc, split.XTest, 1)
	require.NoError(t, err)
	assert.False(t, probabilistic)
	df, ok := svc.(model.DecisionFunctioner)
	require.True(t, ok)
	dec, err := df.DecisionFunction(split.XTest)
	require.NoError(t, err)
	assert.Equal(t, dec.At(0, 0), v1.AtVec(0))

	v0, _, err := ev.scores(svc, split.XTest, 0)
	require.NoError(t, err)
	for i := 0; i < v1.Len(); i++ {
		assert.Equal(t, -v1.AtVec(i), v0.AtVec(i))
	}

	// LogisticRegression は決定関数も持つが、確率を優先する
	lr, err := ev.Build(&form.LogisticParams{C: 1, MaxIter: 100})
	require.NoError(t, err)
	require.NoError(t, lr.Fit(split.XTrain, split.YTrain))
	v, probabilistic, err := ev.scores(lr, split.XTest, 1)
	require.NoError(t, err)
	assert.True(t, probabilistic)
	for i := 0; i < v.Len(); i++ {
		assert.GreaterOrEqual(t, v.AtVec(i), 0.0)
		assert.LessOrEqual(t, v.AtVec(i), 1.0)
	}
}

func TestBuild_SVMMaxIter(t *testing.T) {
	clf, err := New(1, WithSVMMaxIter(5000)).Build(&form.SVMParams{C: 10, Kernel: form.KernelLinear, Gamma: form.GammaScale})
	require.NoError(t, err)
	pg, ok := clf.(model.ParameterGetter)
	require.True(t, ok)
	assert.Equal(t, 5000, pg.GetParams()["max_iter"])

	clf, err = New(1).Build(&form.SVMParams{C: 1, Kernel: form.KernelRBF, Gamma: form.GammaScale})
	require.NoError(t, err)
	// 0 は SVC の既定の上限
	assert.Equal(t, 0, clf.(model.ParameterGetter).GetParams()["max_iter"])
}

func TestEvaluate_Errors(t *testing.T) {
	ds, split := loadSplit(t)
	ev := newEvaluator(t, ds)
	params := &form.SVMParams{C: 1, Kernel: "rbf", Gamma: "scale"}

	_, err := ev.Evaluate(context.Background(), params, nil)
	assert.Error(t, err)

	_, err = ev.Evaluate(context.Background(), nil, split)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ev.Evaluate(ctx, params, split)
	assert.ErrorIs(t, err, context.Canceled)

	// the positive label must be one of the training classes
	_, err = New(5).Evaluate(context.Background(), params, split)
	assert.Error(t, err)
}

func TestEvaluate_RecoversPanic(t *testing.T) {
	ds, split := loadSplit(t)
	ev := newEvaluator(t, ds)

	broken := &model_selection.Split{YTrain: split.YTrain, XTest: split.XTest, YTest: split.YTest}
	res, err := ev.Evaluate(context.Background(), &form.SVMParams{C: 1, Kernel: "rbf", Gamma: "scale"}, broken)
	require.Error(t, err)
	assert.Nil(t, res)

	var pe *errors.PanicError
	assert.True(t, errors.As(err, &pe))
}

func TestReport_Rounded(t *testing.T) {
	r := Report{Accuracy: 0.98765, Precision: 0.5049, Recall: 1}
	assert.Equal(t, Report{Accuracy: 0.99, Precision: 0.5, Recall: 1}, r.Rounded())
	assert.Equal(t, 0.86, Round2(0.8567))
}

func TestReport_Lines(t *testing.T) {
	r := Report{Accuracy: 0.98765, Precision: 0.5049, Recall: 1}
	assert.Equal(t, []string{"Accuracy: 0.99", "Precision: 0.5", "Recall: 1.0"}, r.Lines())
	assert.Equal(t, "0.0", FormatMetric(0))
	assert.Equal(t, "0.86", FormatMetric(0.8567))
}

func TestEvaluate_SVMReproducible(t *testing.T) {
	ds, split := loadSplit(t)
	ev := newEvaluator(t, ds)
	params := &form.SVMParams{C: 1, Kernel: form.KernelRBF, Gamma: form.GammaScale}

	a, err := ev.Evaluate(context.Background(), params, split)
	require.NoError(t, err)
	b, err := ev.Evaluate(context.Background(), params, split)
	require.NoError(t, err)
	assert.Equal(t, a.Report, b.Report)

	// precision and recall are defined: both classes are predicted and present
	cm, err := a.ConfusionMatrix()
	require.NoError(t, err)
	assert.Positive(t, cm.At(0, 1)+cm.At(1, 1), "predicted positives")
	assert.Positive(t, cm.At(1, 0)+cm.At(1, 1), "actual positives")
}

func TestEvaluate_FullMushroomsSVM(t *testing.T) {
	if testing.Short() {
		t.Skip("fits an SVC on the full dataset")
	}
	store := dataset.NewStore("../../data/mushrooms.csv", "type", dataset.DefaultSplitOptions())
	ds, err := store.Get(context.Background())
	require.NoError(t, err)
	split, err := store.SplitOf(ds)
	require.NoError(t, err)
	require.Equal(t, 1625, split.YTest.Len())

	ev := newEvaluator(t, ds)
	params := &form.SVMParams{C: 1, Kernel: form.KernelRBF, Gamma: form.GammaScale}

	a, err := ev.Evaluate(context.Background(), params, split)
	require.NoError(t, err)
	b, err := ev.Evaluate(context.Background(), params, split)
	require.NoError(t, err)
	assert.Equal(t, a.Report, b.Report)
	assert.True(t, mat.Equal(a.Scores, b.Scores))

	cm, err := a.ConfusionMatrix()
	require.NoError(t, err)
	assert.Positive(t, cm.At(0, 1)+cm.At(1, 1), "predicted positives")
	assert.Positive(t, cm.At(1, 0)+cm.At(1, 1), "actual positives")

	assert.Greater(t, a.Report.Accuracy, 0.95)
	assert.Greater(t, a.Report.Precision, 0.95)
	assert.Greater(t, a.Report.Recall, 0.95)
}
