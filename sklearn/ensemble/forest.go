// Package ensemble はバギングによる決定木のアンサンブルを提供します。
package ensemble

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/binclass/core/model"
	"github.com/YuminosukeSato/binclass/core/parallel"
	"github.com/YuminosukeSato/binclass/pkg/errors"
	"github.com/YuminosukeSato/binclass/pkg/log"
	"github.com/YuminosukeSato/binclass/sklearn/tree"
)

const (
	// MaxFeaturesSqrt は各分割で sqrt(n_features) 個の特徴量を引く
	MaxFeaturesSqrt = "sqrt"
	// MaxFeaturesLog2 は各分割で log2(n_features) 個の特徴量を引く
	MaxFeaturesLog2 = "log2"
	// MaxFeaturesAll は全特徴量を使う
	MaxFeaturesAll = "all"
)

// RandomForestClassifier is a bagging ensemble of CART trees.
// Compatible with scikit-learn's RandomForestClassifier.
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	randomState     uint64
	nJobs           int // <= 0 means runtime.NumCPU()
	verbose         int

	// Model parameters
	estimators_ []*tree.DecisionTreeClassifier
	classes_    []int
	nClasses_   int
}

// ForestOption is a functional option for RandomForestClassifier
type ForestOption func(*RandomForestClassifier)

// NewRandomForestClassifier creates a new RandomForestClassifier
func NewRandomForestClassifier(opts ...ForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       tree.CriterionGini,
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     MaxFeaturesSqrt,
		bootstrap:       true,
		randomState:     0,
		nJobs:           -1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithNEstimators sets the number of trees
func WithNEstimators(n int) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithCriterion sets the impurity criterion of every tree
func WithCriterion(criterion string) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.criterion = criterion
	}
}

// WithMaxDepth sets the maximum depth of every tree; <= 0 means unlimited
func WithMaxDepth(depth int) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxDepth = depth
	}
}

// WithMinSamplesSplit sets min_samples_split of every tree
func WithMinSamplesSplit(n int) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets min_samples_leaf of every tree
func WithMinSamplesLeaf(n int) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets the feature subsampling rule ("sqrt", "log2" or "all")
func WithMaxFeatures(rule string) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = rule
	}
}

// WithBootstrap sets whether each tree is fitted on a bootstrap sample
func WithBootstrap(bootstrap bool) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.bootstrap = bootstrap
	}
}

// WithRandomState sets the seed; tree i uses seed+i
func WithRandomState(seed uint64) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.randomState = seed
	}
}

// WithNJobs sets how many trees are fitted concurrently; <= 0 means one per CPU
func WithNJobs(n int) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nJobs = n
	}
}

// WithVerbose sets the verbosity level
func WithVerbose(v int) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.verbose = v
	}
}

func (rf *RandomForestClassifier) validate() error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}
	switch rf.maxFeatures {
	case MaxFeaturesSqrt, MaxFeaturesLog2, MaxFeaturesAll:
	default:
		return errors.NewValidationError("max_features", "must be 'sqrt', 'log2' or 'all'", rf.maxFeatures)
	}
	return nil
}

func (rf *RandomForestClassifier) featuresPerSplit(nFeatures int) int {
	var n int
	switch rf.maxFeatures {
	case MaxFeaturesSqrt:
		n = int(math.Sqrt(float64(nFeatures)))
	case MaxFeaturesLog2:
		n = int(math.Log2(float64(nFeatures)))
	default:
		n = nFeatures
	}
	return max(n, 1)
}

// Fit trains the forest
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext trains the forest; cancelling ctx stops scheduling further trees.
func (rf *RandomForestClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if err := rf.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, _ := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("RandomForestClassifier.Fit", nSamples, yRows, 0)
	}

	start := time.Now()
	rf.classes_ = model.ExtractClasses(y)
	rf.nClasses_ = len(rf.classes_)
	featuresPerSplit := rf.featuresPerSplit(nFeatures)

	estimators := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	err := parallel.ForEach(ctx, rf.nEstimators, rf.nJobs, func(_ context.Context, idx int) error {
		seed := rf.randomState + uint64(idx)
		dt := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.criterion),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(featuresPerSplit),
			tree.WithRandomState(seed),
		)

		var weights []float64
		if rf.bootstrap {
			weights = bootstrapCounts(nSamples, seed)
		}
		err := errors.SafeExecute("DecisionTreeClassifier.Fit", func() error {
			return dt.FitWeighted(X, y, weights)
		})
		if err != nil {
			return errors.Wrapf(err, "fit tree %d", idx)
		}
		estimators[idx] = dt
		return nil
	})
	if err != nil {
		return err
	}
	rf.estimators_ = estimators

	if rf.verbose > 0 {
		logger := log.GetLoggerWithName("ensemble.forest")
		logger.Debug("RandomForestClassifier fitted",
			log.SamplesKey, nSamples,
			log.FeaturesKey, nFeatures,
			"n_estimators", rf.nEstimators,
			log.DurationMsKey, time.Since(start).Milliseconds())
	}

	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()
	return nil
}

// bootstrapCounts は n 回の復元抽出で各サンプルが選ばれた回数を返す
func bootstrapCounts(n int, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, uint64(n)))
	counts := make([]float64, n)
	for i := 0; i < n; i++ {
		counts[r.IntN(n)]++
	}
	return counts
}

// PredictProba returns the mean of the trees' class probabilities
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := rf.state.CheckFeatures("RandomForestClassifier.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	perTree := make([]mat.Matrix, len(rf.estimators_))
	err := parallel.ForEach(context.Background(), len(rf.estimators_), rf.nJobs, func(_ context.Context, idx int) error {
		p, err := rf.estimators_[idx].PredictProba(X)
		if err != nil {
			return err
		}
		perTree[idx] = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	probas := mat.NewDense(nSamples, rf.nClasses_, nil)
	for _, p := range perTree {
		probas.Add(probas, p)
	}
	probas.Scale(1/float64(len(perTree)), probas)
	return probas, nil
}

// Predict returns the class with the highest mean probability
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for k := 1; k < rf.nClasses_; k++ {
			if probas.At(i, k) > probas.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, float64(rf.classes_[best]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := rf.Predict(X)
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
func (rf *RandomForestClassifier) Classes() []int {
	return slices.Clone(rf.classes_)
}

// Estimators returns the fitted trees
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return slices.Clone(rf.estimators_)
}

// GetFeatureImportances returns the mean of the trees' feature importances
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	if len(rf.estimators_) == 0 {
		return nil
	}
	var sum []float64
	for _, dt := range rf.estimators_ {
		imp := dt.GetFeatureImportances()
		if sum == nil {
			sum = make([]float64, len(imp))
		}
		for j, v := range imp {
			sum[j] += v
		}
	}
	for j := range sum {
		sum[j] /= float64(len(rf.estimators_))
	}
	return sum
}

// GetParams returns the model hyperparameters
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
		"verbose":           rf.verbose,
	}
}

// SetParams sets the model hyperparameters
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			err = setParam(&rf.nEstimators, key, value)
		case "criterion":
			err = setParam(&rf.criterion, key, value)
		case "max_depth":
			err = setParam(&rf.maxDepth, key, value)
		case "min_samples_split":
			err = setParam(&rf.minSamplesSplit, key, value)
		case "min_samples_leaf":
			err = setParam(&rf.minSamplesLeaf, key, value)
		case "max_features":
			err = setParam(&rf.maxFeatures, key, value)
		case "bootstrap":
			err = setParam(&rf.bootstrap, key, value)
		case "random_state":
			err = setParam(&rf.randomState, key, value)
		case "n_jobs":
			err = setParam(&rf.nJobs, key, value)
		case "verbose":
			err = setParam(&rf.verbose, key, value)
		default:
			err = errors.NewValueError("RandomForestClassifier.SetParams", fmt.Sprintf("unknown parameter: %s", key))
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
