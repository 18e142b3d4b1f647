// Package tree はCARTによる決定木分類器を提供します。
// scikit-learnの DecisionTreeClassifier と同じハイパーパラメータを持ち、
// RandomForestClassifier の基本推定器としても使われます。
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/binclass/core/model"
	"github.com/YuminosukeSato/binclass/core/parallel"
	"github.com/YuminosukeSato/binclass/pkg/errors"
)

const (
	// CriterionGini はジニ不純度
	CriterionGini = "gini"
	// CriterionEntropy は情報エントロピー（底2）
	CriterionEntropy = "entropy"

	leafFeature = -1

	// predictParallelThreshold 以下の行数では逐次に予測する
	predictParallelThreshold = 2048
)

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     []float64 // クラス確率（classes_ の順）
	impurity  float64
	nSamples  int
	weightedN float64
}

// DecisionTreeClassifier is a CART classification tree.
// Compatible with scikit-learn's DecisionTreeClassifier.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string // "gini" or "entropy"
	maxDepth        int    // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // <= 0 means all features
	randomState     uint64

	// Model parameters
	nodes               []node
	classes_            []int
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
	depth_              int
	nLeaves_            int
}

// Option is a functional option for DecisionTreeClassifier
type Option func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a new DecisionTreeClassifier
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     0,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion sets the impurity criterion ("gini" or "entropy")
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth sets the maximum depth of the tree; <= 0 means unlimited
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples required at a leaf
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets the number of features drawn at each split; <= 0 means all
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = n
	}
}

// WithRandomState sets the seed used to draw features at each split
func WithRandomState(seed uint64) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
	}
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != CriterionGini && dt.criterion != CriterionEntropy {
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	}
	return nil
}

// Fit builds the tree from the training data
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights.
// Samples with zero weight are left out; bootstrap counts can be passed as weights.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if err := dt.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("y must be a column vector: got shape (%d, %d)", yRows, yCols))
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}

	dt.classes_ = model.ExtractClasses(y)
	dt.nClasses_ = len(dt.classes_)
	dt.nFeatures_ = nFeatures

	classIndex := make(map[int]int, dt.nClasses_)
	for k, c := range dt.classes_ {
		classIndex[c] = k
	}

	b := &builder{
		dt:       dt,
		cols:     make([][]float64, nFeatures),
		y:        make([]int, nSamples),
		w:        make([]float64, nSamples),
		features: make([]int, nFeatures),
		rng:      rand.New(rand.NewPCG(dt.randomState, dt.randomState^0x9e3779b97f4a7c15)),
	}
	for j := 0; j < nFeatures; j++ {
		col := make([]float64, nSamples)
		for i := 0; i < nSamples; i++ {
			col[i] = X.At(i, j)
		}
		b.cols[j] = col
		b.features[j] = j
	}
	samples := make([]int, 0, nSamples)
	for i := 0; i < nSamples; i++ {
		b.y[i] = classIndex[int(y.At(i, 0))]
		b.w[i] = 1
		if sampleWeight != nil {
			b.w[i] = sampleWeight[i]
		}
		if b.w[i] > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "all sample weights are zero")
	}

	dt.nodes = dt.nodes[:0]
	dt.depth_ = 0
	dt.nLeaves_ = 0
	importances := make([]float64, nFeatures)
	b.importances = importances
	b.grow(samples, 0)

	total := 0.0
	for _, v := range importances {
		total += v
	}
	if total > 0 {
		for j := range importances {
			importances[j] /= total
		}
	}
	dt.featureImportances_ = importances

	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

// builder は1回のFitで使う作業領域
type builder struct {
	dt          *DecisionTreeClassifier
	cols        [][]float64
	y           []int
	w           []float64
	features    []int
	rng         *rand.Rand
	importances []float64
}

type split struct {
	feature   int
	threshold float64
	pos       int // samples[:pos] が左
	childImp  float64
	found     bool
}

// grow は samples からノードを作り、そのインデックスを返す
func (b *builder) grow(samples []int, depth int) int {
	dt := b.dt
	counts := make([]float64, dt.nClasses_)
	for _, i := range samples {
		counts[b.y[i]] += b.w[i]
	}
	weightedN := 0.0
	for _, c := range counts {
		weightedN += c
	}
	impurity := dt.impurity(counts, weightedN)

	value := make([]float64, dt.nClasses_)
	for k, c := range counts {
		value[k] = errors.SafeDivide(c, weightedN)
	}

	id := len(dt.nodes)
	dt.nodes = append(dt.nodes, node{
		feature:   leafFeature,
		value:     value,
		impurity:  impurity,
		nSamples:  len(samples),
		weightedN: weightedN,
	})
	if depth > dt.depth_ {
		dt.depth_ = depth
	}

	canSplit := len(samples) >= dt.minSamplesSplit &&
		len(samples) >= 2*dt.minSamplesLeaf &&
		(dt.maxDepth <= 0 || depth < dt.maxDepth) &&
		impurity > 0
	if !canSplit {
		dt.nLeaves_++
		return id
	}

	best := b.bestSplit(samples, counts, weightedN)
	if !best.found {
		dt.nLeaves_++
		return id
	}

	col := b.cols[best.feature]
	slices.SortStableFunc(samples, func(a, c int) int {
		switch {
		case col[a] < col[c]:
			return -1
		case col[a] > col[c]:
			return 1
		default:
			return 0
		}
	})

	b.importances[best.feature] += impurity*weightedN - best.childImp

	left := b.grow(samples[:best.pos], depth+1)
	right := b.grow(samples[best.pos:], depth+1)

	n := &dt.nodes[id]
	n.feature = best.feature
	n.threshold = best.threshold
	n.left = left
	n.right = right
	return id
}

// bestSplit は子ノードの重み付き不純度の和が最小になる分割を探す。
// 同じ値の場合は先に調べた特徴量を採る。
func (b *builder) bestSplit(samples []int, counts []float64, weightedN float64) split {
	dt := b.dt
	nFeatures := len(b.cols)

	maxFeatures := dt.maxFeatures
	if maxFeatures <= 0 || maxFeatures > nFeatures {
		maxFeatures = nFeatures
	}
	features := b.features
	if maxFeatures < nFeatures {
		b.rng.Shuffle(len(features), func(i, j int) {
			features[i], features[j] = features[j], features[i]
		})
	}

	order := make([]int, len(samples))
	leftCounts := make([]float64, dt.nClasses_)
	rightCounts := make([]float64, dt.nClasses_)

	best := split{childImp: math.Inf(1)}
	visited := 0
	for _, f := range features {
		col := b.cols[f]
		copy(order, samples)
		slices.SortStableFunc(order, func(a, c int) int {
			switch {
			case col[a] < col[c]:
				return -1
			case col[a] > col[c]:
				return 1
			default:
				return 0
			}
		})
		// 定数の特徴量は数えずに次を引く
		if col[order[0]] == col[order[len(order)-1]] {
			continue
		}
		visited++

		for k := range leftCounts {
			leftCounts[k] = 0
			rightCounts[k] = counts[k]
		}
		leftN := 0.0
		for p := 1; p < len(order); p++ {
			i := order[p-1]
			leftCounts[b.y[i]] += b.w[i]
			rightCounts[b.y[i]] -= b.w[i]
			leftN += b.w[i]

			if col[order[p]] == col[i] {
				continue
			}
			if p < dt.minSamplesLeaf || len(order)-p < dt.minSamplesLeaf {
				continue
			}
			rightN := weightedN - leftN
			childImp := leftN*dt.impurity(leftCounts, leftN) + rightN*dt.impurity(rightCounts, rightN)
			if childImp < best.childImp {
				best = split{
					feature:   f,
					threshold: (col[i] + col[order[p]]) / 2,
					pos:       p,
					childImp:  childImp,
					found:     true,
				}
			}
		}
		if visited >= maxFeatures {
			break
		}
	}
	return best
}

func (dt *DecisionTreeClassifier) impurity(counts []float64, n float64) float64 {
	if n <= 0 {
		return 0
	}
	switch dt.criterion {
	case CriterionEntropy:
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / n
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		g := 1.0
		for _, c := range counts {
			p := c / n
			g -= p * p
		}
		return g
	}
}

// leaf は1サンプル x が到達する葉のインデックスを返す
func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, row int) int {
	id := 0
	for dt.nodes[id].feature != leafFeature {
		n := &dt.nodes[id]
		if X.At(row, n.feature) <= n.threshold {
			id = n.left
		} else {
			id = n.right
		}
	}
	return id
}

// PredictProba returns class probability estimates; columns follow Classes()
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := dt.state.CheckFeatures("DecisionTreeClassifier.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	probas := mat.NewDense(nSamples, dt.nClasses_, nil)
	parallel.ParallelizeWithThreshold(nSamples, predictParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			probas.SetRow(i, dt.nodes[dt.leaf(X, i)].value)
		}
	})
	return probas, nil
}

// Predict returns the most probable class of each sample
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for k := 1; k < dt.nClasses_; k++ {
			if probas.At(i, k) > probas.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, float64(dt.classes_[best]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := dt.Predict(X)
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
func (dt *DecisionTreeClassifier) Classes() []int {
	return slices.Clone(dt.classes_)
}

// GetDepth returns the depth of the fitted tree (a single leaf has depth 0)
func (dt *DecisionTreeClassifier) GetDepth() int {
	return dt.depth_
}

// GetNLeaves returns the number of leaves of the fitted tree
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return dt.nLeaves_
}

// GetFeatureImportances returns the normalized impurity decrease per feature
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return slices.Clone(dt.featureImportances_)
}

// GetParams returns the model hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets the model hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			dt.criterion = s
		case "max_depth", "min_samples_split", "min_samples_leaf", "max_features":
			n, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			switch key {
			case "max_depth":
				dt.maxDepth = n
			case "min_samples_split":
				dt.minSamplesSplit = n
			case "min_samples_leaf":
				dt.minSamplesLeaf = n
			default:
				dt.maxFeatures = n
			}
		case "random_state":
			n, ok := toInt(value)
			if !ok || n < 0 {
				return errors.NewValidationError(key, "must be a non-negative integer", value)
			}
			dt.randomState = uint64(n)
		default:
			return errors.NewValueError("DecisionTreeClassifier.SetParams", fmt.Sprintf("unknown parameter: %s", key))
		}
	}
	return nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
