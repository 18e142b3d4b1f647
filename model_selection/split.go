// Package model_selection はデータの訓練/評価分割を提供します。
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// DefaultTestSize はホールドアウトに回す行の割合
const DefaultTestSize = 0.2

// Split は TrainTestSplit の結果
type Split struct {
	XTrain *mat.Dense
	XTest  *mat.Dense
	YTrain *mat.VecDense
	YTest  *mat.VecDense

	// TrainIndices / TestIndices は元の行番号（分割後の並び順）
	TrainIndices []int
	TestIndices  []int
}

type splitConfig struct {
	testSize    float64
	randomState uint64
	shuffle     bool
	stratify    bool
}

// SplitOption is a functional option for TrainTestSplit
type SplitOption func(*splitConfig)

// WithTestSize sets the fraction of rows assigned to the test set
func WithTestSize(size float64) SplitOption {
	return func(c *splitConfig) {
		c.testSize = size
	}
}

// WithRandomState sets the shuffle seed
func WithRandomState(seed uint64) SplitOption {
	return func(c *splitConfig) {
		c.randomState = seed
	}
}

// WithShuffle sets whether rows are shuffled before splitting
func WithShuffle(shuffle bool) SplitOption {
	return func(c *splitConfig) {
		c.shuffle = shuffle
	}
}

// WithStratify keeps the class proportions of y in both sides of the split
func WithStratify(stratify bool) SplitOption {
	return func(c *splitConfig) {
		c.stratify = stratify
	}
}

// TrainTestSplit はscikit-learnの train_test_split に相当する分割を行う
//
// テスト側の行数は ceil(test_size * n)。同じ入力と乱数シードからは常に同じ分割が得られ、
// 訓練側とテスト側は互いに素で、合わせると全行を覆う。
//
// 使用例:
//
//	s, err := model_selection.TrainTestSplit(X, y,
//	    model_selection.WithTestSize(0.2),
//	    model_selection.WithRandomState(0),
//	)
func TrainTestSplit(X mat.Matrix, y mat.Vector, opts ...SplitOption) (*Split, error) {
	cfg := splitConfig{
		testSize: DefaultTestSize,
		shuffle:  true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	nSamples, _ := X.Dims()
	if nSamples != y.Len() {
		return nil, errors.NewDimensionError("TrainTestSplit", nSamples, y.Len(), 0)
	}
	if cfg.testSize <= 0 || cfg.testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in the open interval (0, 1)", cfg.testSize)
	}
	if cfg.stratify && !cfg.shuffle {
		return nil, errors.NewValueError("TrainTestSplit", "stratified split requires shuffle=true")
	}

	nTest := int(math.Ceil(cfg.testSize * float64(nSamples)))
	nTrain := nSamples - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("with n_samples=%d and test_size=%v the resulting train set would be empty", nSamples, cfg.testSize))
	}

	var trainIdx, testIdx []int
	switch {
	case cfg.stratify:
		trainIdx, testIdx = stratifiedIndices(y, nTest, cfg.randomState)
	case cfg.shuffle:
		perm := make([]int, nSamples)
		for i := range perm {
			perm[i] = i
		}
		r := rand.New(rand.NewPCG(cfg.randomState, cfg.randomState))
		r.Shuffle(len(perm), func(i, j int) {
			perm[i], perm[j] = perm[j], perm[i]
		})
		testIdx, trainIdx = perm[:nTest], perm[nTest:]
	default:
		trainIdx = make([]int, nTrain)
		for i := range trainIdx {
			trainIdx[i] = i
		}
		testIdx = make([]int, nTest)
		for i := range testIdx {
			testIdx[i] = nTrain + i
		}
	}

	s := &Split{
		TrainIndices: trainIdx,
		TestIndices:  testIdx,
	}
	s.XTrain, s.YTrain = Take(X, y, trainIdx)
	s.XTest, s.YTest = Take(X, y, testIdx)
	return s, nil
}

// stratifiedIndices は各クラス内でシャッフルしてから、クラス比率に沿ってテスト行数を割り当てる。
// 端数は小数部の大きいクラスから順に（同値ならラベル昇順で）配る。
func stratifiedIndices(y mat.Vector, nTest int, seed uint64) (train, test []int) {
	n := y.Len()
	byClass := make(map[float64][]int)
	for i := 0; i < n; i++ {
		byClass[y.AtVec(i)] = append(byClass[y.AtVec(i)], i)
	}
	labels := make([]float64, 0, len(byClass))
	for label := range byClass {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	r := rand.New(rand.NewPCG(seed, seed))
	quota := make([]int, len(labels))
	frac := make([]float64, len(labels))
	assigned := 0
	for k, label := range labels {
		idx := byClass[label]
		r.Shuffle(len(idx), func(i, j int) {
			idx[i], idx[j] = idx[j], idx[i]
		})
		exact := float64(nTest) * float64(len(idx)) / float64(n)
		quota[k] = int(math.Floor(exact))
		frac[k] = exact - float64(quota[k])
		assigned += quota[k]
	}

	order := make([]int, len(labels))
	for k := range order {
		order[k] = k
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case frac[a] > frac[b]:
			return -1
		case frac[a] < frac[b]:
			return 1
		default:
			return 0
		}
	})
	for i := 0; assigned < nTest; i = (i + 1) % len(order) {
		k := order[i]
		if quota[k] < len(byClass[labels[k]]) {
			quota[k]++
			assigned++
		}
	}

	for k, label := range labels {
		idx := byClass[label]
		test = append(test, idx[:quota[k]]...)
		train = append(train, idx[quota[k]:]...)
	}
	r.Shuffle(len(test), func(i, j int) {
		test[i], test[j] = test[j], test[i]
	})
	r.Shuffle(len(train), func(i, j int) {
		train[i], train[j] = train[j], train[i]
	})
	return train, test
}

// Take は indices の行だけを取り出した X と y を返す
func Take(X mat.Matrix, y mat.Vector, indices []int) (*mat.Dense, *mat.VecDense) {
	_, nFeatures := X.Dims()
	xs := mat.NewDense(len(indices), nFeatures, nil)
	ys := mat.NewVecDense(len(indices), nil)
	for i, idx := range indices {
		for j := 0; j < nFeatures; j++ {
			xs.Set(i, j, X.At(idx, j))
		}
		ys.SetVec(i, y.AtVec(idx))
	}
	return xs, ys
}
