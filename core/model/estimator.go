// Package model は分類器が共有するインターフェースと学習状態の管理を提供します。
package model

import (
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Classifier は二値分類器の共通インターフェース
type Classifier interface {
	Fitter
	Predictor

	// PredictProba は各クラスの確率を返す（列は Classes() の順）
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes は学習時に見たクラスラベルを昇順で返す
	Classes() []int

	// Score はテストデータに対する正解率を返す
	Score(X, y mat.Matrix) float64
}

// DecisionFunctioner は符号付きの決定関数値を返せるモデルのインターフェース。
// 値が大きいほど Classes()[1] らしいことを表す。
type DecisionFunctioner interface {
	DecisionFunction(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}

// ExtractClasses は列ベクトル y のユニークなラベルを昇順で返す
func ExtractClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	classes := make([]int, 0, 2)
	for i := 0; i < rows; i++ {
		label := int(y.At(i, 0))
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		classes = append(classes, label)
	}
	slices.Sort(classes)
	return classes
}

// ScoreFunc は正解ラベルと予測ラベルから評価値を計算する関数
type ScoreFunc func(yTrue, yPred *mat.VecDense) (float64, error)
