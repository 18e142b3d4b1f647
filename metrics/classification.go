// Package metrics は分類モデルの評価指標を提供します。
// 関数はscikit-learnの sklearn.metrics と同じ定義に従います。
package metrics

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// checkVectors は2本のベクトルがnilでも空でもなく、同じ長さであることを確認する
func checkVectors(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// checkBinary はラベルが0と1だけからなることを確認する
func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, fmt.Sprintf("labels must be binary (0 or 1), got %v", v))
		}
	}
	return nil
}

// Accuracy は正解率（予測が正解と一致した割合）を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVectors("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ConfusionMatrix は混同行列を計算する
// 行が正解ラベル、列が予測ラベルで、順序は labels に従う。
// labels がnilの場合は yTrue と yPred に現れるラベルを昇順に使う。
func ConfusionMatrix(yTrue, yPred *mat.VecDense, labels []float64) (*mat.Dense, error) {
	n, err := checkVectors("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}

	if labels == nil {
		labels = uniqueLabels(yTrue, yPred)
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "labels must not be empty")
	}
	pos := make(map[float64]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		r, okT := pos[yTrue.AtVec(i)]
		c, okP := pos[yPred.AtVec(i)]
		if !okT || !okP {
			continue
		}
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return cm, nil
}

func uniqueLabels(vs ...*mat.VecDense) []float64 {
	seen := make(map[float64]struct{})
	var out []float64
	for _, v := range vs {
		for i := 0; i < v.Len(); i++ {
			l := v.AtVec(i)
			if _, ok := seen[l]; !ok {
				seen[l] = struct{}{}
				out = append(out, l)
			}
		}
	}
	slices.Sort(out)
	return out
}

// binaryCounts は posLabel を陽性とした tp, fp, fn を数える
func binaryCounts(yTrue, yPred *mat.VecDense, posLabel float64) (tp, fp, fn int) {
	for i := 0; i < yTrue.Len(); i++ {
		t := yTrue.AtVec(i) == posLabel
		p := yPred.AtVec(i) == posLabel
		switch {
		case t && p:
			tp++
		case !t && p:
			fp++
		case t && !p:
			fn++
		}
	}
	return tp, fp, fn
}

// PrecisionScore は posLabel を陽性とした適合率 tp / (tp + fp) を計算する
// 陽性の予測が1件もない場合はUndefinedMetricWarningを出して0を返す。
func PrecisionScore(yTrue, yPred *mat.VecDense, posLabel float64) (float64, error) {
	if _, err := checkVectors("PrecisionScore", yTrue, yPred); err != nil {
		return 0, err
	}
	tp, fp, _ := binaryCounts(yTrue, yPred, posLabel)
	if tp+fp == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples", 0))
		return 0, nil
	}
	return errors.SafeDivide(float64(tp), float64(tp+fp)), nil
}

// RecallScore は posLabel を陽性とした再現率 tp / (tp + fn) を計算する
// 陽性の正解が1件もない場合はUndefinedMetricWarningを出して0を返す。
func RecallScore(yTrue, yPred *mat.VecDense, posLabel float64) (float64, error) {
	if _, err := checkVectors("RecallScore", yTrue, yPred); err != nil {
		return 0, err
	}
	tp, _, fn := binaryCounts(yTrue, yPred, posLabel)
	if tp+fn == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples", 0))
		return 0, nil
	}
	return errors.SafeDivide(float64(tp), float64(tp+fn)), nil
}

// BinaryLogLoss は二値分類の対数損失を計算する
// yPred は陽性クラスの確率で、log(0) を避けるため [eps, 1-eps] にクリップする。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVectors("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	const eps = 1e-15
	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yPred.AtVec(i), eps, 1-eps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// AUC は posLabel を陽性としたROC曲線下面積を計算する
// y_true が1クラスしか含まない場合は定義できないため、警告を出して0.5を返す。
func AUC(yTrue, yScore *mat.VecDense, posLabel float64) (float64, error) {
	n, err := checkVectors("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}

	nPos := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == posLabel {
			nPos++
		}
	}
	if nPos == 0 || nPos == n {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	fpr, tpr, _, err := ROCCurve(yTrue, yScore, posLabel)
	if err != nil {
		return 0, err
	}
	return TrapezoidArea(fpr, tpr), nil
}

// TrapezoidArea は台形公式で折れ線 (x, y) の下の面積を計算する
func TrapezoidArea(x, y []float64) float64 {
	var area float64
	for i := 1; i < len(x); i++ {
		area += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return area
}
