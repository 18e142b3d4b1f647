package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// AveragePrecisionScore は posLabel を陽性とした平均適合率を計算する
//
//	AP = Σ_n (R_n - R_{n-1}) P_n
//
// 同じスコアのサンプルは1つの閾値としてまとめて扱う。
func AveragePrecisionScore(yTrue, yScore *mat.VecDense, posLabel float64) (float64, error) {
	if _, err := checkVectors("AveragePrecisionScore", yTrue, yScore); err != nil {
		return 0, err
	}

	nPos := 0
	for i := 0; i < yTrue.Len(); i++ {
		if yTrue.AtVec(i) == posLabel {
			nPos++
		}
	}
	if nPos == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("average_precision", "no positive samples in y_true", 0))
		return 0, nil
	}

	precision, recall, _, err := PrecisionRecallCurve(yTrue, yScore, posLabel)
	if err != nil {
		return 0, err
	}

	var ap float64
	for i := 0; i < len(recall)-1; i++ {
		ap += (recall[i] - recall[i+1]) * precision[i]
	}
	return ap, nil
}
