package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// binaryClfCurve はスコアの降順に閾値を下げていったときの累積 fps, tps を
// 相異なるスコアごとに返す。thresholds は降順。
func binaryClfCurve(op string, yTrue, yScore *mat.VecDense, posLabel float64) (fps, tps, thresholds []float64, err error) {
	n, err := checkVectors(op, yTrue, yScore)
	if err != nil {
		return nil, nil, nil, err
	}
	if labels := uniqueLabels(yTrue); len(labels) > 2 {
		return nil, nil, nil, errors.NewValueError(op, fmt.Sprintf("y_true must be binary, got %d classes", len(labels)))
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return yScore.AtVec(order[a]) > yScore.AtVec(order[b])
	})

	var tp, fp float64
	for k, idx := range order {
		if yTrue.AtVec(idx) == posLabel {
			tp++
		} else {
			fp++
		}
		score := yScore.AtVec(idx)
		if k == n-1 || yScore.AtVec(order[k+1]) != score {
			fps = append(fps, fp)
			tps = append(tps, tp)
			thresholds = append(thresholds, score)
		}
	}
	return fps, tps, thresholds, nil
}

// ROCCurve はROC曲線の点 (fpr, tpr) を閾値の降順で返す
// 先頭には閾値 +Inf の点 (0, 0) が入る。
func ROCCurve(yTrue, yScore *mat.VecDense, posLabel float64) (fpr, tpr, thresholds []float64, err error) {
	fps, tps, thr, err := binaryClfCurve("ROCCurve", yTrue, yScore, posLabel)
	if err != nil {
		return nil, nil, nil, err
	}

	nNeg, nPos := fps[len(fps)-1], tps[len(tps)-1]
	if nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("false positive rate", "no negative samples in y_true", 0))
	}
	if nPos == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("true positive rate", "no positive samples in y_true", 0))
	}

	fpr = make([]float64, len(fps)+1)
	tpr = make([]float64, len(tps)+1)
	thresholds = make([]float64, len(thr)+1)
	thresholds[0] = math.Inf(1)
	for i := range fps {
		fpr[i+1] = errors.SafeDivide(fps[i], nNeg)
		tpr[i+1] = errors.SafeDivide(tps[i], nPos)
		thresholds[i+1] = thr[i]
	}
	return fpr, tpr, thresholds, nil
}

// PrecisionRecallCurve は適合率-再現率曲線の点を返す
// scikit-learnと同じく、再現率が1に達した閾値までを閾値の昇順に並べ、
// 最後に (precision=1, recall=0) の点を加える。thresholds は点より1つ少ない。
func PrecisionRecallCurve(yTrue, yScore *mat.VecDense, posLabel float64) (precision, recall, thresholds []float64, err error) {
	fps, tps, thr, err := binaryClfCurve("PrecisionRecallCurve", yTrue, yScore, posLabel)
	if err != nil {
		return nil, nil, nil, err
	}

	nPos := tps[len(tps)-1]
	if nPos == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no positive samples in y_true", 1))
	}

	lastInd := len(tps) - 1
	for i, tp := range tps {
		if tp == nPos {
			lastInd = i
			break
		}
	}

	precision = make([]float64, 0, lastInd+2)
	recall = make([]float64, 0, lastInd+2)
	thresholds = make([]float64, 0, lastInd+1)
	for i := lastInd; i >= 0; i-- {
		precision = append(precision, errors.SafeDivide(tps[i], tps[i]+fps[i]))
		if nPos == 0 {
			recall = append(recall, 1)
		} else {
			recall = append(recall, tps[i]/nPos)
		}
		thresholds = append(thresholds, thr[i])
	}
	precision = append(precision, 1)
	recall = append(recall, 0)
	return precision, recall, thresholds, nil
}
