package ensemble

import (
	"context"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// makeBlobs は2次元の2クラスデータを作る（クラス1は右上）
func makeBlobs(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		c := float64(i % 2)
		X.Set(i, 0, c*4+float64(i%5)*0.3)
		X.Set(i, 1, c*4+float64(i%7)*0.2)
		y.Set(i, 0, c)
	}
	return X, y
}

func TestRandomForestClassifier_FitPredict(t *testing.T) {
	X, y := makeBlobs(60)

	rf := NewRandomForestClassifier(
		WithNEstimators(20),
		WithMaxDepth(3),
		WithRandomState(0),
	)
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	if score := rf.Score(X, y); score != 1.0 {
		t.Errorf("Expected perfect training accuracy on separable blobs, got %v", score)
	}
	if len(rf.Estimators()) != 20 {
		t.Errorf("Expected 20 trees, got %d", len(rf.Estimators()))
	}

	probas, err := rf.PredictProba(X)
	if err != nil {
		t.Fatalf("Failed to predict probabilities: %v", err)
	}
	rows, cols := probas.Dims()
	if rows != 60 || cols != 2 {
		t.Fatalf("Expected probas shape (60, 2), got (%d, %d)", rows, cols)
	}
	for i := 0; i < rows; i++ {
		if sum := probas.At(i, 0) + probas.At(i, 1); math.Abs(sum-1) > 1e-9 {
			t.Errorf("Probabilities for sample %d don't sum to 1: %v", i, sum)
		}
	}
}

func TestRandomForestClassifier_Deterministic(t *testing.T) {
	X, y := makeBlobs(40)

	fit := func(nJobs int) mat.Matrix {
		rf := NewRandomForestClassifier(
			WithNEstimators(15),
			WithRandomState(7),
			WithNJobs(nJobs),
		)
		if err := rf.Fit(X, y); err != nil {
			t.Fatalf("Failed to fit: %v", err)
		}
		p, err := rf.PredictProba(X)
		if err != nil {
			t.Fatalf("Failed to predict: %v", err)
		}
		return p
	}

	// 並列度に関わらず同じシードなら同じ森になる
	if !mat.Equal(fit(1), fit(4)) {
		t.Error("Forests with the same random_state should agree regardless of n_jobs")
	}
}

func TestRandomForestClassifier_NoBootstrap(t *testing.T) {
	X, y := makeBlobs(30)
	rf := NewRandomForestClassifier(
		WithNEstimators(5),
		WithBootstrap(false),
		WithMaxFeatures(MaxFeaturesAll),
	)
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	// ブートストラップも特徴量の抽出もなければ全ての木が同じになる
	trees := rf.Estimators()
	p0, _ := trees[0].PredictProba(X)
	for i, dt := range trees[1:] {
		p, _ := dt.PredictProba(X)
		if !mat.Equal(p0, p) {
			t.Errorf("Tree %d differs from tree 0", i+1)
		}
	}

	imp := rf.GetFeatureImportances()
	sum := 0.0
	for _, v := range imp {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("Feature importances should sum to 1, got %v", sum)
	}
}

func TestRandomForestClassifier_Errors(t *testing.T) {
	X, y := makeBlobs(10)

	if err := NewRandomForestClassifier(WithNEstimators(0)).Fit(X, y); err == nil {
		t.Error("Expected error for n_estimators=0")
	}
	if err := NewRandomForestClassifier(WithMaxFeatures("half")).Fit(X, y); err == nil {
		t.Error("Expected error for unknown max_features")
	}
	if _, err := NewRandomForestClassifier().Predict(X); err == nil {
		t.Error("Expected error when predicting without fitting")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewRandomForestClassifier().FitContext(ctx, X, y); err == nil {
		t.Error("Expected error for a cancelled context")
	}
}

// corruptMatrix はどの要素を読んでもパニックする
type corruptMatrix struct{ *mat.Dense }

func (corruptMatrix) At(int, int) float64 { panic("corrupt feature matrix") }

func TestRandomForestClassifier_TreePanicBecomesError(t *testing.T) {
	X, y := makeBlobs(10)

	// ワーカーのゴルーチン内のパニックはプロセスを落とさずエラーとして返る
	rf := NewRandomForestClassifier(WithNEstimators(4), WithNJobs(2))
	err := rf.Fit(corruptMatrix{X}, y)
	if err == nil {
		t.Fatal("Expected an error from a panicking tree fit")
	}
	var pe *errors.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected PanicError, got %T: %v", err, err)
	}
	if pe.Operation != "DecisionTreeClassifier.Fit" {
		t.Errorf("Unexpected operation %q", pe.Operation)
	}
	if pe.PanicValue != "corrupt feature matrix" {
		t.Errorf("Unexpected panic value %v", pe.PanicValue)
	}
	if _, err := rf.Predict(X); err == nil {
		t.Error("Expected the forest to stay unfitted")
	}
}

func TestRandomForestClassifier_GetSetParams(t *testing.T) {
	rf := NewRandomForestClassifier()
	params := rf.GetParams()
	if params["n_estimators"].(int) != 100 {
		t.Errorf("Default n_estimators should be 100, got %v", params["n_estimators"])
	}
	if params["max_features"].(string) != MaxFeaturesSqrt {
		t.Errorf("Default max_features should be sqrt, got %v", params["max_features"])
	}

	err := rf.SetParams(map[string]interface{}{
		"n_estimators": 300,
		"max_depth":    7,
		"bootstrap":    false,
	})
	if err != nil {
		t.Fatalf("Failed to set params: %v", err)
	}
	if rf.nEstimators != 300 || rf.maxDepth != 7 || rf.bootstrap {
		t.Errorf("params not updated: %+v", rf.GetParams())
	}

	if err := rf.SetParams(map[string]interface{}{"n_estimators": "many"}); err == nil {
		t.Error("Expected error for wrong parameter type")
	}
	if rf.nEstimators != 300 {
		t.Errorf("Failed SetParams should leave n_estimators untouched, got %d", rf.nEstimators)
	}
}
