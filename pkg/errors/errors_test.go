package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "binclass: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "binclass: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			// 基本的なエラーメッセージの確認
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 22, 21, 1)

	want := "binclass: Predict: dimension mismatch on axis 1 (features). Expected 22, got 21"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("SVC", "DecisionFunction")

	want := "binclass: SVC: this model is not fitted yet. Call Fit() before using DecisionFunction()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestDataUnavailableError(t *testing.T) {
	cause := fmt.Errorf("open mushrooms.csv: no such file or directory")
	err := NewDataUnavailableError("mushrooms.csv", "cannot open file", cause)

	if !Is(err, ErrDataUnavailable) {
		t.Error("errors.Is(err, ErrDataUnavailable) should be true")
	}
	if Is(err, ErrInvalidHyperparameter) {
		t.Error("data errors must not match ErrInvalidHyperparameter")
	}
	if !Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}

	var dataErr *DataUnavailableError
	if !As(err, &dataErr) {
		t.Fatal("Error should be castable to *DataUnavailableError")
	}
	if dataErr.Path != "mushrooms.csv" {
		t.Errorf("Path = %q, want mushrooms.csv", dataErr.Path)
	}
}

func TestInvalidHyperparameterError(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		value   interface{}
		err     error
		wantMsg string
	}{
		{
			name:    "param and cause",
			param:   "kernel",
			value:   "poly",
			err:     fmt.Errorf("unsupported kernel"),
			wantMsg: "binclass: svm: invalid hyperparameter kernel=poly: unsupported kernel",
		},
		{
			name:    "param only",
			param:   "gamma",
			value:   "auto2",
			wantMsg: "binclass: svm: invalid hyperparameter gamma=auto2",
		},
		{
			name:    "cause only",
			err:     fmt.Errorf("fit failed"),
			wantMsg: "binclass: svm: invalid hyperparameters: fit failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewInvalidHyperparameterError("svm", tt.param, tt.value, tt.err)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}
			if !Is(err, ErrInvalidHyperparameter) {
				t.Error("errors.Is(err, ErrInvalidHyperparameter) should be true")
			}
		})
	}
}

func TestWarn_UsesZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewConvergenceWarning("LogisticRegression", 100, ""))

	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), "failed to converge after 100 iterations") {
		t.Errorf("unexpected warning text: %v", got[0])
	}
}

func TestWarn_FallsBackToHandler(t *testing.T) {
	var got error
	SetWarningHandler(func(w error) { got = w })
	defer SetWarningHandler(nil)

	Warn(NewUndefinedMetricWarning("precision", "no predicted samples", 0))

	if got == nil {
		t.Fatal("warning handler was not called")
	}
	want := "'precision' is ill-defined and being set to 0.000000 due to no predicted samples."
	if got.Error() != want {
		t.Errorf("Error() = %q, want %q", got.Error(), want)
	}
}
