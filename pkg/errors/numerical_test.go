package errors

import (
	"math"
	"testing"
)

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("loss", []float64{1, 2, 3}, 0); err != nil {
		t.Errorf("unexpected error for finite values: %v", err)
	}

	err := CheckNumericalStability("loss", []float64{1, math.NaN()}, 7)
	if err == nil {
		t.Fatal("expected error for NaN")
	}
	var instab *NumericalInstabilityError
	if !As(err, &instab) {
		t.Fatalf("expected NumericalInstabilityError, got %T", err)
	}
	if instab.Iteration != 7 || instab.Operation != "loss" {
		t.Errorf("unexpected error fields: %+v", instab)
	}

	// 呼び出し側がスライスを使い回しても値は変わらない
	grad := []float64{math.Inf(1), 2}
	err = CheckNumericalStability("grad", grad, 0)
	grad[0] = 0
	if !As(err, &instab) || !math.IsInf(instab.Values[0], 1) {
		t.Errorf("expected the recorded values to be a copy, got %+v", instab)
	}
}

func TestCheckScalar(t *testing.T) {
	if err := CheckScalar("x", math.Inf(1), 1); err == nil {
		t.Error("expected error for +Inf")
	}
	if err := CheckScalar("x", 0.5, 1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSafeDivide(t *testing.T) {
	if got := SafeDivide(1, 0); got != 0 {
		t.Errorf("SafeDivide(1, 0) = %v, want 0", got)
	}
	if got := SafeDivide(3, 4); got != 0.75 {
		t.Errorf("SafeDivide(3, 4) = %v, want 0.75", got)
	}
}

func TestClipValue(t *testing.T) {
	tests := []struct {
		value, min, max, want float64
	}{
		{-1, 0.01, 10, 0.01},
		{11, 0.01, 10, 10},
		{2.5, 0.01, 10, 2.5},
	}
	for _, tt := range tests {
		if got := ClipValue(tt.value, tt.min, tt.max); got != tt.want {
			t.Errorf("ClipValue(%v, %v, %v) = %v, want %v", tt.value, tt.min, tt.max, got, tt.want)
		}
	}
}

func TestSoftplusAndSigmoid(t *testing.T) {
	for _, x := range []float64{-800, -10, 0, 10, 800} {
		sp := Softplus(x)
		if math.IsInf(sp, 0) || math.IsNaN(sp) {
			t.Errorf("Softplus(%v) is not finite: %v", x, sp)
		}
		s := Sigmoid(x)
		if s < 0 || s > 1 || math.IsNaN(s) {
			t.Errorf("Sigmoid(%v) = %v out of [0, 1]", x, s)
		}
	}
	if math.Abs(Softplus(0)-math.Ln2) > 1e-12 {
		t.Errorf("Softplus(0) = %v, want ln 2", Softplus(0))
	}
	if Sigmoid(0) != 0.5 {
		t.Errorf("Sigmoid(0) = %v, want 0.5", Sigmoid(0))
	}
}
