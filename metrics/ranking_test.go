package metrics

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

func TestAveragePrecisionScore(t *testing.T) {
	tests := []struct {
		name     string
		yTrue    []float64
		yScore   []float64
		posLabel float64
		want     float64
		wantWarn bool
		wantErr  bool
	}{
		{
			name:     "Typical case, positive label 1",
			yTrue:    []float64{0, 0, 1, 1},
			yScore:   []float64{0.1, 0.4, 0.35, 0.8},
			posLabel: 1,
			want:     0.5*(2.0/3.0) + 0.5,
		},
		{
			name:     "Same data, positive label 0",
			yTrue:    []float64{0, 0, 1, 1},
			yScore:   []float64{0.1, 0.4, 0.35, 0.8},
			posLabel: 0,
			want:     0.5,
		},
		{
			name:     "Encoded positive label 0 ranked first",
			yTrue:    []float64{0, 0, 1, 1},
			yScore:   []float64{0.9, 0.7, 0.2, -0.3},
			posLabel: 0,
			want:     1.0,
		},
		{
			name:     "Arbitrary label values",
			yTrue:    []float64{2, 2, 5, 5},
			yScore:   []float64{0.9, 0.8, 0.2, 0.1},
			posLabel: 2,
			want:     1.0,
		},
		{
			name:     "Tied scores",
			yTrue:    []float64{0, 1, 0, 1},
			yScore:   []float64{0.5, 0.5, 0.5, 0.5},
			posLabel: 1,
			want:     0.5,
		},
		{
			name:     "One-class holdout, all positive",
			yTrue:    []float64{1, 1},
			yScore:   []float64{0.3, 0.6},
			posLabel: 1,
			want:     1.0,
		},
		{
			name:     "One-class holdout, no positive",
			yTrue:    []float64{1, 1},
			yScore:   []float64{0.3, 0.6},
			posLabel: 0,
			want:     0,
			wantWarn: true,
		},
		{
			name:     "Dimension mismatch",
			yTrue:    []float64{0, 1},
			yScore:   []float64{0.5},
			posLabel: 1,
			wantErr:  true,
		},
		{
			name:     "Empty vectors",
			posLabel: 1,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var warnings []error
			errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
			t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })

			got, err := AveragePrecisionScore(optVec(tt.yTrue), optVec(tt.yScore), tt.posLabel)
			if (err != nil) != tt.wantErr {
				t.Errorf("AveragePrecisionScore() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AveragePrecisionScore() = %v, want %v", got, tt.want)
			}
			if tt.wantWarn != (len(warnings) > 0) {
				t.Errorf("AveragePrecisionScore() warnings = %v, wantWarn %v", warnings, tt.wantWarn)
			}
		})
	}
}
