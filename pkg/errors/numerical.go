package errors

import (
	"math"
	"slices"
)

// CheckNumericalStability checks if values contain NaN or Inf
// and returns an error if numerical instability is detected.
// The error keeps a copy of values, so callers may reuse the slice.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, slices.Clone(values), iteration)
		}
	}
	return nil
}

// CheckScalar checks a single scalar value for numerical instability.
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

// ClipValue clips a value to the range [min, max].
func ClipValue(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Softplus computes log(1 + exp(x)) without overflowing for large x.
func Softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

// Sigmoid computes 1 / (1 + exp(-x)) without overflowing for large |x|.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	z := math.Exp(x)
	return z / (1.0 + z)
}
