package svm

import (
	"math"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// plattFit は決定関数値 dec とラベル y (±1) から
// P(y=+1 | f) = 1 / (1 + exp(A f + B)) の A, B を求める。
// Lin, Lin, Weng (2007) によるニュートン法と直線探索。
func plattFit(dec, y []float64) (a, b float64) {
	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
		eps     = 1e-5
	)

	var prior1, prior0 float64
	for _, v := range y {
		if v > 0 {
			prior1++
		} else {
			prior0++
		}
	}
	hiTarget := (prior1 + 1) / (prior1 + 2)
	loTarget := 1 / (prior0 + 2)
	t := make([]float64, len(y))
	for i, v := range y {
		if v > 0 {
			t[i] = hiTarget
		} else {
			t[i] = loTarget
		}
	}

	objective := func(a, b float64) float64 {
		f := 0.0
		for i, d := range dec {
			fApB := d*a + b
			if fApB >= 0 {
				f += t[i]*fApB + errors.Softplus(-fApB)
			} else {
				f += (t[i]-1)*fApB + errors.Softplus(fApB)
			}
		}
		return f
	}

	a, b = 0, math.Log((prior0+1)/(prior1+1))
	fval := objective(a, b)
	for iter := 0; iter < maxIter; iter++ {
		h11, h22, h21 := sigma, sigma, 0.0
		g1, g2 := 0.0, 0.0
		for i, d := range dec {
			p := plattPredict(d, a, b)
			q := 1 - p
			d2 := p * q
			h11 += d * d * d2
			h22 += d2
			h21 += d * d2
			d1 := t[i] - p
			g1 += d * d1
			g2 += d1
		}
		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			newA, newB := a+step*dA, b+step*dB
			if newF := objective(newA, newB); newF < fval+0.0001*step*gd {
				a, b, fval = newA, newB, newF
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	return a, b
}

// plattPredict は P(y=+1 | f)
func plattPredict(dec, a, b float64) float64 {
	return errors.Sigmoid(-(dec*a + b))
}
