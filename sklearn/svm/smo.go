package svm

import (
	"context"
	"math"
)

// tau は二次係数が非正のときに使う下限
const tau = 1e-12

// smoSolver は
//
//	min 0.5 αᵀQα - eᵀα   s.t. 0 <= α_i <= C, yᵀα = 0,  Q_ij = y_i y_j K(x_i, x_j)
//
// を2次の情報による作業集合選択（LIBSVMのWSS2）で解く。
type smoSolver struct {
	y     []float64
	alpha []float64
	grad  []float64
	qd    []float64
	c     float64
	eps   float64
	cache *kernelCache
}

func newSMOSolver(y []float64, c, eps float64, cache *kernelCache) *smoSolver {
	n := len(y)
	s := &smoSolver{
		y:     y,
		alpha: make([]float64, n),
		grad:  make([]float64, n),
		qd:    make([]float64, n),
		c:     c,
		eps:   eps,
		cache: cache,
	}
	for i := 0; i < n; i++ {
		s.grad[i] = -1
		s.qd[i] = cache.diag(i)
	}
	return s
}

func (s *smoSolver) isUpperBound(i int) bool { return s.alpha[i] >= s.c }
func (s *smoSolver) isLowerBound(i int) bool { return s.alpha[i] <= 0 }

// ctxCheckInterval は ctx を確認する反復の間隔
const ctxCheckInterval = 1024

// solve は最適性条件を満たすか maxIter に達するまで反復し、反復回数と収束したかを返す
// ctx がキャンセルされた場合は ctx.Err() を返す。
func (s *smoSolver) solve(ctx context.Context, maxIter int) (iter int, converged bool, err error) {
	for iter = 0; iter < maxIter; iter++ {
		if iter%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return iter, false, err
			}
		}
		i, j, ok := s.selectWorkingSet()
		if !ok {
			return iter, true, nil
		}
		s.update(i, j)
	}
	return iter, false, nil
}

// selectWorkingSet は違反の最も大きい i と、目的関数を最も減らす j を選ぶ
func (s *smoSolver) selectWorkingSet() (int, int, bool) {
	gmax := math.Inf(-1)
	gmax2 := math.Inf(-1)
	iIdx, jIdx := -1, -1
	objDiffMin := math.Inf(1)

	for t := range s.y {
		if s.y[t] > 0 {
			if !s.isUpperBound(t) && -s.grad[t] >= gmax {
				gmax = -s.grad[t]
				iIdx = t
			}
		} else {
			if !s.isLowerBound(t) && s.grad[t] >= gmax {
				gmax = s.grad[t]
				iIdx = t
			}
		}
	}
	if iIdx == -1 {
		return -1, -1, false
	}

	ki := s.cache.row(iIdx)
	for t := range s.y {
		var gradDiff float64
		if s.y[t] > 0 {
			if s.isLowerBound(t) {
				continue
			}
			gradDiff = gmax + s.grad[t]
			if s.grad[t] >= gmax2 {
				gmax2 = s.grad[t]
			}
		} else {
			if s.isUpperBound(t) {
				continue
			}
			gradDiff = gmax - s.grad[t]
			if -s.grad[t] >= gmax2 {
				gmax2 = -s.grad[t]
			}
		}
		if gradDiff <= 0 {
			continue
		}
		quad := s.qd[iIdx] + s.qd[t] - 2*ki[t]
		if quad <= 0 {
			quad = tau
		}
		if objDiff := -(gradDiff * gradDiff) / quad; objDiff <= objDiffMin {
			jIdx = t
			objDiffMin = objDiff
		}
	}

	if gmax+gmax2 < s.eps || jIdx == -1 {
		return -1, -1, false
	}
	return iIdx, jIdx, true
}

// update は α_i, α_j を解析的に更新し、勾配を差分で更新する
func (s *smoSolver) update(i, j int) {
	ki := s.cache.row(i)
	kj := s.cache.row(j)
	c := s.c
	oldAi, oldAj := s.alpha[i], s.alpha[j]
	ai, aj := oldAi, oldAj

	quad := s.qd[i] + s.qd[j] - 2*ki[j]
	if quad <= 0 {
		quad = tau
	}

	if s.y[i] != s.y[j] {
		delta := (-s.grad[i] - s.grad[j]) / quad
		diff := ai - aj
		ai += delta
		aj += delta
		if diff > 0 {
			if aj < 0 {
				aj = 0
				ai = diff
			}
		} else if ai < 0 {
			ai = 0
			aj = -diff
		}
		if diff > 0 {
			if ai > c {
				ai = c
				aj = c - diff
			}
		} else if aj > c {
			aj = c
			ai = c + diff
		}
	} else {
		delta := (s.grad[i] - s.grad[j]) / quad
		sum := ai + aj
		ai -= delta
		aj += delta
		if sum > c {
			if ai > c {
				ai = c
				aj = sum - c
			}
		} else if aj < 0 {
			aj = 0
			ai = sum
		}
		if sum > c {
			if aj > c {
				aj = c
				ai = sum - c
			}
		} else if ai < 0 {
			ai = 0
			aj = sum
		}
	}

	s.alpha[i], s.alpha[j] = ai, aj
	dAi := (ai - oldAi) * s.y[i]
	dAj := (aj - oldAj) * s.y[j]
	for t := range s.grad {
		s.grad[t] += s.y[t] * (ki[t]*dAi + kj[t]*dAj)
	}
}

// rho は決定関数 f(x) = Σ α_i y_i K(x_i, x) - rho の rho を返す
func (s *smoSolver) rho() float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	nFree, sumFree := 0, 0.0
	for i := range s.y {
		yG := s.y[i] * s.grad[i]
		switch {
		case s.isUpperBound(i):
			if s.y[i] < 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		case s.isLowerBound(i):
			if s.y[i] > 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		default:
			nFree++
			sumFree += yG
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}
