package svm

import (
	"container/list"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/binclass/core/parallel"
)

const (
	// KernelRBF は exp(-gamma * ||x - x'||^2)
	KernelRBF = "rbf"
	// KernelLinear は <x, x'>
	KernelLinear = "linear"

	// kernelRowParallelThreshold 以下の長さの行は逐次に計算する
	kernelRowParallelThreshold = 4096
)

// kernelFunc は2つのサンプルのカーネル値を返す
type kernelFunc func(a, b []float64, sqA, sqB float64) float64

func newKernelFunc(kernel string, gamma float64) kernelFunc {
	if kernel == KernelLinear {
		return func(a, b []float64, _, _ float64) float64 {
			return floats.Dot(a, b)
		}
	}
	return func(a, b []float64, sqA, sqB float64) float64 {
		d := sqA + sqB - 2*floats.Dot(a, b)
		if d < 0 {
			d = 0
		}
		return math.Exp(-gamma * d)
	}
}

// kernelCache はカーネル行列の行 K(i, ·) をLRUで保持する
type kernelCache struct {
	rows   [][]float64
	sqNorm []float64
	k      kernelFunc

	capacity int
	entries  map[int]*list.Element
	lru      *list.List
}

type cacheEntry struct {
	i   int
	row []float64
}

// newKernelCache は sizeMB メガバイトまでの行を保持するキャッシュを作る
func newKernelCache(rows [][]float64, k kernelFunc, sizeMB float64) *kernelCache {
	n := len(rows)
	capacity := int(sizeMB * 1024 * 1024 / (8 * float64(max(n, 1))))
	capacity = max(capacity, 2)

	sq := make([]float64, n)
	for i, r := range rows {
		sq[i] = floats.Dot(r, r)
	}
	return &kernelCache{
		rows:     rows,
		sqNorm:   sq,
		k:        k,
		capacity: capacity,
		entries:  make(map[int]*list.Element),
		lru:      list.New(),
	}
}

// row は K(i, j) (j = 0..n-1) を返す。返したスライスは次の呼び出しで再利用されうる。
func (c *kernelCache) row(i int) []float64 {
	if e, ok := c.entries[i]; ok {
		c.lru.MoveToFront(e)
		return e.Value.(*cacheEntry).row
	}

	var buf []float64
	if c.lru.Len() >= c.capacity {
		oldest := c.lru.Back()
		entry := c.lru.Remove(oldest).(*cacheEntry)
		delete(c.entries, entry.i)
		buf = entry.row
	} else {
		buf = make([]float64, len(c.rows))
	}

	xi, sqi := c.rows[i], c.sqNorm[i]
	parallel.ParallelizeWithThreshold(len(c.rows), kernelRowParallelThreshold, func(start, end int) {
		for j := start; j < end; j++ {
			buf[j] = c.k(xi, c.rows[j], sqi, c.sqNorm[j])
		}
	})

	c.entries[i] = c.lru.PushFront(&cacheEntry{i: i, row: buf})
	return buf
}

// diag は K(i, i)
func (c *kernelCache) diag(i int) float64 {
	return c.k(c.rows[i], c.rows[i], c.sqNorm[i], c.sqNorm[i])
}
