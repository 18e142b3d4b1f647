// Package parallel は行単位の並列処理と、エラーを返すタスクの並列実行を提供します。
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Parallelize divides items into one contiguous range per CPU core and calls
// fn(start, end) for each range concurrently. It returns after every range is done.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := min(start+chunkSize, items)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) on the calling goroutine when
// items does not exceed threshold, and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ForEach calls fn for every index in [0, n) with at most limit calls in
// flight. limit <= 0 means runtime.NumCPU(). The first error cancels ctx for
// the remaining calls and is returned.
func ForEach(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error) error {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
