// Package parallel provides call-scoped data parallelism for the pipeline.
//
// Per-pixel and per-tile work (cluster assignment, gradient rows, tile
// scoring) is embarrassingly parallel: ranges are partitioned across workers
// writing to disjoint outputs, and every helper joins before returning, so
// no goroutine or lock outlives the call. Nothing here persists between
// pipeline invocations.
package parallel

import (
	"runtime"
	"sync"
)

// Workers returns the worker count to use for the given requested value.
// Zero or negative requests GOMAXPROCS.
func Workers(requested int) int {
	if requested > 0 {
		return requested
	}
	return runtime.GOMAXPROCS(0)
}

// For splits [0, n) into contiguous chunks and runs fn(start, end) on each
// from its own goroutine, then joins. fn must only write to outputs indexed
// by its own range. Small n runs inline to skip goroutine overhead.
func For(n, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers = Workers(workers)
	const inlineThreshold = 2048
	if workers <= 1 || n < inlineThreshold {
		fn(0, n)
		return
	}
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ForRows is For specialized to image rows: fn receives [y0, y1).
func ForRows(height, workers int, fn func(y0, y1 int)) {
	For(height, workers, fn)
}

// Map runs fn(i) for each index across workers and joins. Unlike For, each
// index is an independent task; use it when per-item cost is large and
// uneven (per-tile SSIM, per-region PCA).
func Map(n, workers int, fn func(i int)) {
	if n <= 0 {
		return
	}
	workers = Workers(workers)
	if workers <= 1 || n == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	next := make(chan int, n)
	for i := 0; i < n; i++ {
		next <- i
	}
	close(next)

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range next {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
