package core

import (
	"runtime"
	"sync"
)

// Dispatch1D runs fn once per invocation index in [0, count), spread over
// worker goroutines. Invocations must be mutually independent; nothing is
// ordered within a dispatch, matching a GPU compute grid.
func Dispatch1D(count int, fn func(id int)) {
	if count <= 0 {
		return
	}
	workers := runtime.NumCPU()
	if workers > count {
		workers = count
	}
	if workers <= 1 {
		for i := 0; i < count; i++ {
			fn(i)
		}
		return
	}

	chunk := (count + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > count {
			end = count
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Dispatch2D runs fn once per (x, y) cell of a width×height grid. Rows are
// the unit of work distribution.
func Dispatch2D(width, height int, fn func(x, y int)) {
	Dispatch1D(height, func(y int) {
		for x := 0; x < width; x++ {
			fn(x, y)
		}
	})
}
