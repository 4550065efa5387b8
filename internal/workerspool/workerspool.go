// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool implements a soft-limited pool of goroutines used by the storage backends
// to split the work of one primitive operation (permutations, batched matrix multiplications).
//
// Every call blocks until all the work it started is finished: parallelism is never visible
// to the caller of a primitive operation.
package workerspool

import (
	"runtime"
	"sync"
)

type Pool struct {
	// maxParallelism is a soft target on the limit of parallel work to do.
	maxParallelism int
	mu             sync.Mutex
	numRunning     int
}

// New return a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	w := &Pool{}
	w.maxParallelism = runtime.NumCPU()
	return w
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0)
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism is a soft-target for parallelism.
// If set to 0 parallelism is disabled.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism.
//
// You should only change the parallelism before any workers start running. If changed during the execution
// the behavior is undefined.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with workerPool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	} else if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// lockedRunTaskInGoroutine and keep tabs on w.numRunning.
//
// It must be called with workerPool.mu acquired.
func (w *Pool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.mu.Unlock()
	}()
}

// StartIfAvailable runs the task in a separate goroutine, if there are enough workers left.
// It returns true if it found workers to run the function, false otherwise.
//
// It's up to the client to synchronize the end of the function execution.
func (w *Pool) StartIfAvailable(task func()) bool {
	if w.IsUnlimited() {
		go task()
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lockedIsFull() {
		return false
	}
	w.lockedRunTaskInGoroutine(task)
	return true
}

// Split calls fn over consecutive chunks [start, end) covering [0, total), each with at least minChunk
// elements (except possibly the last). Chunks are run in the pool's goroutines when workers are
// available and inline otherwise. It returns when all chunks are done.
//
// A nil Pool runs everything inline.
func (w *Pool) Split(total, minChunk int, fn func(start, end int)) {
	if total <= 0 {
		return
	}
	if w == nil || !w.IsEnabled() || total <= minChunk {
		fn(0, total)
		return
	}
	numChunks := total / max(minChunk, 1)
	if !w.IsUnlimited() {
		numChunks = min(numChunks, w.maxParallelism)
	}
	if numChunks <= 1 {
		fn(0, total)
		return
	}
	chunkSize := (total + numChunks - 1) / numChunks
	var wg sync.WaitGroup
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		wg.Add(1)
		task := func() {
			defer wg.Done()
			fn(start, end)
		}
		if !w.StartIfAvailable(task) {
			task()
		}
	}
	wg.Wait()
}
