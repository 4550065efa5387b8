// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package kernels implements the primitive tensor operations over flat row-major []float64 buffers.
//
// They are shared by all storage engines: engines that hold their data in one contiguous buffer (in-core
// and disk) embed Buffer, the distributed engine gathers its shards and calls the kernel functions directly.
//
// All functions assume their arguments were validated by the caller (extents, index lists), they only
// check what would otherwise make them index out of bounds.
package kernels

import (
	"math"

	"github.com/gomlx/tensorexpr/internal/workerspool"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"gonum.org/v1/gonum/blas/blas64"
)

// MinChunk is the minimum number of elements handled by one goroutine in element-wise loops.
var MinChunk = 16 * 1024

// update returns alpha*x + beta*y, ignoring y if beta is 0 (so uninitialized or NaN values are overwritten).
func update(alpha, x, beta, y float64) float64 {
	if beta == 0 {
		return alpha * x
	}
	return alpha*x + beta*y
}

// stridedUpdate iterates over all positions idx of the window w, and sets
//
//	dst[dstOffset + <idx, dstStrides>] = alpha * src[srcOffset + <idx, srcStrides>] + beta * dst[...]
//
// It's the common kernel of Permute (strides permuted) and Slice (offsets at the window start).
func stridedUpdate(pool *workerspool.Pool, w dims.Dimension,
	dst []float64, dstOffset int, dstStrides []int,
	src []float64, srcOffset int, srcStrides []int,
	alpha, beta float64) {
	rank := w.Rank()
	pool.Split(w.Size(), MinChunk, func(start, end int) {
		// Unravel start into the per-axis index.
		idx := make([]int, rank)
		rem := start
		for axis := rank - 1; axis >= 0; axis-- {
			idx[axis] = rem % w[axis]
			rem /= w[axis]
		}
		dstPos, srcPos := dstOffset, srcOffset
		for axis, i := range idx {
			dstPos += i * dstStrides[axis]
			srcPos += i * srcStrides[axis]
		}
		for range end - start {
			dst[dstPos] = update(alpha, src[srcPos], beta, dst[dstPos])

			// Increment odometer, adjusting the positions incrementally.
			for axis := rank - 1; axis >= 0; axis-- {
				idx[axis]++
				dstPos += dstStrides[axis]
				srcPos += srcStrides[axis]
				if idx[axis] < w[axis] {
					break
				}
				dstPos -= idx[axis] * dstStrides[axis]
				srcPos -= idx[axis] * srcStrides[axis]
				idx[axis] = 0
			}
		}
	})
}

// Permute sets dst = alpha * permute(src) + beta * dst, where axis i of dst (with dimensions dstDims)
// takes its values from axis perm[i] of src.
func Permute(pool *workerspool.Pool, dst []float64, dstDims dims.Dimension, src []float64, perm []int, alpha, beta float64) {
	srcDims := make(dims.Dimension, len(perm))
	for axis, srcAxis := range perm {
		srcDims[srcAxis] = dstDims[axis]
	}
	srcStrides := srcDims.Strides()
	permutedStrides := make([]int, len(perm))
	for axis, srcAxis := range perm {
		permutedStrides[axis] = srcStrides[srcAxis]
	}
	stridedUpdate(pool, dstDims, dst, 0, dstDims.Strides(), src, 0, permutedStrides, alpha, beta)
}

// Slice sets dst[dstRange] = alpha * src[srcRange] + beta * dst[dstRange]. Both ranges must have the same
// extents.
func Slice(pool *workerspool.Pool, dst []float64, dstDims dims.Dimension, dstRange dims.IndexRange,
	src []float64, srcDims dims.Dimension, srcRange dims.IndexRange, alpha, beta float64) {
	window := dstRange.Dims()
	if window.Size() == 0 {
		return
	}
	dstStrides, srcStrides := dstDims.Strides(), srcDims.Strides()
	var dstOffset, srcOffset int
	for axis := range window {
		dstOffset += dstRange[axis].Start * dstStrides[axis]
		srcOffset += srcRange[axis].Start * srcStrides[axis]
	}
	stridedUpdate(pool, window, dst, dstOffset, dstStrides, src, srcOffset, srcStrides, alpha, beta)
}

func vector(data []float64) blas64.Vector {
	return blas64.Vector{N: len(data), Data: data, Inc: 1}
}

// ScaleAndAdd sets y += alpha * x.
func ScaleAndAdd(alpha float64, x, y []float64) {
	if len(y) == 0 || alpha == 0 {
		return
	}
	blas64.Axpy(alpha, vector(x), vector(y))
}

// Scale sets x *= alpha.
func Scale(alpha float64, x []float64) {
	if len(x) == 0 {
		return
	}
	if alpha == 0 {
		clear(x)
		return
	}
	blas64.Scal(alpha, vector(x))
}

// Dot returns the sum of x[i] * y[i].
func Dot(x, y []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return blas64.Dot(vector(x), vector(y))
}

// Norm returns the p-norm of x, or the maximum absolute value if power is 0.
func Norm(x []float64, power float64) float64 {
	if len(x) == 0 {
		return 0
	}
	switch power {
	case 0:
		return math.Abs(x[blas64.Iamax(vector(x))])
	case 1:
		return blas64.Asum(vector(x))
	case 2:
		return blas64.Nrm2(vector(x))
	}
	return math.Pow(PowerSum(x, power), 1/power)
}

// PowerSum returns the sum of |x[i]|^power. It's the partial result of Norm for power != 0,
// used to combine norms computed per part.
func PowerSum(x []float64, power float64) float64 {
	var sum float64
	for _, v := range x {
		sum += math.Pow(math.Abs(v), power)
	}
	return sum
}

// PointwiseMultiply sets y[i] *= x[i].
func PointwiseMultiply(pool *workerspool.Pool, x, y []float64) {
	pool.Split(len(y), MinChunk, func(start, end int) {
		for i := start; i < end; i++ {
			y[i] *= x[i]
		}
	})
}

// PointwiseDivide sets y[i] /= x[i]. Divisions by zero follow IEEE-754 (±Inf or NaN).
func PointwiseDivide(pool *workerspool.Pool, x, y []float64) {
	pool.Split(len(y), MinChunk, func(start, end int) {
		for i := start; i < end; i++ {
			y[i] /= x[i]
		}
	})
}
