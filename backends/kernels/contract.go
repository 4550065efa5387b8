// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"github.com/gomlx/tensorexpr/internal/workerspool"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"k8s.io/klog/v2"
)

// Operand of a contraction: flat row-major data, its dimensions and the index labels of its axes.
type Operand struct {
	Flat    []float64
	Dims    dims.Dimension
	Indices indices.Indices
}

// Contract sets c = alpha * a * b + beta * c.
//
// Labels are partitioned with indices.Classify: a and b are transposed (if needed) to the layouts
// [batch, freeA, contracted] and [batch, contracted, freeB], and the contraction runs as one matrix
// multiplication per batch element. If c's labels are not in the [batch, freeA, freeB] order, the result
// is computed in a scratch buffer and permuted into c.
func Contract(pool *workerspool.Pool, c, a, b Operand, alpha, beta float64) error {
	p, err := indices.Classify(c.Indices, a.Indices, b.Indices)
	if err != nil {
		return err
	}
	bindings := indices.Bindings{}
	for _, op := range []Operand{a, b, c} {
		if err = bindings.Bind(op.Indices, op.Dims); err != nil {
			return err
		}
	}
	aFlat, err := toLayout(pool, a, p.LayoutA(), bindings)
	if err != nil {
		return err
	}
	bFlat, err := toLayout(pool, b, p.LayoutB(), bindings)
	if err != nil {
		return err
	}
	batchSize := int(bindings.Size(p.Batch...))
	m := int(bindings.Size(p.FreeA...))
	k := int(bindings.Size(p.Contracted...))
	n := int(bindings.Size(p.FreeB...))

	layoutC := p.LayoutC()
	if c.Indices.Equal(layoutC) {
		batchedGemm(pool, batchSize, m, k, n, alpha, aFlat, bFlat, beta, c.Flat)
		return nil
	}
	if klog.V(3).Enabled() {
		klog.Infof("kernels: contraction result %q permuted into %q", layoutC, c.Indices)
	}
	scratch := make([]float64, batchSize*m*n)
	batchedGemm(pool, batchSize, m, k, n, 1, aFlat, bFlat, 0, scratch)
	perm, err := indices.Permutation(layoutC, c.Indices)
	if err != nil {
		return err
	}
	Permute(pool, c.Flat, c.Dims, scratch, perm, alpha, beta)
	return nil
}

// toLayout returns op's data with its axes ordered as layout, transposing it into a new buffer if needed.
func toLayout(pool *workerspool.Pool, op Operand, layout indices.Indices, bindings indices.Bindings) ([]float64, error) {
	if op.Indices.Equal(layout) {
		return op.Flat, nil
	}
	perm, err := indices.Permutation(op.Indices, layout)
	if err != nil {
		return nil, err
	}
	layoutDims, err := bindings.Dims(layout)
	if err != nil {
		return nil, err
	}
	transposed := make([]float64, layoutDims.Size())
	Permute(pool, transposed, layoutDims, op.Flat, perm, 1, 0)
	return transposed, nil
}

// batchedGemm computes c[i] = alpha * a[i] x b[i] + beta * c[i], for i in [0, batchSize), where a[i] is
// an m x k matrix, b[i] a k x n matrix and c[i] an m x n matrix, all row-major and contiguous.
func batchedGemm(pool *workerspool.Pool, batchSize, m, k, n int, alpha float64, a, b []float64, beta float64, c []float64) {
	if batchSize == 0 || m == 0 || n == 0 {
		return
	}
	if k == 0 {
		// Empty sum: only the beta term is left.
		Scale(beta, c[:batchSize*m*n])
		return
	}
	pool.Split(batchSize, 1, func(start, end int) {
		for i := start; i < end; i++ {
			blas64.Gemm(blas.NoTrans, blas.NoTrans, alpha,
				blas64.General{Rows: m, Cols: k, Stride: k, Data: a[i*m*k : (i+1)*m*k]},
				blas64.General{Rows: k, Cols: n, Stride: n, Data: b[i*k*n : (i+1)*k*n]},
				beta,
				blas64.General{Rows: m, Cols: n, Stride: n, Data: c[i*m*n : (i+1)*m*n]})
		}
	})
}
