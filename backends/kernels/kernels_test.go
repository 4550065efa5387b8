// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/gomlx/tensorexpr/backends"
	"github.com/gomlx/tensorexpr/internal/workerspool"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func arange(n int) []float64 {
	flat := make([]float64, n)
	for i := range flat {
		flat[i] = float64(i)
	}
	return flat
}

func randomFlat(rng *rand.Rand, n int) []float64 {
	flat := make([]float64, n)
	for i := range flat {
		flat[i] = rng.Float64()*2 - 1
	}
	return flat
}

// naiveContract loops over every assignment of all labels, the plain definition of the einsum.
func naiveContract(c, a, b Operand) []float64 {
	bindings := indices.Bindings{}
	for _, op := range []Operand{a, b, c} {
		if err := bindings.Bind(op.Indices, op.Dims); err != nil {
			panic(err)
		}
	}
	var labels []string
	for label := range bindings {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	all := make(dims.Dimension, len(labels))
	for ii, label := range labels {
		all[ii] = bindings[label]
	}
	posOf := func(op Operand, idx []int) int {
		sub := make([]int, len(op.Indices))
		for axis, label := range op.Indices {
			sub[axis] = idx[sort.SearchStrings(labels, label)]
		}
		pos, err := op.Dims.FlatIndex(sub)
		if err != nil {
			panic(err)
		}
		return pos
	}
	out := make([]float64, c.Dims.Size())
	for _, idx := range all.Iter() {
		out[posOf(c, idx)] += a.Flat[posOf(a, idx)] * b.Flat[posOf(b, idx)]
	}
	return out
}

func TestPermute(t *testing.T) {
	pool := workerspool.New()
	// Transpose of a 2x3 matrix.
	dst := make([]float64, 6)
	Permute(pool, dst, dims.Make(3, 2), arange(6), []int{1, 0}, 1, 0)
	require.Equal(t, []float64{0, 3, 1, 4, 2, 5}, dst)

	// alpha and beta.
	Permute(pool, dst, dims.Make(3, 2), arange(6), []int{1, 0}, 2, 1)
	require.Equal(t, []float64{0, 9, 3, 12, 6, 15}, dst)

	// Scalar.
	scalar := []float64{7}
	Permute(pool, scalar, dims.Make(), []float64{3}, []int{}, -1, 1)
	require.Equal(t, []float64{4}, scalar)

	// Rank 3 with a large tensor, to exercise parallelism.
	oldChunk := MinChunk
	MinChunk = 7
	defer func() { MinChunk = oldChunk }()
	srcDims := dims.Make(5, 6, 7)
	src := arange(srcDims.Size())
	dstDims := dims.Make(7, 5, 6) // "kij" from "ijk"
	dst = make([]float64, srcDims.Size())
	Permute(pool, dst, dstDims, src, []int{2, 0, 1}, 1, 0)
	for _, idx := range dstDims.Iter() {
		k, i, j := idx[0], idx[1], idx[2]
		want := src[(i*6+j)*7+k]
		got := dst[(k*5+i)*6+j]
		require.Equal(t, want, got, "at k=%d, i=%d, j=%d", k, i, j)
	}
}

func TestSlice(t *testing.T) {
	pool := workerspool.New()
	src := arange(12) // 3x4
	dst := make([]float64, 6)
	Slice(pool, dst, dims.Make(2, 3), dims.IndexRange{{Start: 0, End: 2}, {Start: 1, End: 3}},
		src, dims.Make(3, 4), dims.IndexRange{{Start: 1, End: 3}, {Start: 2, End: 4}}, 1, 0)
	require.Equal(t, []float64{0, 6, 7, 0, 10, 11}, dst)

	// Empty window is a no-op.
	Slice(pool, dst, dims.Make(2, 3), dims.IndexRange{{Start: 1, End: 1}, {Start: 0, End: 3}},
		src, dims.Make(3, 4), dims.IndexRange{{Start: 0, End: 0}, {Start: 0, End: 3}}, 1, 0)
	require.Equal(t, []float64{0, 6, 7, 0, 10, 11}, dst)
}

func TestContract(t *testing.T) {
	pool := workerspool.New()
	rng := rand.New(rand.NewPCG(42, 0))
	testCases := []struct{ c, a, b string }{
		{"ij", "ik", "kj"},
		{"ji", "ik", "kj"},
		{"ij", "ki", "jk"},
		{"", "ij", "ij"},
		{"ij", "i", "j"},
		{"bij", "bik", "bkj"},
		{"ijb", "kbi", "jkb"},
		{"ij", "", "ij"},
		{"ilj", "ikl", "kjl"},
	}
	extents := indices.Bindings{"i": 3, "j": 4, "k": 5, "l": 2, "b": 3}
	for _, tc := range testCases {
		t.Run(tc.c+"="+tc.a+"*"+tc.b, func(t *testing.T) {
			var ops [3]Operand
			for ii, spec := range []string{tc.c, tc.a, tc.b} {
				ix := indices.Split(spec)
				d, err := extents.Dims(ix)
				require.NoError(t, err)
				ops[ii] = Operand{Flat: randomFlat(rng, d.Size()), Dims: d, Indices: ix}
			}
			c, a, b := ops[0], ops[1], ops[2]
			want := naiveContract(c, a, b)
			for ii := range want {
				want[ii] = 2*want[ii] + 0.5*c.Flat[ii]
			}
			require.NoError(t, Contract(pool, c, a, b, 2, 0.5))
			require.InDeltaSlice(t, want, c.Flat, 1e-12)
		})
	}
}

func TestContractEmptySum(t *testing.T) {
	pool := workerspool.New()
	c := Operand{Flat: []float64{1, 2, 3, 4}, Dims: dims.Make(2, 2), Indices: indices.Split("ij")}
	a := Operand{Flat: []float64{}, Dims: dims.Make(2, 0), Indices: indices.Split("ik")}
	b := Operand{Flat: []float64{}, Dims: dims.Make(0, 2), Indices: indices.Split("kj")}
	require.NoError(t, Contract(pool, c, a, b, 1, 3))
	require.Equal(t, []float64{3, 6, 9, 12}, c.Flat)
}

func TestReductions(t *testing.T) {
	x := []float64{3, -4}
	assert.InDelta(t, 5.0, Norm(x, 2), 1e-12)
	assert.InDelta(t, 7.0, Norm(x, 1), 1e-12)
	assert.InDelta(t, 4.0, Norm(x, 0), 1e-12)
	assert.InDelta(t, math.Cbrt(27+64), Norm(x, 3), 1e-12)
	assert.Equal(t, 0.0, Norm(nil, 2))
	assert.InDelta(t, -5.0, Dot(x, []float64{1, 2}), 1e-12)

	y := []float64{1, 1}
	ScaleAndAdd(2, x, y)
	assert.Equal(t, []float64{7, -7}, y)
	Scale(0.5, y)
	assert.Equal(t, []float64{3.5, -3.5}, y)
	PointwiseMultiply(nil, x, y)
	assert.Equal(t, []float64{10.5, 14}, y)
	PointwiseDivide(nil, []float64{2, 0}, y)
	assert.Equal(t, 5.25, y[0])
	assert.True(t, math.IsInf(y[1], 1))
}

func TestBuffer(t *testing.T) {
	b := NewBuffer(backends.KindCore, "b", dims.Make(2, 3), arange(6))
	require.Equal(t, backends.KindCore, b.Kind())
	require.Equal(t, dims.Make(2, 3), b.Dims())

	v, err := b.At([]int{1, 2})
	require.NoError(t, err)
	require.Equal(t, 5.0, v)
	require.NoError(t, b.Set([]int{0, 0}, 10))
	_, err = b.At([]int{2, 0})
	require.Error(t, err)

	// Operations reading the same buffer they write.
	require.NoError(t, b.ScaleAndAdd(1, b))
	require.Equal(t, []float64{20, 2, 4, 6, 8, 10}, b.FlatView())
	square := NewBuffer(backends.KindCore, "square", dims.Make(2, 2), []float64{1, 2, 3, 4})
	require.NoError(t, square.Permute(square, indices.Split("ji"), indices.Split("ij"), 1, 0))
	require.Equal(t, []float64{1, 3, 2, 4}, square.FlatView())

	other := NewBuffer(backends.KindCore, "other", dims.Make(3, 2), arange(6))
	require.Error(t, b.ScaleAndAdd(1, other))

	require.NoError(t, b.Close())
	require.Error(t, b.Zero())
}
