// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed

import (
	"testing"

	"github.com/gomlx/tensorexpr/backends"
	_ "github.com/gomlx/tensorexpr/backends/incore"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDistributed(t *testing.T, ranks string, name string, d ...int) *Storage {
	config := backends.Config{Kind: backends.KindDistributed, Options: map[string]string{"ranks": ranks}}
	s, err := New(config, name, dims.Make(d...))
	require.NoError(t, err)
	return s.(*Storage)
}

func arange(n int) []float64 {
	flat := make([]float64, n)
	for i := range flat {
		flat[i] = float64(i + 1)
	}
	return flat
}

func TestSharding(t *testing.T) {
	s := newDistributed(t, "3", "A", 7, 2)
	require.Equal(t, 3, s.NumRanks())
	assert.Equal(t, dims.Range{Start: 0, End: 2}, s.ShardRows(0))
	assert.Equal(t, dims.Range{Start: 2, End: 4}, s.ShardRows(1))
	assert.Equal(t, dims.Range{Start: 4, End: 7}, s.ShardRows(2))

	// Round trip of the flat contents through the shards.
	require.NoError(t, s.WriteFlat(arange(14)))
	got := make([]float64, 14)
	require.NoError(t, s.ReadFlat(got))
	assert.Equal(t, arange(14), got)

	v, err := s.At([]int{5, 1})
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	require.NoError(t, s.Set([]int{3, 0}, -1))
	v, err = s.At([]int{3, 0})
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)
	_, err = s.At([]int{7, 0})
	require.ErrorIs(t, err, errs.ErrIndexMismatch)

	// More ranks than rows: some ranks hold nothing.
	small := newDistributed(t, "4", "small", 2)
	require.NoError(t, small.WriteFlat([]float64{3, 4}))
	norm, err := small.Norm(2)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, norm, 1e-12)

	scalar := newDistributed(t, "4", "scalar")
	require.Equal(t, 1, scalar.NumRanks())
	require.NoError(t, scalar.Set(nil, 2))
	v, err = scalar.At(nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	_, err = New(backends.Config{Options: map[string]string{"ranks": "0"}}, "bad", dims.Make(2))
	require.ErrorIs(t, err, errs.ErrUnsupportedOperation)
	_, err = New(backends.Config{Options: map[string]string{"ranks": "x"}}, "bad", dims.Make(2))
	require.ErrorIs(t, err, errs.ErrUnsupportedOperation)
}

func TestElementWise(t *testing.T) {
	a := newDistributed(t, "2", "A", 3, 2)
	b := newDistributed(t, "2", "B", 3, 2)
	require.NoError(t, a.WriteFlat(arange(6)))
	require.NoError(t, b.WriteFlat([]float64{1, 1, 1, 1, 1, 1}))

	// Same layout.
	require.NoError(t, b.ScaleAndAdd(2, a))
	got := make([]float64, 6)
	require.NoError(t, b.ReadFlat(got))
	assert.Equal(t, []float64{3, 5, 7, 9, 11, 13}, got)

	dot, err := a.Dot(b)
	require.NoError(t, err)
	assert.InDelta(t, 3.0+10+21+36+55+78, dot, 1e-12)

	// Core operand.
	c := must.M1(backends.New(backends.KindCore, "C", dims.Make(3, 2)))
	require.NoError(t, c.WriteFlat([]float64{1, 2, 1, 2, 1, 2}))
	require.NoError(t, b.PointwiseMultiply(c))
	require.NoError(t, b.ReadFlat(got))
	assert.Equal(t, []float64{3, 10, 7, 18, 11, 26}, got)
	require.NoError(t, b.PointwiseDivide(c))
	require.NoError(t, b.ReadFlat(got))
	assert.Equal(t, []float64{3, 5, 7, 9, 11, 13}, got)

	// Operand with the same dimensions, but different sharding.
	d := newDistributed(t, "3", "D", 3, 2)
	require.NoError(t, d.WriteFlat(arange(6)))
	require.NoError(t, b.ScaleAndAdd(-2, d))
	require.NoError(t, b.ReadFlat(got))
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1}, got)

	maxAbs, err := a.Norm(0)
	require.NoError(t, err)
	assert.Equal(t, 6.0, maxAbs)

	require.ErrorIs(t, a.ScaleAndAdd(1, newDistributed(t, "2", "E", 2, 3)), errs.ErrDimensionMismatch)
}

func TestGatheredOperations(t *testing.T) {
	a := newDistributed(t, "2", "A", 2, 3)
	require.NoError(t, a.WriteFlat(arange(6)))
	b := must.M1(backends.New(backends.KindCore, "B", dims.Make(3, 2)))
	require.NoError(t, b.WriteFlat([]float64{1, 0, 0, 1, 1, 1}))

	c := newDistributed(t, "2", "C", 2, 2)
	require.NoError(t, c.Contract(a, b, indices.Split("ij"), indices.Split("ik"), indices.Split("kj"), 1, 0))
	got := make([]float64, 4)
	require.NoError(t, c.ReadFlat(got))
	assert.Equal(t, []float64{4, 5, 10, 11}, got)

	// Accumulate onto the previous value.
	require.NoError(t, c.Contract(a, b, indices.Split("ji"), indices.Split("ik"), indices.Split("kj"), 1, 1))
	require.NoError(t, c.ReadFlat(got))
	assert.Equal(t, []float64{8, 15, 15, 22}, got)

	at := newDistributed(t, "2", "At", 3, 2)
	require.NoError(t, at.Permute(a, indices.Split("ji"), indices.Split("ij"), 1, 0))
	got = make([]float64, 6)
	require.NoError(t, at.ReadFlat(got))
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, got)

	// Slice keeps the elements outside the window.
	require.NoError(t, at.Slice(a, dims.IndexRange{{Start: 0, End: 1}, {Start: 0, End: 2}}, dims.IndexRange{{Start: 1, End: 2}, {Start: 1, End: 3}}, 10, 0))
	require.NoError(t, at.ReadFlat(got))
	assert.Equal(t, []float64{50, 60, 2, 5, 3, 6}, got)

	require.NoError(t, at.Close())
	require.ErrorIs(t, at.Zero(), errs.ErrBackendFailure)
}
