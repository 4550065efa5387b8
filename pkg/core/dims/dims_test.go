// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dims

import (
	"testing"

	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/stretchr/testify/require"
)

func TestDimension(t *testing.T) {
	scalar := Make()
	require.Equal(t, 0, scalar.Rank())
	require.Equal(t, 1, scalar.Size())
	require.Nil(t, scalar.Strides())
	require.Equal(t, "()", scalar.String())

	d := Make(4, 3, 2)
	require.Equal(t, 3, d.Rank())
	require.Equal(t, 24, d.Size())
	require.Equal(t, []int{6, 2, 1}, d.Strides())
	require.Equal(t, "(4, 3, 2)", d.String())
	require.True(t, d.Equal(Make(4, 3, 2)))
	require.False(t, d.Equal(Make(4, 2, 3)))
	require.NoError(t, d.Validate())
	require.ErrorIs(t, Make(2, -1).Validate(), errs.ErrDimensionMismatch)

	require.Equal(t, 0, Make(3, 0, 2).Size())
}

func TestFlatIndex(t *testing.T) {
	d := Make(4, 3, 2)
	flat, err := d.FlatIndex([]int{1, 2, 1})
	require.NoError(t, err)
	require.Equal(t, 1*6+2*2+1, flat)

	_, err = d.FlatIndex([]int{1, 2})
	require.ErrorIs(t, err, errs.ErrIndexMismatch)
	_, err = d.FlatIndex([]int{1, 3, 0})
	require.ErrorIs(t, err, errs.ErrIndexMismatch)
}

func TestIter(t *testing.T) {
	d := Make(2, 3)
	var got [][]int
	for flat, indices := range d.Iter() {
		require.Equal(t, len(got), flat)
		got = append(got, append([]int(nil), indices...))
	}
	require.Equal(t, [][]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}, got)

	// Scalar yields once, zero-sized never.
	count := 0
	for range Make().Iter() {
		count++
	}
	require.Equal(t, 1, count)
	for range Make(3, 0).Iter() {
		t.Fatal("zero-sized dimension should not yield")
	}
}

func TestIndexRange(t *testing.T) {
	d := Make(4, 5)
	ir := IndexRange{{1, 3}, {0, 5}}
	require.NoError(t, ir.ValidateWithin(d))
	require.Equal(t, Make(2, 5), ir.Dims())
	require.Equal(t, "{[1,3), [0,5)}", ir.String())
	require.Equal(t, IndexRange{{0, 4}, {0, 5}}, Full(d))

	require.ErrorIs(t, IndexRange{{0, 1}}.ValidateWithin(d), errs.ErrIndexMismatch)
	require.ErrorIs(t, IndexRange{{0, 5}, {0, 1}}.ValidateWithin(d), errs.ErrIndexMismatch)
	require.ErrorIs(t, IndexRange{{3, 2}, {0, 1}}.ValidateWithin(d), errs.ErrIndexMismatch)
}
