// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package incore

import (
	"testing"

	"github.com/gomlx/tensorexpr/backends"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s := must.M1(backends.New(backends.KindCore, "A", dims.Make(2, 3)))
	require.Equal(t, backends.KindCore, s.Kind())
	require.Equal(t, "A", s.Name())
	raw, ok := s.(backends.RawBuffer)
	require.True(t, ok)
	require.Equal(t, make([]float64, 6), raw.Data())

	// Changes to the raw buffer are visible through the storage.
	raw.Data()[4] = 7
	v, err := s.At([]int{1, 1})
	require.NoError(t, err)
	require.Equal(t, 7.0, v)

	_, err = backends.New(backends.KindCore, "bad", dims.Make(2, -1))
	require.ErrorIs(t, err, errs.ErrDimensionMismatch)

	scalar := must.M1(backends.New(backends.KindCore, "s", dims.Make()))
	require.Len(t, scalar.(backends.RawBuffer).Data(), 1)
}

func TestContract(t *testing.T) {
	a := must.M1(New(backends.Config{}, "A", dims.Make(2, 2)))
	b := must.M1(New(backends.Config{}, "B", dims.Make(2, 2)))
	c := must.M1(New(backends.Config{}, "C", dims.Make(2, 2)))
	require.NoError(t, a.WriteFlat([]float64{1, 2, 3, 4}))
	require.NoError(t, b.WriteFlat([]float64{5, 6, 7, 8}))
	require.NoError(t, c.Contract(a, b, indices.Split("ij"), indices.Split("ik"), indices.Split("kj"), 1, 0))
	require.Equal(t, []float64{19, 22, 43, 50}, c.(backends.RawBuffer).Data())

	// Contraction reading the destination itself: C = C * B.
	require.NoError(t, c.Contract(c, b, indices.Split("ij"), indices.Split("ik"), indices.Split("kj"), 1, 0))
	require.Equal(t, []float64{19*5 + 22*7, 19*6 + 22*8, 43*5 + 50*7, 43*6 + 50*8}, c.(backends.RawBuffer).Data())
}
