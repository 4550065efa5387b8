// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package indices

import (
	"testing"

	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	require.Equal(t, Indices{"i", "j", "k"}, Split("ijk"))
	require.Equal(t, Indices{"p0", "q1"}, Split("p0, q1"))
	require.Equal(t, Indices{}, Split(""))
	require.Equal(t, "ijk", Split("ijk").String())
	require.Equal(t, "p0,q1", Split("p0,q1").String())
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(Split("ij"), 2))
	require.NoError(t, Validate(Split(""), 0))
	require.ErrorIs(t, Validate(Split("ijk"), 2), errs.ErrIndexMismatch)
	require.ErrorIs(t, Validate(Split("ii"), 2), errs.ErrIndexMismatch)
	require.ErrorIs(t, Validate(Split("a,,b"), 3), errs.ErrIndexMismatch)
}

func TestFreeAndContracted(t *testing.T) {
	contracted, free := FreeAndContracted(Split("ikl"), Split("ljk"))
	require.Equal(t, Indices{"k", "l"}, contracted)
	require.Equal(t, Indices{"i", "j"}, free)

	contracted, free = FreeAndContracted(Split("i"), Split("j"))
	require.Empty(t, contracted)
	require.Equal(t, Indices{"i", "j"}, free)
}

func TestPermutation(t *testing.T) {
	perm, err := Permutation(Split("ijk"), Split("kij"))
	require.NoError(t, err)
	require.Equal(t, []int{2, 0, 1}, perm)
	require.False(t, IsIdentity(perm))

	perm, err = Permutation(Split("ij"), Split("ij"))
	require.NoError(t, err)
	require.True(t, IsIdentity(perm))

	_, err = Permutation(Split("ij"), Split("ik"))
	require.ErrorIs(t, err, errs.ErrIndexMismatch)
	_, err = Permutation(Split("ij"), Split("ijk"))
	require.ErrorIs(t, err, errs.ErrIndexMismatch)
	_, err = Permutation(Split("ii"), Split("ii"))
	require.ErrorIs(t, err, errs.ErrIndexMismatch)
}

func TestBindings(t *testing.T) {
	b := Bindings{}
	require.NoError(t, b.Bind(Split("ik"), dims.Make(4, 5)))
	require.NoError(t, b.Bind(Split("kj"), dims.Make(5, 6)))
	require.Equal(t, "i=4,j=6,k=5", b.String())
	require.Equal(t, 24.0, b.Size("i", "j"))

	d, err := b.Dims(Split("ji"))
	require.NoError(t, err)
	require.Equal(t, dims.Make(6, 4), d)
	_, err = b.Dims(Split("x"))
	require.ErrorIs(t, err, errs.ErrIndexMismatch)

	// Same label, different extent.
	require.ErrorIs(t, b.Bind(Split("ij"), dims.Make(4, 7)), errs.ErrDimensionMismatch)
	require.ErrorIs(t, b.Bind(Split("ijk"), dims.Make(4, 7)), errs.ErrIndexMismatch)

	extent, err := DimByIndex(Split("ik"), dims.Make(4, 5), "k")
	require.NoError(t, err)
	require.Equal(t, 5, extent)
	_, err = DimByIndex(Split("ik"), dims.Make(4, 5), "j")
	require.ErrorIs(t, err, errs.ErrIndexMismatch)
}

func TestClassify(t *testing.T) {
	p, err := Classify(Split("bij"), Split("bik"), Split("bkj"))
	require.NoError(t, err)
	require.Equal(t, Indices{"b"}, p.Batch)
	require.Equal(t, Indices{"k"}, p.Contracted)
	require.Equal(t, Indices{"i"}, p.FreeA)
	require.Equal(t, Indices{"j"}, p.FreeB)
	require.Equal(t, Indices{"b", "i", "k"}, p.LayoutA())
	require.Equal(t, Indices{"b", "k", "j"}, p.LayoutB())
	require.Equal(t, Indices{"b", "i", "j"}, p.LayoutC())

	// Full contraction into a scalar.
	p, err = Classify(Split(""), Split("ij"), Split("ij"))
	require.NoError(t, err)
	require.Equal(t, Indices{"i", "j"}, p.Contracted)
	require.Empty(t, p.Batch)

	// Result index in neither operand.
	_, err = Classify(Split("ix"), Split("ik"), Split("k"))
	require.ErrorIs(t, err, errs.ErrIndexMismatch)
	// Index only in one operand and dropped from the result.
	_, err = Classify(Split("i"), Split("ikm"), Split("k"))
	require.ErrorIs(t, err, errs.ErrIndexMismatch)
	_, err = Classify(Split("i"), Split("ik"), Split("km"))
	require.ErrorIs(t, err, errs.ErrIndexMismatch)
	// Repeated labels.
	_, err = Classify(Split("ii"), Split("ik"), Split("ki"))
	require.ErrorIs(t, err, errs.ErrIndexMismatch)
}
