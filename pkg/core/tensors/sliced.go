// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"slices"

	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
)

// SlicedTensor is a rectangular window of a tensor, multiplied by a scalar factor.
// Created with Tensor.S.
type SlicedTensor struct {
	T      Tensor
	Ranges dims.IndexRange
	Factor float64

	err error
}

// S returns the window of t given by one half-open range per axis: e.g. A.S(dims.Range{0, 2}, dims.Range{1, 3}).
//
// If the ranges don't match the rank of t or are out of bounds, ErrIndexMismatch is returned when the sliced
// tensor is used.
func (t Tensor) S(ranges ...dims.Range) SlicedTensor {
	st := SlicedTensor{T: t, Ranges: slices.Clone(dims.IndexRange(ranges)), Factor: 1}
	if err := t.check(); err != nil {
		st.err = err
	} else if err = st.Ranges.ValidateWithin(t.Dims()); err != nil {
		st.err = err
	}
	return st
}

// Err returns the error in the ranges, if any.
func (st SlicedTensor) Err() error {
	if st.err != nil {
		return st.err
	}
	if err := st.T.check(); err != nil {
		return err
	}
	return st.Ranges.ValidateWithin(st.T.Dims())
}

// Scale returns the sliced tensor multiplied by s.
func (st SlicedTensor) Scale(s float64) SlicedTensor {
	st.Factor *= s
	return st
}

// Neg returns the sliced tensor with its factor negated.
func (st SlicedTensor) Neg() SlicedTensor { return st.Scale(-1) }

// Dims returns the extents of the window.
func (st SlicedTensor) Dims() dims.Dimension { return st.Ranges.Dims() }

// Assign copies the src window into the st window, which must have the same extents: st = src.
// The factor of st is ignored. Elements outside the window are not changed.
func (st SlicedTensor) Assign(src SlicedTensor) error { return st.assign(src, 1, 0) }

// AddAssign accumulates the src window into the st window: st += src.
func (st SlicedTensor) AddAssign(src SlicedTensor) error { return st.assign(src, 1, 1) }

// SubAssign subtracts the src window from the st window: st -= src.
func (st SlicedTensor) SubAssign(src SlicedTensor) error { return st.assign(src, -1, 1) }

func (st SlicedTensor) assign(src SlicedTensor, alpha, beta float64) error {
	if err := st.Err(); err != nil {
		return err
	}
	if err := src.Err(); err != nil {
		return err
	}
	if !st.Dims().Equal(src.Dims()) {
		return errs.Errorf(errs.ErrDimensionMismatch, "window %s of %q and window %s of %q have different extents",
			st.Ranges, st.T.Name(), src.Ranges, src.T.Name())
	}
	return st.T.Slice(src.T, st.Ranges, src.Ranges, alpha*src.Factor, beta)
}
