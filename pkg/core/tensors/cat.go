// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
)

// Cat concatenates the tensors along the given axis. All other axes must have the same extents.
//
// The result has the kind and name of the first tensor.
func Cat(tensors []Tensor, axis int) (Tensor, error) {
	if len(tensors) == 0 {
		return Tensor{}, errs.Errorf(errs.ErrDimensionMismatch, "Cat of no tensors")
	}
	for _, t := range tensors {
		if err := t.check(); err != nil {
			return Tensor{}, err
		}
	}
	first := tensors[0]
	if axis < 0 || axis >= first.Rank() {
		return Tensor{}, errs.Errorf(errs.ErrIndexMismatch, "Cat axis %d out of range for rank %d", axis, first.Rank())
	}
	catDims := first.Dims().Clone()
	catDims[axis] = 0
	for _, t := range tensors {
		d := t.Dims()
		if d.Rank() != first.Rank() {
			return Tensor{}, errs.Errorf(errs.ErrIndexMismatch, "Cat of tensors of different ranks: %q is %s, %q is %s",
				first.Name(), first.Dims(), t.Name(), d)
		}
		for ii, extent := range d {
			if ii != axis && extent != catDims[ii] {
				return Tensor{}, errs.Errorf(errs.ErrDimensionMismatch, "Cat along axis %d: %q is %s, %q is %s",
					axis, first.Name(), first.Dims(), t.Name(), d)
			}
		}
		catDims[axis] += d[axis]
	}

	result, err := Build(first.Kind(), first.Name(), catDims...)
	if err != nil {
		return Tensor{}, err
	}
	offset := 0
	for _, t := range tensors {
		src := dims.Full(t.Dims())
		dst := dims.Full(t.Dims())
		dst[axis] = dims.Range{Start: offset, End: offset + t.Dim(axis)}
		if err = result.Slice(t, dst, src, 1, 0); err != nil {
			_ = result.Close()
			return Tensor{}, err
		}
		offset += t.Dim(axis)
	}
	return result, nil
}

