// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dims defines the dimension vector of a tensor and index ranges over it.
//
// Tensors are always laid out in "row-major" order: the right-most axis varies the fastest.
package dims

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/gomlx/tensorexpr/pkg/core/errs"
)

// Dimension is the ordered list of extents, one per axis. A Dimension of length 0 is a scalar.
type Dimension []int

// Make returns a Dimension with the given extents, cloned from the given slice.
func Make(extents ...int) Dimension {
	return slices.Clone(Dimension(extents))
}

// Rank is the number of axes.
func (d Dimension) Rank() int { return len(d) }

// Size is the number of elements, the product of all extents. A scalar has size 1.
func (d Dimension) Size() int {
	size := 1
	for _, dim := range d {
		size *= dim
	}
	return size
}

// Clone returns a copy that doesn't share the underlying array.
func (d Dimension) Clone() Dimension { return slices.Clone(d) }

// Equal returns whether both dimensions have the same rank and extents.
func (d Dimension) Equal(other Dimension) bool { return slices.Equal(d, other) }

// Validate returns an ErrDimensionMismatch if any extent is negative.
func (d Dimension) Validate() error {
	for axis, dim := range d {
		if dim < 0 {
			return errs.Errorf(errs.ErrDimensionMismatch, "negative extent %d for axis %d in %s", dim, axis, d)
		}
	}
	return nil
}

// String implements fmt.Stringer. E.g.: "(4, 5, 6)".
func (d Dimension) String() string {
	parts := make([]string, len(d))
	for ii, dim := range d {
		parts[ii] = fmt.Sprintf("%d", dim)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Strides returns the strides for each axis, in number of elements, for the row-major layout.
func (d Dimension) Strides() []int {
	rank := len(d)
	if rank == 0 {
		return nil
	}
	strides := make([]int, rank)
	stride := 1
	for axis := rank - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= d[axis]
	}
	return strides
}

// FlatIndex converts the per-axis index into the position in the flat row-major buffer.
// It returns ErrIndexMismatch if the number of indices differ from the rank, or if an index is out of bounds.
func (d Dimension) FlatIndex(index []int) (int, error) {
	if len(index) != len(d) {
		return 0, errs.Errorf(errs.ErrIndexMismatch, "%d indices given for tensor of rank %d", len(index), len(d))
	}
	flat := 0
	for axis, idx := range index {
		if idx < 0 || idx >= d[axis] {
			return 0, errs.Errorf(errs.ErrIndexMismatch, "index %d out of bounds for axis %d of %s", idx, axis, d)
		}
		flat = flat*d[axis] + idx
	}
	return flat, nil
}

// Iter iterates sequentially (row-major) over all indices of the dimension.
//
// It yields the flat position and the per-axis indices. The yielded slice is owned by the iterator
// and reused: don't change it or keep it after the loop step.
func (d Dimension) Iter() iter.Seq2[int, []int] {
	return func(yield func(int, []int) bool) {
		indices := make([]int, len(d))
		size := d.Size()
		for flat := 0; flat < size; flat++ {
			if !yield(flat, indices) {
				return
			}
			for axis := len(d) - 1; axis >= 0; axis-- {
				indices[axis]++
				if indices[axis] < d[axis] {
					break
				}
				indices[axis] = 0
			}
		}
	}
}
