// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dims

import (
	"fmt"
	"strings"

	"github.com/gomlx/tensorexpr/pkg/core/errs"
)

// Range is a half-open window [Start, End) over one axis.
type Range struct {
	Start, End int
}

// Len is the number of positions covered by the range.
func (r Range) Len() int { return r.End - r.Start }

// IndexRange holds one Range per axis of a tensor.
type IndexRange []Range

// Full returns the IndexRange covering the whole of d.
func Full(d Dimension) IndexRange {
	ranges := make(IndexRange, len(d))
	for axis, dim := range d {
		ranges[axis] = Range{0, dim}
	}
	return ranges
}

// Dims returns the extents of the window.
func (ir IndexRange) Dims() Dimension {
	d := make(Dimension, len(ir))
	for axis, r := range ir {
		d[axis] = r.Len()
	}
	return d
}

// String implements fmt.Stringer. E.g.: "{[0,2), [1,4)}".
func (ir IndexRange) String() string {
	parts := make([]string, len(ir))
	for axis, r := range ir {
		parts[axis] = fmt.Sprintf("[%d,%d)", r.Start, r.End)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ValidateWithin checks that there is one range per axis of d, and that each range lies within [0, d[axis]].
func (ir IndexRange) ValidateWithin(d Dimension) error {
	if len(ir) != len(d) {
		return errs.Errorf(errs.ErrIndexMismatch, "index range %s has %d ranges for tensor of rank %d", ir, len(ir), len(d))
	}
	for axis, r := range ir {
		if r.Start < 0 || r.End < r.Start || r.End > d[axis] {
			return errs.Errorf(errs.ErrIndexMismatch, "range [%d,%d) for axis %d not within [0,%d]",
				r.Start, r.End, axis, d[axis])
		}
	}
	return nil
}
