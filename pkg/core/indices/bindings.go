// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package indices

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
)

// Bindings maps index labels to the extent they denote. The same label used in different operands
// of an expression must always denote the same extent.
type Bindings map[string]int

// String returns a canonical representation, with labels sorted. E.g.: "i=4,j=6,k=5".
func (b Bindings) String() string {
	labels := make([]string, 0, len(b))
	for label := range b {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	parts := make([]string, len(labels))
	for ii, label := range labels {
		parts[ii] = fmt.Sprintf("%s=%d", label, b[label])
	}
	return strings.Join(parts, ",")
}

// Bind records the extents of a tensor with dimensions d labeled by ix.
// It returns ErrIndexMismatch if the number of labels differ from the rank, and ErrDimensionMismatch
// if a label was already bound to a different extent.
func (b Bindings) Bind(ix Indices, d dims.Dimension) error {
	if len(ix) != len(d) {
		return errs.Errorf(errs.ErrIndexMismatch, "%d indices %q given for tensor of dimensions %s", len(ix), ix, d)
	}
	for axis, label := range ix {
		if existing, found := b[label]; found && existing != d[axis] {
			return errs.Errorf(errs.ErrDimensionMismatch, "index %q bound to extent %d and to extent %d",
				label, existing, d[axis])
		}
		b[label] = d[axis]
	}
	return nil
}

// Dims returns the dimension of a tensor labeled with ix. All labels must be bound, otherwise
// ErrIndexMismatch is returned.
func (b Bindings) Dims(ix Indices) (dims.Dimension, error) {
	d := make(dims.Dimension, len(ix))
	for axis, label := range ix {
		extent, found := b[label]
		if !found {
			return nil, errs.Errorf(errs.ErrIndexMismatch, "index %q has no known extent", label)
		}
		d[axis] = extent
	}
	return d, nil
}

// Size returns the product of the extents of the given labels, as float64 since it is used for cost
// estimates that may overflow int. Unbound labels count as 1.
func (b Bindings) Size(labels ...string) float64 {
	size := 1.0
	for _, label := range labels {
		if extent, found := b[label]; found {
			size *= float64(extent)
		}
	}
	return size
}

// DimByIndex returns the extent bound to label in a tensor of dimensions d labeled by ix.
func DimByIndex(ix Indices, d dims.Dimension, label string) (int, error) {
	if len(ix) != len(d) {
		return 0, errs.Errorf(errs.ErrIndexMismatch, "%d indices %q given for tensor of dimensions %s", len(ix), ix, d)
	}
	pos := ix.Position(label)
	if pos < 0 {
		return 0, errs.Errorf(errs.ErrIndexMismatch, "index %q not in %q", label, ix)
	}
	return d[pos], nil
}
