// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"slices"

	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
	"k8s.io/klog/v2"
)

// sameDims checks that both tensors are valid and have the same dimensions.
func (t Tensor) sameDims(op string, other Tensor) error {
	if err := t.check(); err != nil {
		return err
	}
	if err := other.check(); err != nil {
		return err
	}
	if !t.Dims().Equal(other.Dims()) {
		return errs.Errorf(errs.ErrDimensionMismatch, "%s: tensor %q has dimensions %s, but %q has %s",
			op, t.Name(), t.Dims(), other.Name(), other.Dims())
	}
	return nil
}

// Contract sets t = alpha * a * b + beta * t, where t, a and b are labeled by tInds, aInds and bInds.
//
// Labels in a and b but not in t are summed over (contracted), labels in a, b and t are iterated together
// (batch, or Hadamard, labels), and labels in only one of a or b must be in t.
//
// It returns ErrIndexMismatch if an index list doesn't match the rank of its tensor or repeats a label,
// if a label of t is in neither a nor b, or if a label is in only one of a or b but not in t. It returns
// ErrDimensionMismatch if a label is bound to different extents. Nothing is written if it fails.
func (t Tensor) Contract(a, b Tensor, tInds, aInds, bInds indices.Indices, alpha, beta float64) error {
	for _, x := range []Tensor{t, a, b} {
		if err := x.check(); err != nil {
			return err
		}
	}
	if err := indices.Validate(tInds, t.Rank()); err != nil {
		return err
	}
	if err := indices.Validate(aInds, a.Rank()); err != nil {
		return err
	}
	if err := indices.Validate(bInds, b.Rank()); err != nil {
		return err
	}
	if _, err := indices.Classify(tInds, aInds, bInds); err != nil {
		return err
	}
	bindings := indices.Bindings{}
	for _, op := range []struct {
		ix indices.Indices
		d  dims.Dimension
	}{{aInds, a.Dims()}, {bInds, b.Dims()}, {tInds, t.Dims()}} {
		if err := bindings.Bind(op.ix, op.d); err != nil {
			return err
		}
	}
	if klog.V(2).Enabled() {
		klog.Infof("contract: %s(%q) = %g * %s(%q) * %s(%q) + %g * %s",
			t.Name(), tInds, alpha, a.Name(), aInds, b.Name(), bInds, beta, t.Name())
	}
	return t.storage.Contract(a.storage, b.storage, tInds, aInds, bInds, alpha, beta)
}

// Permute sets t = alpha * a + beta * t, where the axes of a, labeled by aInds, are permuted to the order of
// tInds.
//
// It returns ErrIndexMismatch if tInds and aInds are not the same set of labels, or don't match the ranks
// of their tensors, and ErrDimensionMismatch if the extents of a label differ.
func (t Tensor) Permute(a Tensor, tInds, aInds indices.Indices, alpha, beta float64) error {
	if err := t.check(); err != nil {
		return err
	}
	if err := a.check(); err != nil {
		return err
	}
	if err := indices.Validate(tInds, t.Rank()); err != nil {
		return err
	}
	if err := indices.Validate(aInds, a.Rank()); err != nil {
		return err
	}
	if !tInds.SameSet(aInds) {
		return errs.Errorf(errs.ErrIndexMismatch, "permute: indices %q of %q are not a permutation of %q of %q",
			tInds, t.Name(), aInds, a.Name())
	}
	bindings := indices.Bindings{}
	if err := bindings.Bind(aInds, a.Dims()); err != nil {
		return err
	}
	if err := bindings.Bind(tInds, t.Dims()); err != nil {
		return err
	}
	if klog.V(2).Enabled() {
		klog.Infof("permute: %s(%q) = %g * %s(%q) + %g * %s", t.Name(), tInds, alpha, a.Name(), aInds, beta, t.Name())
	}
	return t.storage.Permute(a.storage, tInds, aInds, alpha, beta)
}

// Slice sets t[tRange] = alpha * a[aRange] + beta * t[tRange]. Elements of t outside tRange are not changed.
//
// It returns ErrIndexMismatch if a range list doesn't match the rank of its tensor or a range is out of
// bounds, and ErrDimensionMismatch if the windows have different extents.
func (t Tensor) Slice(a Tensor, tRange, aRange dims.IndexRange, alpha, beta float64) error {
	if err := t.check(); err != nil {
		return err
	}
	if err := a.check(); err != nil {
		return err
	}
	if err := tRange.ValidateWithin(t.Dims()); err != nil {
		return err
	}
	if err := aRange.ValidateWithin(a.Dims()); err != nil {
		return err
	}
	if !tRange.Dims().Equal(aRange.Dims()) {
		return errs.Errorf(errs.ErrDimensionMismatch, "slice: window %s of %q and window %s of %q have different extents",
			tRange, t.Name(), aRange, a.Name())
	}
	if klog.V(2).Enabled() {
		klog.Infof("slice: %s%s = %g * %s%s + %g * %s", t.Name(), tRange, alpha, a.Name(), aRange, beta, t.Name())
	}
	return t.storage.Slice(a.storage, tRange, aRange, alpha, beta)
}

// ScaleAndAdd sets t += alpha * x.
func (t Tensor) ScaleAndAdd(alpha float64, x Tensor) error {
	if err := t.sameDims("ScaleAndAdd", x); err != nil {
		return err
	}
	return t.storage.ScaleAndAdd(alpha, x.storage)
}

// PointwiseMultiply sets t *= x, element-wise.
func (t Tensor) PointwiseMultiply(x Tensor) error {
	if err := t.sameDims("PointwiseMultiply", x); err != nil {
		return err
	}
	return t.storage.PointwiseMultiply(x.storage)
}

// PointwiseDivide sets t /= x, element-wise. Elements divided by zero become ±Inf or NaN.
func (t Tensor) PointwiseDivide(x Tensor) error {
	if err := t.sameDims("PointwiseDivide", x); err != nil {
		return err
	}
	return t.storage.PointwiseDivide(x.storage)
}

// Dot returns the sum of the element-wise product of t and x.
func (t Tensor) Dot(x Tensor) (float64, error) {
	if err := t.sameDims("Dot", x); err != nil {
		return 0, err
	}
	return t.storage.Dot(x.storage)
}

// Norm returns the p-norm of all elements: (sum |t_i|^power)^(1/power). If power is 0 it returns the
// maximum absolute value. The usual norm is Norm(2).
func (t Tensor) Norm(power float64) (float64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	if power < 0 {
		return 0, errs.Errorf(errs.ErrUnsupportedOperation, "norm of negative power %g", power)
	}
	return t.storage.Norm(power)
}

// Zero sets all elements to 0.
func (t Tensor) Zero() error {
	if err := t.check(); err != nil {
		return err
	}
	return t.storage.Zero()
}

// Scale multiplies all elements by alpha.
func (t Tensor) Scale(alpha float64) error {
	if err := t.check(); err != nil {
		return err
	}
	return t.storage.Scale(alpha)
}

// Equal returns whether both tensors have exactly the same dimensions and values. Name and kind are
// ignored. Invalid tensors are only equal to other invalid tensors.
func (t Tensor) Equal(other Tensor) bool {
	if !t.IsValid() || !other.IsValid() {
		return t.IsValid() == other.IsValid()
	}
	if !t.Dims().Equal(other.Dims()) {
		return false
	}
	if t.Same(other) {
		return true
	}
	tFlat, err := t.Flat()
	if err != nil {
		return false
	}
	otherFlat, err := other.Flat()
	if err != nil {
		return false
	}
	return slices.Equal(tFlat, otherFlat)
}
