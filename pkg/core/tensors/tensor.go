// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements the Tensor handle and the labeled-tensor expression language used to write
// tensor contractions in Einstein notation:
//
//	C := must.M1(tensors.Build(backends.KindCore, "C", 4, 6))
//	err := C.L("ij").Assign(A.L("ik").Mul(B.L("kj")))          // C = A * B
//	err = D.L("ij").AddAssign(A.L("ik").MulSum(X.L("kj").Plus(Y.L("kj"))))  // D += A * (X + Y)
//
// Expressions are lazy: they are only evaluated when assigned to a destination with Assign, AddAssign or
// SubAssign (or converted to a number with Value). Products of more than two tensors are evaluated as a
// sequence of pairwise contractions, in the order chosen by the contraction package.
//
// A Tensor is a handle: copying a Tensor value copies the reference, not the data. The data is held by a
// backends.Storage, whose engine is selected by the tensor's backends.Kind when it is built. Tensors of
// different kinds can be mixed freely in the same expression.
//
// Errors are returned, never panicked, and can be matched with errors.Is against the kinds in package errs.
package tensors

import (
	"github.com/gomlx/tensorexpr/backends"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"k8s.io/klog/v2"
)

// Tensor is a handle to a multidimensional array of float64, stored in row-major order by a storage engine.
//
// The zero value is not a valid tensor: use Build, BuildLike or Clone to create one.
// Tensors are not safe for concurrent writes.
type Tensor struct {
	storage backends.Storage
}

// Build creates a zero-initialized tensor of the given kind, with the given dimensions.
// KindAgnostic selects the configured default kind (see backends.CurrentConfig).
//
// A tensor with no dimensions is a scalar. It returns ErrDimensionMismatch for negative dimensions.
func Build(kind backends.Kind, name string, dimensions ...int) (Tensor, error) {
	s, err := backends.New(kind, name, dims.Make(dimensions...))
	if err != nil {
		return Tensor{}, err
	}
	return Tensor{storage: s}, nil
}

// BuildLike creates a zero-initialized tensor with the same dimensions and name as other.
// KindAgnostic selects the same kind as other.
func BuildLike(kind backends.Kind, other Tensor) (Tensor, error) {
	if err := other.check(); err != nil {
		return Tensor{}, err
	}
	if kind == backends.KindAgnostic {
		kind = other.Kind()
	}
	return Build(kind, other.Name(), other.Dims()...)
}

// FromStorage wraps a storage created directly with a backend.
func FromStorage(s backends.Storage) Tensor {
	return Tensor{storage: s}
}

// Storage returns the storage holding the tensor data, or nil for an invalid tensor.
func (t Tensor) Storage() backends.Storage { return t.storage }

// IsValid returns whether the tensor was built.
func (t Tensor) IsValid() bool { return t.storage != nil }

func (t Tensor) check() error {
	if t.storage == nil {
		return errs.Errorf(errs.ErrBackendFailure, "tensor not built")
	}
	return nil
}

// Same returns whether both handles refer to the same storage.
func (t Tensor) Same(other Tensor) bool {
	return t.storage != nil && t.storage == other.storage
}

// Kind of storage of the tensor.
func (t Tensor) Kind() backends.Kind {
	if t.storage == nil {
		return backends.KindAgnostic
	}
	return t.storage.Kind()
}

// Name of the tensor, used only for diagnostics.
func (t Tensor) Name() string {
	if t.storage == nil {
		return "<invalid>"
	}
	return t.storage.Name()
}

// Dims returns the dimensions of the tensor. It must not be modified.
func (t Tensor) Dims() dims.Dimension {
	if t.storage == nil {
		return nil
	}
	return t.storage.Dims()
}

// Dim returns the extent of the given axis.
func (t Tensor) Dim(axis int) int { return t.Dims()[axis] }

// Rank is the number of axes.
func (t Tensor) Rank() int { return t.Dims().Rank() }

// Numel is the number of elements. A scalar has 1 element.
func (t Tensor) Numel() int { return t.Dims().Size() }

// Clone returns a new tensor of the given kind with a copy of the data. KindAgnostic keeps t's kind.
func (t Tensor) Clone(kind backends.Kind) (Tensor, error) {
	clone, err := BuildLike(kind, t)
	if err != nil {
		return Tensor{}, err
	}
	if err = clone.Copy(t, 1); err != nil {
		_ = clone.Close()
		return Tensor{}, err
	}
	return clone, nil
}

// Copy sets t = scale * other. Both must have the same dimensions, but can be of different kinds.
func (t Tensor) Copy(other Tensor, scale float64) error {
	if err := t.sameDims("Copy", other); err != nil {
		return err
	}
	if t.Same(other) {
		return t.storage.Scale(scale)
	}
	flat, err := backends.Flat(other.storage)
	if err != nil {
		return err
	}
	if err = t.storage.WriteFlat(flat); err != nil {
		return err
	}
	if scale != 1 {
		return t.storage.Scale(scale)
	}
	return nil
}

// Data returns the underlying row-major buffer of an in-core tensor: the right-most axis varies the fastest.
// Changes to the buffer change the tensor.
//
// It returns ErrUnsupportedOperation for tensors of other kinds.
func (t Tensor) Data() ([]float64, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	raw, ok := t.storage.(backends.RawBuffer)
	if !ok {
		return nil, errs.Errorf(errs.ErrUnsupportedOperation, "raw data access not available for %s tensor %q",
			t.Kind(), t.Name())
	}
	return raw.Data(), nil
}

// Flat returns a copy of all elements in row-major order. It works for any kind of tensor.
func (t Tensor) Flat() ([]float64, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	flat := make([]float64, t.Numel())
	if err := t.storage.ReadFlat(flat); err != nil {
		return nil, err
	}
	return flat, nil
}

// SetFlat sets all elements from values, in row-major order. It works for any kind of tensor.
func (t Tensor) SetFlat(values []float64) error {
	if err := t.check(); err != nil {
		return err
	}
	if len(values) != t.Numel() {
		return errs.Errorf(errs.ErrDimensionMismatch, "%d values given for tensor %q of dimensions %s",
			len(values), t.Name(), t.Dims())
	}
	return t.storage.WriteFlat(values)
}

// At returns the element at the given index, one value per axis.
func (t Tensor) At(index ...int) (float64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	return t.storage.At(index)
}

// Set the element at the given index, one value per axis.
func (t Tensor) Set(value float64, index ...int) error {
	if err := t.check(); err != nil {
		return err
	}
	return t.storage.Set(index, value)
}

// Close releases the storage of the tensor immediately. Any handle to the same storage becomes unusable.
// Tensors that are not closed are released when garbage collected.
func (t Tensor) Close() error {
	if t.storage == nil {
		return nil
	}
	return t.storage.Close()
}

// closeScratch releases a temporary tensor, logging errors since they can't be returned.
func closeScratch(t Tensor) {
	if err := t.Close(); err != nil {
		klog.Errorf("failed to release scratch tensor %q: %+v", t.Name(), err)
	}
}
