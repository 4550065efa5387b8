// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"slices"

	"github.com/gomlx/tensorexpr/backends"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
)

// Buffer implements backends.Storage over one contiguous row-major []float64.
//
// Storage engines embed it and provide the memory: a Go slice for the in-core engine, a memory-mapped
// file for the disk engine. Engines that own external resources override Close.
type Buffer struct {
	kind backends.Kind
	name string
	dims dims.Dimension
	flat []float64
}

var (
	_ backends.Storage    = (*Buffer)(nil)
	_ backends.FlatViewer = (*Buffer)(nil)
)

// NewBuffer wraps flat, which must have d.Size() elements, as a storage of the given kind.
func NewBuffer(kind backends.Kind, name string, d dims.Dimension, flat []float64) *Buffer {
	return &Buffer{kind: kind, name: name, dims: d.Clone(), flat: flat}
}

// Kind implements backends.Storage.
func (b *Buffer) Kind() backends.Kind { return b.kind }

// Name implements backends.Storage.
func (b *Buffer) Name() string { return b.name }

// Dims implements backends.Storage.
func (b *Buffer) Dims() dims.Dimension { return b.dims }

// FlatView implements backends.FlatViewer.
func (b *Buffer) FlatView() []float64 { return b.flat }

// Release drops the reference to the memory, after which any use of the Buffer fails.
func (b *Buffer) Release() { b.flat = nil }

func (b *Buffer) checkLive() error {
	if b.flat == nil && b.dims.Size() > 0 {
		return errs.Errorf(errs.ErrBackendFailure, "%s tensor %q used after Close", b.kind, b.name)
	}
	return nil
}

// operand returns the flat contents of x, copied if they share memory with b, so that an operation
// can write b while reading x.
func (b *Buffer) operand(x backends.Storage) ([]float64, error) {
	if err := b.checkLive(); err != nil {
		return nil, err
	}
	flat, err := backends.Flat(x)
	if err != nil {
		return nil, err
	}
	if len(flat) > 0 && len(b.flat) > 0 && &flat[0] == &b.flat[0] {
		return slices.Clone(flat), nil
	}
	return flat, nil
}

func (b *Buffer) sameSize(x backends.Storage) error {
	if !x.Dims().Equal(b.dims) {
		return errs.Errorf(errs.ErrDimensionMismatch, "%s tensor %q has dimensions %s, operand %q has %s",
			b.kind, b.name, b.dims, x.Name(), x.Dims())
	}
	return nil
}

// Contract implements backends.Storage.
func (b *Buffer) Contract(x, y backends.Storage, cInds, xInds, yInds indices.Indices, alpha, beta float64) error {
	xFlat, err := b.operand(x)
	if err != nil {
		return err
	}
	yFlat, err := b.operand(y)
	if err != nil {
		return err
	}
	return Contract(backends.Workers(),
		Operand{Flat: b.flat, Dims: b.dims, Indices: cInds},
		Operand{Flat: xFlat, Dims: x.Dims(), Indices: xInds},
		Operand{Flat: yFlat, Dims: y.Dims(), Indices: yInds},
		alpha, beta)
}

// Permute implements backends.Storage.
func (b *Buffer) Permute(x backends.Storage, cInds, xInds indices.Indices, alpha, beta float64) error {
	perm, err := indices.Permutation(xInds, cInds)
	if err != nil {
		return err
	}
	xFlat, err := b.operand(x)
	if err != nil {
		return err
	}
	Permute(backends.Workers(), b.flat, b.dims, xFlat, perm, alpha, beta)
	return nil
}

// Slice implements backends.Storage.
func (b *Buffer) Slice(x backends.Storage, cRange, xRange dims.IndexRange, alpha, beta float64) error {
	xFlat, err := b.operand(x)
	if err != nil {
		return err
	}
	Slice(backends.Workers(), b.flat, b.dims, cRange, xFlat, x.Dims(), xRange, alpha, beta)
	return nil
}

// ScaleAndAdd implements backends.Storage.
func (b *Buffer) ScaleAndAdd(alpha float64, x backends.Storage) error {
	if err := b.sameSize(x); err != nil {
		return err
	}
	xFlat, err := b.operand(x)
	if err != nil {
		return err
	}
	ScaleAndAdd(alpha, xFlat, b.flat)
	return nil
}

// PointwiseMultiply implements backends.Storage.
func (b *Buffer) PointwiseMultiply(x backends.Storage) error {
	if err := b.sameSize(x); err != nil {
		return err
	}
	xFlat, err := b.operand(x)
	if err != nil {
		return err
	}
	PointwiseMultiply(backends.Workers(), xFlat, b.flat)
	return nil
}

// PointwiseDivide implements backends.Storage.
func (b *Buffer) PointwiseDivide(x backends.Storage) error {
	if err := b.sameSize(x); err != nil {
		return err
	}
	xFlat, err := b.operand(x)
	if err != nil {
		return err
	}
	PointwiseDivide(backends.Workers(), xFlat, b.flat)
	return nil
}

// Dot implements backends.Storage.
func (b *Buffer) Dot(x backends.Storage) (float64, error) {
	if err := b.sameSize(x); err != nil {
		return 0, err
	}
	xFlat, err := b.operand(x)
	if err != nil {
		return 0, err
	}
	return Dot(b.flat, xFlat), nil
}

// Norm implements backends.Storage.
func (b *Buffer) Norm(power float64) (float64, error) {
	if err := b.checkLive(); err != nil {
		return 0, err
	}
	return Norm(b.flat, power), nil
}

// Zero implements backends.Storage.
func (b *Buffer) Zero() error {
	if err := b.checkLive(); err != nil {
		return err
	}
	clear(b.flat)
	return nil
}

// Scale implements backends.Storage.
func (b *Buffer) Scale(alpha float64) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	Scale(alpha, b.flat)
	return nil
}

// At implements backends.Storage.
func (b *Buffer) At(index []int) (float64, error) {
	if err := b.checkLive(); err != nil {
		return 0, err
	}
	pos, err := b.dims.FlatIndex(index)
	if err != nil {
		return 0, err
	}
	return b.flat[pos], nil
}

// Set implements backends.Storage.
func (b *Buffer) Set(index []int, value float64) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	pos, err := b.dims.FlatIndex(index)
	if err != nil {
		return err
	}
	b.flat[pos] = value
	return nil
}

// ReadFlat implements backends.Storage.
func (b *Buffer) ReadFlat(dst []float64) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	if len(dst) != len(b.flat) {
		return errs.Errorf(errs.ErrDimensionMismatch, "reading %d elements from %s tensor %q of dimensions %s",
			len(dst), b.kind, b.name, b.dims)
	}
	copy(dst, b.flat)
	return nil
}

// WriteFlat implements backends.Storage.
func (b *Buffer) WriteFlat(src []float64) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	if len(src) != len(b.flat) {
		return errs.Errorf(errs.ErrDimensionMismatch, "writing %d elements to %s tensor %q of dimensions %s",
			len(src), b.kind, b.name, b.dims)
	}
	copy(b.flat, src)
	return nil
}

// Close implements backends.Storage. It only drops the reference to the memory.
func (b *Buffer) Close() error {
	b.Release()
	return nil
}
