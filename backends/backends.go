// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the interface a storage engine must implement to hold tensors driven
// by the expression evaluator, and a registry of the available engines, one per Kind.
//
// To use the default engines (core, disk and distributed) include:
//
//	import _ "github.com/gomlx/tensorexpr/backends/default"
//
// The evaluator only depends on the Storage interface. Capabilities that only some engines offer
// (like RawBuffer) are exposed as separate interfaces, checked with a type assertion.
package backends

import (
	"github.com/gomlx/tensorexpr/internal/workerspool"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
	"k8s.io/klog/v2"
)

// Storage holds the data of one tensor, and implements the primitive operations on it.
//
// The receiver is always the destination ("C") of the operation. Operands may be of any Kind:
// engines read foreign operands through Flat.
//
// Operations are synchronous: they return only after all the work (including any parallel work)
// is finished. They are not safe for concurrent writes to the same Storage.
//
// Validation of indices and dimensions is done by the caller (the tensors package) before calling
// a Storage: engines may assume consistent arguments.
type Storage interface {
	// Kind of the storage engine.
	Kind() Kind

	// Name is for diagnostics only.
	Name() string

	// Dims returns the dimensions of the tensor. It must not be modified.
	Dims() dims.Dimension

	// Contract computes C = alpha * A * B + beta * C, where labels shared by aInds and bInds and not
	// in cInds are summed over, labels in all three are batch labels, and the remaining labels are kept.
	Contract(a, b Storage, cInds, aInds, bInds indices.Indices, alpha, beta float64) error

	// Permute computes C = alpha * permute(A) + beta * C. cInds and aInds are the same set of labels.
	Permute(a Storage, cInds, aInds indices.Indices, alpha, beta float64) error

	// Slice computes C[cRange] = alpha * A[aRange] + beta * C[cRange]. Both windows have the same extents.
	Slice(a Storage, cRange, aRange dims.IndexRange, alpha, beta float64) error

	// ScaleAndAdd computes C += alpha * X.
	ScaleAndAdd(alpha float64, x Storage) error

	// PointwiseMultiply computes C *= X element-wise.
	PointwiseMultiply(x Storage) error

	// PointwiseDivide computes C /= X element-wise.
	PointwiseDivide(x Storage) error

	// Dot returns the sum of the element-wise product of C and X.
	Dot(x Storage) (float64, error)

	// Norm returns the p-norm of the flattened tensor, or the maximum absolute value if power is 0.
	Norm(power float64) (float64, error)

	// Zero sets all elements to 0.
	Zero() error

	// Scale computes C *= alpha.
	Scale(alpha float64) error

	// At returns one element.
	At(index []int) (float64, error)

	// Set one element.
	Set(index []int, value float64) error

	// ReadFlat copies all the elements in row-major order into dst, which has Dims().Size() elements.
	ReadFlat(dst []float64) error

	// WriteFlat overwrites all elements from src, in row-major order.
	WriteFlat(src []float64) error

	// Close releases the resources of the storage immediately. The Storage must not be used afterward.
	// Storages that are never closed are released when garbage collected.
	Close() error
}

// FlatViewer is implemented by engines that hold their data as one contiguous row-major buffer, which
// other engines and kernels may read (and the owner may write) without a copy.
type FlatViewer interface {
	FlatView() []float64
}

// RawBuffer is implemented by engines that expose their buffer to end users: only KindCore.
type RawBuffer interface {
	Data() []float64
}

// Flat returns the row-major contents of s: a view if s implements FlatViewer, a copy otherwise.
// The returned slice must not be modified.
func Flat(s Storage) ([]float64, error) {
	if viewer, ok := s.(FlatViewer); ok {
		return viewer.FlatView(), nil
	}
	flat := make([]float64, s.Dims().Size())
	if err := s.ReadFlat(flat); err != nil {
		return nil, err
	}
	return flat, nil
}

// Constructor creates a zero-initialized Storage with the given name and dimensions.
// The config holds the options parsed from the backend configuration (see ParseConfig).
type Constructor func(config Config, name string, d dims.Dimension) (Storage, error)

var registeredConstructors = make(map[Kind]Constructor)

// Register the constructor for the given kind. Usually called by an engine package init().
func Register(kind Kind, constructor Constructor) {
	registeredConstructors[kind] = constructor
}

// IsRegistered returns whether there is an engine for the given kind.
func IsRegistered(kind Kind) bool {
	_, found := registeredConstructors[kind]
	return found
}

// New creates a zero-initialized Storage of the given kind.
//
// KindAgnostic resolves to the kind in the current configuration (see CurrentConfig). The options of
// the configuration are passed to the constructor only if the configured kind is the one being built.
func New(kind Kind, name string, d dims.Dimension) (Storage, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	config, err := CurrentConfig()
	if err != nil {
		return nil, err
	}
	if kind == KindAgnostic {
		kind = config.Kind
	} else if kind != config.Kind {
		config = Config{Kind: kind}
	}
	constructor, found := registeredConstructors[kind]
	if !found {
		return nil, errs.Errorf(errs.ErrUnsupportedOperation,
			"no backend registered for kind %q -- maybe import _ \"github.com/gomlx/tensorexpr/backends/default\"?", kind)
	}
	if klog.V(3).Enabled() {
		klog.Infof("backends: new %s tensor %q%s", kind, name, d)
	}
	return constructor(config, name, d)
}

var workers = workerspool.New()

// Workers returns the pool of goroutines shared by the engines to parallelize their kernels.
func Workers() *workerspool.Pool { return workers }

// SetParallelism sets the soft limit of goroutines used by the kernels. 0 disables parallelism, -1 removes
// the limit.
func SetParallelism(n int) {
	workers.SetMaxParallelism(n)
}
