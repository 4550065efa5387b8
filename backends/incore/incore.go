// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package incore implements the KindCore storage engine: tensors held in memory as one flat row-major
// []float64. It is the only engine that gives users direct access to the raw buffer.
//
// It registers itself in the backends registry when imported.
package incore

import (
	"github.com/gomlx/tensorexpr/backends"
	"github.com/gomlx/tensorexpr/backends/kernels"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
)

func init() {
	backends.Register(backends.KindCore, New)
}

// Storage of an in-core tensor.
type Storage struct {
	*kernels.Buffer
}

var (
	_ backends.Storage   = (*Storage)(nil)
	_ backends.RawBuffer = (*Storage)(nil)
)

// New creates a zero-initialized in-core storage. It implements backends.Constructor: the
// configuration has no options for this engine.
func New(_ backends.Config, name string, d dims.Dimension) (backends.Storage, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Storage{kernels.NewBuffer(backends.KindCore, name, d, make([]float64, d.Size()))}, nil
}

// Data implements backends.RawBuffer: it returns the underlying row-major buffer, changes to it
// change the tensor.
func (s *Storage) Data() []float64 { return s.FlatView() }
