// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

// Kind of storage behind a tensor.
type Kind int

//go:generate go tool enumer -type=Kind -trimprefix=Kind -transform=snake -values -text kind.go

const (
	// KindAgnostic lets the library choose: it resolves to the kind configured in TENSOREXPR_BACKEND,
	// or to KindCore if nothing is configured.
	KindAgnostic Kind = iota

	// KindCore tensors live in memory, as a flat row-major []float64.
	KindCore

	// KindDisk tensors live in a memory-mapped scratch file.
	KindDisk

	// KindDistributed tensors are sharded along their leading axis over a mesh of ranks.
	KindDistributed
)
