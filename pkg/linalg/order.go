// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package linalg

// EigenvalueOrder is the order in which eigenvalues (and their eigenvectors) are returned.
type EigenvalueOrder int

//go:generate go tool enumer -type=EigenvalueOrder -trimprefix=Order -transform=snake -values -text order.go

const (
	OrderAscending EigenvalueOrder = iota
	OrderDescending
)
