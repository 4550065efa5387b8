// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package errs defines the kinds of errors returned by tensorexpr.
//
// Errors are never returned as the bare sentinels: they are created with Errorf, which attaches a message
// and a stack trace (see github.com/pkg/errors) to the kind. Use errors.Is to match the kind:
//
//	err := C.L("ij").Assign(A.L("ik").Mul(B.L("kj")))
//	if errors.Is(err, errs.ErrDimensionMismatch) { ... }
package errs

import (
	"github.com/pkg/errors"
)

var (
	// ErrDimensionMismatch is returned when operand extents disagree for a shared index label, or when
	// the destination dimensions don't match the computed result.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrIndexMismatch is returned when index lists are inconsistent: wrong rank, duplicate labels,
	// non-bijective permutations, or free indices left where a scalar was required.
	ErrIndexMismatch = errors.New("index mismatch")

	// ErrUnsupportedOperation is returned when an operation is not available for a storage kind,
	// e.g.: raw buffer access on a tensor that is not in core memory.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrBackendFailure wraps failures of the underlying storage (I/O, mapping, communication).
	ErrBackendFailure = errors.New("backend failure")

	// ErrDivisionByZero is returned when dividing a tensor by exactly zero.
	ErrDivisionByZero = errors.New("division by zero")
)

// Errorf returns an error of the given kind (one of the Err* sentinels) with the formatted message
// prepended and a stack trace attached.
func Errorf(kind error, format string, args ...any) error {
	return errors.Wrapf(kind, format, args...)
}

// Backend wraps err (typically an I/O error) as an ErrBackendFailure, keeping the original message.
// It returns nil if err is nil.
func Backend(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(&backendError{cause: err}, format, args...)
}

// backendError makes both the ErrBackendFailure kind and the original cause reachable by errors.Is.
type backendError struct {
	cause error
}

func (e *backendError) Error() string { return e.cause.Error() + ": " + ErrBackendFailure.Error() }

func (e *backendError) Is(target error) bool { return target == ErrBackendFailure }

func (e *backendError) Unwrap() error { return e.cause }
