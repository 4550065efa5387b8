// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package indices implements the index algebra of labeled tensors: how symbolic index labels
// of two operands split into free, contracted and batch indices, and how to permute one
// labeled layout into another.
//
// All functions are pure, they don't touch tensor data.
package indices

import (
	"slices"
	"strings"

	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/support/sets"
)

// Indices is an ordered list of index labels, one per axis of a tensor.
// Two labels denote the same index if they are equal strings.
type Indices []string

// Split parses an index specification into labels.
//
// If spec contains a comma, labels are the comma-separated (space-trimmed) tokens, which allows
// multi-character labels, e.g. "p0,q1". Otherwise, each rune is a label: "ijk" -> {"i", "j", "k"}.
// An empty spec is the empty list of indices of a scalar.
func Split(spec string) Indices {
	if spec == "" {
		return Indices{}
	}
	if strings.Contains(spec, ",") {
		parts := strings.Split(spec, ",")
		ix := make(Indices, len(parts))
		for ii, part := range parts {
			ix[ii] = strings.TrimSpace(part)
		}
		return ix
	}
	ix := make(Indices, 0, len(spec))
	for _, r := range spec {
		ix = append(ix, string(r))
	}
	return ix
}

// String returns the compact representation, the inverse of Split.
func (ix Indices) String() string {
	for _, label := range ix {
		if len([]rune(label)) != 1 {
			return strings.Join(ix, ",")
		}
	}
	return strings.Join(ix, "")
}

// Has returns whether label is in the list.
func (ix Indices) Has(label string) bool { return slices.Contains(ix, label) }

// Position of label in the list, or -1 if not present.
func (ix Indices) Position(label string) int { return slices.Index(ix, label) }

// Set returns the labels as a set.
func (ix Indices) Set() sets.Set[string] { return sets.MakeWith(ix...) }

// Equal returns whether both lists have the same labels in the same order.
func (ix Indices) Equal(other Indices) bool { return slices.Equal(ix, other) }

// SameSet returns whether both lists hold the same labels, in any order.
// Lists with duplicate labels are never considered the same set.
func (ix Indices) SameSet(other Indices) bool {
	if len(ix) != len(other) {
		return false
	}
	s := ix.Set()
	return len(s) == len(ix) && s.Equal(other.Set())
}

// Validate checks that ix can label a tensor of the given rank: one non-empty label per axis,
// and no label repeated. Repeated labels (traces or diagonals) are not supported.
func Validate(ix Indices, rank int) error {
	if len(ix) != rank {
		return errs.Errorf(errs.ErrIndexMismatch, "%d indices %q given for tensor of rank %d", len(ix), ix, rank)
	}
	seen := sets.Make[string](len(ix))
	for _, label := range ix {
		if label == "" {
			return errs.Errorf(errs.ErrIndexMismatch, "empty index label in %q", ix)
		}
		if seen.Has(label) {
			return errs.Errorf(errs.ErrIndexMismatch,
				"index %q repeated in %q: traces over repeated labels are not supported", label, ix)
		}
		seen.Insert(label)
	}
	return nil
}

// FreeAndContracted returns the labels present in both a and b (contracted), and the labels present
// in exactly one of them (free). Both are in first-seen order: a's labels first, then b's.
func FreeAndContracted(a, b Indices) (contracted, free Indices) {
	contracted = Indices{}
	free = Indices{}
	for _, label := range a {
		if b.Has(label) {
			contracted = append(contracted, label)
		} else {
			free = append(free, label)
		}
	}
	for _, label := range b {
		if !a.Has(label) {
			free = append(free, label)
		}
	}
	return
}

// Permutation returns perm such that to[i] == from[perm[i]]: axis i of a tensor labeled with `to`
// takes its values from axis perm[i] of a tensor labeled with `from`.
//
// It returns ErrIndexMismatch if `from` and `to` are not the same set of unique labels.
func Permutation(from, to Indices) ([]int, error) {
	if !from.SameSet(to) {
		return nil, errs.Errorf(errs.ErrIndexMismatch, "indices %q cannot be permuted into %q", from, to)
	}
	perm := make([]int, len(to))
	for ii, label := range to {
		perm[ii] = from.Position(label)
	}
	return perm, nil
}

// IsIdentity returns whether perm maps every axis to itself.
func IsIdentity(perm []int) bool {
	for ii, axis := range perm {
		if ii != axis {
			return false
		}
	}
	return true
}
