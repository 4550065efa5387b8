// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package indices

import (
	"github.com/gomlx/tensorexpr/pkg/core/errs"
)

// Partition classifies the labels of a pairwise contraction C = A * B.
type Partition struct {
	// Batch labels are in A, B and C: they are iterated over together, like a Hadamard product.
	Batch Indices

	// Contracted labels are in A and B but not in C: they are summed over.
	Contracted Indices

	// FreeA labels are only in A (and in C), FreeB only in B (and in C).
	FreeA, FreeB Indices
}

// LayoutA returns the order of A's labels used to run the contraction as a batched matrix multiplication:
// batch, free, contracted.
func (p Partition) LayoutA() Indices { return concat(p.Batch, p.FreeA, p.Contracted) }

// LayoutB returns the order of B's labels used to run the contraction as a batched matrix multiplication:
// batch, contracted, free.
func (p Partition) LayoutB() Indices { return concat(p.Batch, p.Contracted, p.FreeB) }

// LayoutC returns the order of the labels of the batched matrix multiplication output: batch, A's free, B's free.
func (p Partition) LayoutC() Indices { return concat(p.Batch, p.FreeA, p.FreeB) }

func concat(lists ...Indices) Indices {
	var n int
	for _, l := range lists {
		n += len(l)
	}
	out := make(Indices, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// Classify partitions the labels of C = A * B, where c, a and b label C, A and B.
//
// Batch and contracted labels follow a's order, FreeA follows a's order and FreeB follows b's order.
//
// It returns ErrIndexMismatch if any list has repeated labels, if a label of c is in neither
// operand, or if a label appears in only one operand and not in c (it would have to be summed alone,
// which is not a contraction).
func Classify(c, a, b Indices) (p Partition, err error) {
	for _, ix := range []Indices{c, a, b} {
		if err = Validate(ix, len(ix)); err != nil {
			return
		}
	}
	for _, label := range c {
		if !a.Has(label) && !b.Has(label) {
			err = errs.Errorf(errs.ErrIndexMismatch, "result index %q is in neither %q nor %q", label, a, b)
			return
		}
	}
	p = Partition{Batch: Indices{}, Contracted: Indices{}, FreeA: Indices{}, FreeB: Indices{}}
	for _, label := range a {
		switch {
		case b.Has(label) && c.Has(label):
			p.Batch = append(p.Batch, label)
		case b.Has(label):
			p.Contracted = append(p.Contracted, label)
		case c.Has(label):
			p.FreeA = append(p.FreeA, label)
		default:
			err = errs.Errorf(errs.ErrIndexMismatch,
				"index %q of %q is neither contracted with %q nor kept in the result %q", label, a, b, c)
			return
		}
	}
	for _, label := range b {
		if a.Has(label) {
			continue
		}
		if !c.Has(label) {
			err = errs.Errorf(errs.ErrIndexMismatch,
				"index %q of %q is neither contracted with %q nor kept in the result %q", label, b, a, c)
			return
		}
		p.FreeB = append(p.FreeB, label)
	}
	return
}
