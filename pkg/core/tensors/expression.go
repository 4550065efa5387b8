// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"slices"

	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
)

// Expression is the right-hand side of an assignment to a LabeledTensor: a LabeledTensor, a Product,
// an Addition or a Distributive.
//
// Expressions don't own data and are cheap to build: nothing is computed until they are assigned.
type Expression interface {
	// evaluateInto sets dst = alpha * expression + beta * dst. The factor of dst is ignored.
	evaluateInto(dst LabeledTensor, alpha, beta float64) error

	// leaves calls fn for every labeled tensor of the expression, until fn returns false.
	leaves(fn func(LabeledTensor) bool)

	// Err returns any error found while building the expression.
	Err() error
}

var (
	_ Expression = LabeledTensor{}
	_ Expression = Product{}
	_ Expression = Addition{}
	_ Expression = Distributive{}
)

// LabeledTensor is a tensor with one index label per axis, multiplied by a scalar factor.
//
// It is created with Tensor.L, and used both as destination of assignments and as operand of expressions.
type LabeledTensor struct {
	T       Tensor
	Indices indices.Indices
	Factor  float64

	// err is set if the labels are invalid, and returned when the labeled tensor is used.
	err error
}

// L labels the axes of the tensor. The labels string is either one label per character (e.g. "ijk"), or a
// comma-separated list of labels (e.g. "p0,q1"). A scalar is labeled with "".
//
// Labels must be unique and there must be one per axis, otherwise ErrIndexMismatch is returned when the
// labeled tensor is used.
func (t Tensor) L(labels string) LabeledTensor {
	return t.WithIndices(indices.Split(labels))
}

// WithIndices labels the axes of the tensor with the given index list. See L.
func (t Tensor) WithIndices(ix indices.Indices) LabeledTensor {
	lt := LabeledTensor{T: t, Indices: slices.Clone(ix), Factor: 1}
	if err := t.check(); err != nil {
		lt.err = err
	} else if err = indices.Validate(lt.Indices, t.Rank()); err != nil {
		lt.err = err
	}
	return lt
}

// Err returns the error in the labels, if any.
func (lt LabeledTensor) Err() error {
	if lt.err != nil {
		return lt.err
	}
	if err := lt.T.check(); err != nil {
		return err
	}
	return indices.Validate(lt.Indices, lt.T.Rank())
}

func (lt LabeledTensor) leaves(fn func(LabeledTensor) bool) { fn(lt) }

// Scale returns the labeled tensor multiplied by s.
func (lt LabeledTensor) Scale(s float64) LabeledTensor {
	lt.Factor *= s
	return lt
}

// Neg returns the labeled tensor with its factor negated.
func (lt LabeledTensor) Neg() LabeledTensor { return lt.Scale(-1) }

// Mul returns the product of lt and other: labels shared by both and not in the destination are summed over.
func (lt LabeledTensor) Mul(other LabeledTensor) Product {
	return Product{Factors: []LabeledTensor{lt, other}}
}

// MulSum returns the product of lt by a sum, lt * (t_1 + t_2 + ...). It is expanded to
// lt * t_1 + lt * t_2 + ... only when evaluated.
func (lt LabeledTensor) MulSum(sum Addition) Distributive {
	return Distributive{A: lt, B: sum}
}

// Plus returns the sum lt + other.
func (lt LabeledTensor) Plus(other LabeledTensor) Addition {
	return Addition{Terms: []LabeledTensor{lt, other}}
}

// Minus returns the sum lt - other.
func (lt LabeledTensor) Minus(other LabeledTensor) Addition {
	return Addition{Terms: []LabeledTensor{lt, other.Neg()}}
}

// Product of labeled tensors. Created with LabeledTensor.Mul.
type Product struct {
	Factors []LabeledTensor
}

// Mul returns the product with one more factor.
func (p Product) Mul(other LabeledTensor) Product {
	return Product{Factors: append(slices.Clone(p.Factors), other)}
}

// Scale returns the product multiplied by s. Only the first factor is scaled.
func (p Product) Scale(s float64) Product {
	factors := slices.Clone(p.Factors)
	if len(factors) > 0 {
		factors[0] = factors[0].Scale(s)
	}
	return Product{Factors: factors}
}

// Neg returns the negated product.
func (p Product) Neg() Product { return p.Scale(-1) }

// Err returns the first error in the labels of the factors.
func (p Product) Err() error {
	if len(p.Factors) == 0 {
		return errs.Errorf(errs.ErrIndexMismatch, "product with no factors")
	}
	for _, f := range p.Factors {
		if err := f.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (p Product) leaves(fn func(LabeledTensor) bool) {
	for _, f := range p.Factors {
		if !fn(f) {
			return
		}
	}
}

// factor returns the product of the factors of all operands.
func (p Product) factor() float64 {
	factor := 1.0
	for _, f := range p.Factors {
		factor *= f.Factor
	}
	return factor
}

// Addition is a sum of labeled tensors, all with the same set of labels. Created with LabeledTensor.Plus
// or LabeledTensor.Minus.
type Addition struct {
	Terms []LabeledTensor
}

// Plus returns the sum with one more term.
func (a Addition) Plus(other LabeledTensor) Addition {
	return Addition{Terms: append(slices.Clone(a.Terms), other)}
}

// Minus returns the sum with one more term, negated.
func (a Addition) Minus(other LabeledTensor) Addition {
	return a.Plus(other.Neg())
}

// Scale returns the sum with all terms multiplied by s.
func (a Addition) Scale(s float64) Addition {
	terms := make([]LabeledTensor, len(a.Terms))
	for ii, term := range a.Terms {
		terms[ii] = term.Scale(s)
	}
	return Addition{Terms: terms}
}

// Neg returns the negated sum.
func (a Addition) Neg() Addition { return a.Scale(-1) }

// Mul returns the product of the sum by lt, (t_1 + t_2 + ...) * lt. See LabeledTensor.MulSum.
func (a Addition) Mul(lt LabeledTensor) Distributive {
	return Distributive{A: lt, B: a}
}

// Err returns the first error in the labels of the terms.
func (a Addition) Err() error {
	for _, term := range a.Terms {
		if err := term.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (a Addition) leaves(fn func(LabeledTensor) bool) {
	for _, term := range a.Terms {
		if !fn(term) {
			return
		}
	}
}

// Distributive is the product of a labeled tensor by a sum, A * (B_1 + B_2 + ...).
// Created with LabeledTensor.MulSum or Addition.Mul.
type Distributive struct {
	A LabeledTensor
	B Addition
}

// Scale returns the expression multiplied by s.
func (d Distributive) Scale(s float64) Distributive {
	d.A = d.A.Scale(s)
	return d
}

// Neg returns the negated expression.
func (d Distributive) Neg() Distributive { return d.Scale(-1) }

// Err returns the first error in the labels of the operands.
func (d Distributive) Err() error {
	if err := d.A.Err(); err != nil {
		return err
	}
	return d.B.Err()
}

func (d Distributive) leaves(fn func(LabeledTensor) bool) {
	if fn(d.A) {
		d.B.leaves(fn)
	}
}

// products returns the expansion A * B_1, A * B_2, ...
func (d Distributive) products() []Product {
	products := make([]Product, len(d.B.Terms))
	for ii, term := range d.B.Terms {
		products[ii] = d.A.Mul(term)
	}
	return products
}
