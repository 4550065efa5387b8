// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"fmt"

	"github.com/gomlx/tensorexpr/backends"
	"github.com/gomlx/tensorexpr/pkg/core/contraction"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
	"k8s.io/klog/v2"
)

// Assign evaluates rhs into lt, overwriting its contents: lt = rhs.
//
// The labels of lt give the order of the axes of the result: e.g. C.L("ji").Assign(A.L("ij")) transposes A.
// The factor of lt is ignored.
//
// All labels and extents of the expression are validated before anything is written: if an error is
// returned, lt is unchanged.
func (lt LabeledTensor) Assign(rhs Expression) error { return lt.assign("=", rhs, 1, 0) }

// AddAssign evaluates rhs and accumulates it into lt: lt += rhs.
func (lt LabeledTensor) AddAssign(rhs Expression) error { return lt.assign("+=", rhs, 1, 1) }

// SubAssign evaluates rhs and subtracts it from lt: lt -= rhs.
func (lt LabeledTensor) SubAssign(rhs Expression) error { return lt.assign("-=", rhs, -1, 1) }

// MulAssign scales lt in place: lt *= s.
func (lt LabeledTensor) MulAssign(s float64) error {
	if err := lt.Err(); err != nil {
		return err
	}
	return lt.T.Scale(s)
}

// DivAssign scales lt in place: lt /= s. It returns ErrDivisionByZero if s is 0.
func (lt LabeledTensor) DivAssign(s float64) error {
	if err := lt.Err(); err != nil {
		return err
	}
	if s == 0 {
		return errs.Errorf(errs.ErrDivisionByZero, "%s(%q) /= 0", lt.T.Name(), lt.Indices)
	}
	return lt.T.Scale(1 / s)
}

func (lt LabeledTensor) assign(op string, rhs Expression, alpha, beta float64) error {
	if err := lt.Err(); err != nil {
		return err
	}
	if rhs == nil {
		return errs.Errorf(errs.ErrUnsupportedOperation, "%s(%q) %s nil expression", lt.T.Name(), lt.Indices, op)
	}
	if err := rhs.Err(); err != nil {
		return err
	}
	if klog.V(2).Enabled() {
		klog.Infof("evaluate: %s(%q) %s %T", lt.T.Name(), lt.Indices, op, rhs)
	}
	if _, isLabeled := rhs.(LabeledTensor); !isLabeled && aliases(rhs, lt.T) {
		return lt.evaluateViaScratch(rhs, alpha, beta)
	}
	return rhs.evaluateInto(lt, alpha, beta)
}

// aliases returns whether t is one of the operands of the expression.
func aliases(rhs Expression, t Tensor) bool {
	found := false
	rhs.leaves(func(leaf LabeledTensor) bool {
		found = leaf.T.Same(t)
		return !found
	})
	return found
}

// evaluateViaScratch evaluates rhs into a scratch tensor, and only then folds it into lt. It's used when
// lt is also an operand of rhs, and would otherwise be overwritten while still being read.
func (lt LabeledTensor) evaluateViaScratch(rhs Expression, alpha, beta float64) error {
	scratch, err := Build(backends.KindCore, lt.T.Name()+"_tmp", lt.T.Dims()...)
	if err != nil {
		return err
	}
	defer closeScratch(scratch)
	klog.V(2).Infof("evaluate: %q is also an operand, using scratch tensor", lt.T.Name())
	if err = rhs.evaluateInto(scratch.WithIndices(lt.Indices), alpha, 0); err != nil {
		return err
	}
	return scratch.WithIndices(lt.Indices).evaluateInto(lt, 1, beta)
}

// scaleDestination sets dst = beta * dst: the result of assigning an empty sum.
func scaleDestination(dst LabeledTensor, beta float64) error {
	if beta == 0 {
		return dst.T.Zero()
	}
	if beta == 1 {
		return nil
	}
	return dst.T.Scale(beta)
}

// evaluateInto implements Expression: a copy if the labels are in the same order, a permutation otherwise.
func (lt LabeledTensor) evaluateInto(dst LabeledTensor, alpha, beta float64) error {
	factor := alpha * lt.Factor
	if !dst.Indices.Equal(lt.Indices) {
		return dst.T.Permute(lt.T, dst.Indices, lt.Indices, factor, beta)
	}
	if err := dst.T.sameDims("assignment", lt.T); err != nil {
		return err
	}
	switch {
	case dst.T.Same(lt.T):
		return dst.T.Scale(factor + beta)
	case beta == 0:
		return dst.T.Copy(lt.T, factor)
	case beta != 1:
		if err := dst.T.Scale(beta); err != nil {
			return err
		}
	}
	return dst.T.ScaleAndAdd(factor, lt.T)
}

// evaluateInto implements Expression: each term is accumulated in order.
func (a Addition) evaluateInto(dst LabeledTensor, alpha, beta float64) error {
	bindings := indices.Bindings{}
	if err := bindings.Bind(dst.Indices, dst.T.Dims()); err != nil {
		return err
	}
	for _, term := range a.Terms {
		if !term.Indices.SameSet(dst.Indices) {
			return errs.Errorf(errs.ErrIndexMismatch, "term %s(%q) of the sum doesn't have the indices %q of %s",
				term.T.Name(), term.Indices, dst.Indices, dst.T.Name())
		}
		if err := bindings.Bind(term.Indices, term.T.Dims()); err != nil {
			return err
		}
	}
	if len(a.Terms) == 0 {
		return scaleDestination(dst, beta)
	}
	for ii, term := range a.Terms {
		termBeta := 1.0
		if ii == 0 {
			termBeta = beta
		}
		if err := term.evaluateInto(dst, alpha, termBeta); err != nil {
			return err
		}
	}
	return nil
}

// evaluateInto implements Expression: the contraction plan is executed, with the last step writing into dst.
func (p Product) evaluateInto(dst LabeledTensor, alpha, beta float64) error {
	plan, err := p.prepare(dst)
	if err != nil {
		return err
	}
	return plan.execute(alpha, beta)
}

// evaluateInto implements Expression: A * (B_1 + B_2 + ...) is evaluated as A * B_1 + A * B_2 + ..., after
// all the products are validated.
func (d Distributive) evaluateInto(dst LabeledTensor, alpha, beta float64) error {
	products := d.products()
	plans := make([]*productPlan, len(products))
	for ii, p := range products {
		var err error
		if plans[ii], err = p.prepare(dst); err != nil {
			return err
		}
	}
	if len(plans) == 0 {
		return scaleDestination(dst, beta)
	}
	for ii, plan := range plans {
		termBeta := 1.0
		if ii == 0 {
			termBeta = beta
		}
		if err := plan.execute(alpha, termBeta); err != nil {
			return err
		}
	}
	return nil
}

// productPlan is a validated product, ready to be executed into dst.
type productPlan struct {
	product Product
	dst     LabeledTensor
	extents indices.Bindings
	plan    contraction.Plan
}

// prepare validates the product against the destination and finds the contraction order.
func (p Product) prepare(dst LabeledTensor) (*productPlan, error) {
	if err := p.Err(); err != nil {
		return nil, err
	}
	pp := &productPlan{product: p, dst: dst, extents: indices.Bindings{}}
	operands := make([]indices.Indices, len(p.Factors))
	for ii, f := range p.Factors {
		if err := pp.extents.Bind(f.Indices, f.T.Dims()); err != nil {
			return nil, err
		}
		operands[ii] = f.Indices
	}
	if err := pp.extents.Bind(dst.Indices, dst.T.Dims()); err != nil {
		return nil, err
	}
	var err error
	pp.plan, err = contraction.Optimize(operands, pp.extents, dst.Indices)
	if err != nil {
		return nil, err
	}
	return pp, nil
}

// execute runs the pairwise contractions of the plan. Intermediate results are in-core tensors, released
// as soon as they are consumed.
func (pp *productPlan) execute(alpha, beta float64) error {
	factors := pp.product.Factors
	if len(pp.plan.Steps) == 0 {
		// Single factor.
		return factors[0].evaluateInto(pp.dst, alpha, beta)
	}
	factor := alpha * pp.product.factor()
	operands := make([]indices.Indices, len(factors))
	nodes := make([]Tensor, len(factors), len(factors)+len(pp.plan.Steps))
	for ii, f := range factors {
		operands[ii] = f.Indices
		nodes[ii] = f.T
	}
	nodeIndices := pp.plan.Operands(operands)
	intermediates := make(map[int]Tensor)
	defer func() {
		for _, t := range intermediates {
			closeScratch(t)
		}
	}()
	release := func(node int) {
		if t, found := intermediates[node]; found {
			closeScratch(t)
			delete(intermediates, node)
		}
	}

	last := len(pp.plan.Steps) - 1
	for ii, step := range pp.plan.Steps {
		a, b := nodes[step.Left], nodes[step.Right]
		aInds, bInds := nodeIndices[step.Left], nodeIndices[step.Right]
		if ii == last {
			return pp.dst.T.Contract(a, b, step.Result, aInds, bInds, factor, beta)
		}
		d, err := pp.extents.Dims(step.Result)
		if err != nil {
			return err
		}
		tmp, err := Build(backends.KindCore, fmt.Sprintf("%s_tmp%d", pp.dst.T.Name(), ii), d...)
		if err != nil {
			return err
		}
		intermediates[len(nodes)] = tmp
		nodes = append(nodes, tmp)
		if err = tmp.Contract(a, b, step.Result, aInds, bInds, 1, 0); err != nil {
			return err
		}
		release(step.Left)
		release(step.Right)
	}
	return nil
}

// Value evaluates a product that contracts all indices (e.g. A.L("ij").Mul(B.L("ij"))) and returns the
// resulting number. It returns ErrIndexMismatch if any index is left free.
func (p Product) Value() (float64, error) {
	if err := p.Err(); err != nil {
		return 0, err
	}
	if free := p.freeIndices(); len(free) > 0 {
		return 0, errs.Errorf(errs.ErrIndexMismatch, "product is not a scalar, free indices %q remain", free)
	}
	return scalarValue(p)
}

// Value evaluates a fully contracted A * (B_1 + B_2 + ...) and returns the resulting number.
// It returns ErrIndexMismatch if any index is left free.
func (d Distributive) Value() (float64, error) {
	if err := d.Err(); err != nil {
		return 0, err
	}
	for _, p := range d.products() {
		if free := p.freeIndices(); len(free) > 0 {
			return 0, errs.Errorf(errs.ErrIndexMismatch, "product is not a scalar, free indices %q remain", free)
		}
	}
	return scalarValue(d)
}

// freeIndices returns the labels that appear in only one factor.
func (p Product) freeIndices() indices.Indices {
	count := make(map[string]int)
	for _, f := range p.Factors {
		for _, label := range f.Indices {
			count[label]++
		}
	}
	free := indices.Indices{}
	for _, f := range p.Factors {
		for _, label := range f.Indices {
			if count[label] == 1 {
				free = append(free, label)
			}
		}
	}
	return free
}

func scalarValue(expr Expression) (float64, error) {
	scalar, err := Build(backends.KindCore, "value")
	if err != nil {
		return 0, err
	}
	defer closeScratch(scalar)
	if err = expr.evaluateInto(scalar.L(""), 1, 0); err != nil {
		return 0, err
	}
	return scalar.At()
}
