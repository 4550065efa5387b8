// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package contraction chooses the order of pairwise contractions used to evaluate a product of
// n labeled tensors.
//
// The cost of contracting two operands is estimated as the pair (flops, memory): flops is the product of the
// extents of all labels involved (the union of kept and contracted labels), memory is the size of the result.
// The cost of a plan is the sum of the flops and the peak memory of its steps, and plans are compared
// lexicographically: flops first, memory as a tie-break.
//
// Up to MaxExhaustive operands every binary contraction tree is considered (dynamic programming over
// subsets of operands), above that the cheapest pair is greedily contracted at each step.
package contraction

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
	"github.com/gomlx/tensorexpr/pkg/support/sets"
	"k8s.io/klog/v2"
)

// MaxExhaustive is the largest number of operands for which the exhaustive search is used.
var MaxExhaustive = 10

// Method used to find a plan.
type Method int

//go:generate go tool enumer -type=Method -trimprefix=Method -transform=snake -values -text contraction.go

const (
	// MethodDirect is used when there is nothing to search: 1 or 2 operands.
	MethodDirect Method = iota

	// MethodExhaustive considers every binary contraction tree.
	MethodExhaustive

	// MethodGreedy contracts the cheapest pair at each step.
	MethodGreedy
)

// Cost estimate of a contraction step or of a whole plan.
type Cost struct {
	// Flops is the number of multiply-adds.
	Flops float64

	// Memory is the number of elements of the result of a step, or the largest one for a plan.
	Memory float64
}

// Less compares costs lexicographically: by Flops, and by Memory if Flops are equal.
func (c Cost) Less(other Cost) bool {
	if c.Flops != other.Flops {
		return c.Flops < other.Flops
	}
	return c.Memory < other.Memory
}

// Then returns the cost of running c followed by other: flops are added, the peak memory is kept.
func (c Cost) Then(other Cost) Cost {
	return Cost{Flops: c.Flops + other.Flops, Memory: max(c.Memory, other.Memory)}
}

// Step of a plan: contract the nodes Left and Right into a new node labeled Result.
//
// Nodes are numbered as follows: operands are 0 to n-1, and the result of step s is node n+s.
type Step struct {
	Left, Right int
	Result      indices.Indices
	Cost
}

// Plan to evaluate a product as a sequence of pairwise contractions.
//
// The Result of the last step has exactly the output labels, in the output order.
type Plan struct {
	Steps  []Step
	Cost   Cost
	Method Method
}

// String returns a multi-line description of the plan.
func (p Plan) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "plan (%s): %d step(s), flops=%g, peak memory=%g", p.Method, len(p.Steps), p.Cost.Flops, p.Cost.Memory)
	for ii, step := range p.Steps {
		_, _ = fmt.Fprintf(&sb, "\n  #%d: [%d] x [%d] -> %q (flops=%g, memory=%g)",
			ii, step.Left, step.Right, step.Result, step.Flops, step.Memory)
	}
	return sb.String()
}

// Optimize returns the plan to contract the operands, labeled with the given indices, into the output labels.
//
// All labels must be bound in extents. It returns ErrIndexMismatch if any list repeats a label, if an output
// label is in no operand, or if a label appears in only one operand and not in the output.
func Optimize(operands []indices.Indices, extents indices.Bindings, output indices.Indices) (Plan, error) {
	if err := validate(operands, extents, output); err != nil {
		return Plan{}, err
	}
	n := len(operands)
	var plan Plan
	switch {
	case n <= 1:
		plan = Plan{Method: MethodDirect}
	case n == 2:
		step := newStep(0, 1, operands[0], operands[1], output, extents)
		plan = Plan{Steps: []Step{step}, Cost: step.Cost, Method: MethodDirect}
	case n <= MaxExhaustive:
		plan = exhaustive(operands, extents, output)
	default:
		plan = greedy(operands, extents, output)
	}
	if klog.V(1).Enabled() && n > 2 {
		klog.Infof("contraction: %s", plan)
	}
	return plan, nil
}

func validate(operands []indices.Indices, extents indices.Bindings, output indices.Indices) error {
	if err := indices.Validate(output, len(output)); err != nil {
		return err
	}
	count := make(map[string]int)
	for _, ix := range operands {
		if err := indices.Validate(ix, len(ix)); err != nil {
			return err
		}
		for _, label := range ix {
			if _, found := extents[label]; !found {
				return errs.Errorf(errs.ErrIndexMismatch, "index %q has no known extent", label)
			}
			count[label]++
		}
	}
	for _, label := range output {
		if count[label] == 0 {
			return errs.Errorf(errs.ErrIndexMismatch, "output index %q is in none of the operands", label)
		}
	}
	outputSet := output.Set()
	for _, ix := range operands {
		for _, label := range ix {
			if count[label] == 1 && !outputSet.Has(label) {
				return errs.Errorf(errs.ErrIndexMismatch,
					"index %q of operand %q is neither contracted with another operand nor in the output %q", label, ix, output)
			}
		}
	}
	return nil
}

// newStep creates the step contracting a and b into result.
func newStep(left, right int, a, b indices.Indices, result indices.Indices, extents indices.Bindings) Step {
	involved := a.Set().Union(b.Set())
	labels := make([]string, 0, len(involved))
	for label := range involved {
		labels = append(labels, label)
	}
	return Step{
		Left:   left,
		Right:  right,
		Result: result,
		Cost:   Cost{Flops: extents.Size(labels...), Memory: extents.Size(result...)},
	}
}

// keptLabels returns, in layout order (batch, a's free, b's free), the labels of a and b that are in needed.
func keptLabels(a, b indices.Indices, needed sets.Set[string]) indices.Indices {
	kept := indices.Indices{}
	for _, label := range a {
		if b.Has(label) && needed.Has(label) {
			kept = append(kept, label)
		}
	}
	for _, label := range a {
		if !b.Has(label) && needed.Has(label) {
			kept = append(kept, label)
		}
	}
	for _, label := range b {
		if !a.Has(label) && needed.Has(label) {
			kept = append(kept, label)
		}
	}
	return kept
}

// tree is a node of a contraction tree over a subset of the operands.
type tree struct {
	labels      indices.Indices
	cost        Cost
	left, right *tree
	operand     int // Only for leaves.
}

// exhaustive runs a dynamic programming search over all subsets of operands: the best tree for a subset
// is the cheapest combination of the best trees of any split of the subset in two.
func exhaustive(operands []indices.Indices, extents indices.Bindings, output indices.Indices) Plan {
	n := len(operands)
	full := uint(1)<<n - 1
	outputSet := output.Set()

	// labelsOf[subset] is the union of the labels of the operands in the subset.
	labelsOf := make([]sets.Set[string], full+1)
	labelsOf[0] = sets.Make[string]()
	for subset := uint(1); subset <= full; subset++ {
		lowest := bits.TrailingZeros(subset)
		labelsOf[subset] = labelsOf[subset&^(1<<lowest)].Union(operands[lowest].Set())
	}
	// needed returns the labels the result of subset must keep: the ones used by the other operands
	// or by the output.
	needed := func(subset uint) sets.Set[string] {
		return labelsOf[full&^subset].Union(outputSet)
	}

	best := make([]*tree, full+1)
	for ii := range n {
		best[1<<ii] = &tree{labels: operands[ii], operand: ii}
	}
	for subset := uint(1); subset <= full; subset++ {
		if bits.OnesCount(subset) < 2 {
			continue
		}
		neededLabels := needed(subset)
		// Enumerate splits with the lowest operand always on the left, so each split is seen once.
		lowestBit := subset & -subset
		rest := subset &^ lowestBit
		for other := rest; ; other = (other - 1) & rest {
			left := lowestBit | other
			right := subset &^ left
			if right != 0 {
				candidate := join(best[left], best[right], neededLabels, extents)
				if best[subset] == nil || candidate.cost.Less(best[subset].cost) {
					best[subset] = candidate
				}
			}
			if other == 0 {
				break
			}
		}
	}
	return flatten(best[full], n, output, extents, MethodExhaustive)
}

// join creates the tree contracting left and right, keeping the needed labels.
func join(left, right *tree, needed sets.Set[string], extents indices.Bindings) *tree {
	labels := keptLabels(left.labels, right.labels, needed)
	involved := left.labels.Set().Union(right.labels.Set())
	all := make([]string, 0, len(involved))
	for label := range involved {
		all = append(all, label)
	}
	step := Cost{Flops: extents.Size(all...), Memory: extents.Size(labels...)}
	return &tree{
		labels: labels,
		cost:   left.cost.Then(right.cost).Then(step),
		left:   left,
		right:  right,
	}
}

// greedy contracts at each step the pair of remaining nodes with the lowest step cost.
func greedy(operands []indices.Indices, extents indices.Bindings, output indices.Indices) Plan {
	remaining := make([]*tree, len(operands))
	for ii, ix := range operands {
		remaining[ii] = &tree{labels: ix, operand: ii}
	}
	for len(remaining) > 1 {
		var bestTree *tree
		var bestI, bestJ int
		bestStep := Cost{Flops: math.Inf(1), Memory: math.Inf(1)}
		for i := range remaining {
			for j := i + 1; j < len(remaining); j++ {
				neededLabels := sets.MakeWith(output...)
				for k, other := range remaining {
					if k != i && k != j {
						neededLabels.Insert(other.labels...)
					}
				}
				candidate := join(remaining[i], remaining[j], neededLabels, extents)
				step := Cost{
					Flops:  candidate.cost.Flops - remaining[i].cost.Flops - remaining[j].cost.Flops,
					Memory: extents.Size(candidate.labels...),
				}
				if bestTree == nil || step.Less(bestStep) {
					bestTree, bestStep, bestI, bestJ = candidate, step, i, j
				}
			}
		}
		remaining[bestI] = bestTree
		remaining = append(remaining[:bestJ], remaining[bestJ+1:]...)
	}
	return flatten(remaining[0], len(operands), output, extents, MethodGreedy)
}

// flatten converts the tree into the list of steps, in post-order, with the last step producing output.
func flatten(root *tree, n int, output indices.Indices, extents indices.Bindings, method Method) Plan {
	plan := Plan{Method: method}
	var visit func(t *tree) int
	visit = func(t *tree) int {
		if t.left == nil {
			return t.operand
		}
		left := visit(t.left)
		right := visit(t.right)
		result := t.labels
		if t == root {
			result = output
		}
		step := newStep(left, right, t.left.labels, t.right.labels, result, extents)
		plan.Steps = append(plan.Steps, step)
		plan.Cost = plan.Cost.Then(step.Cost)
		return n + len(plan.Steps) - 1
	}
	visit(root)
	return plan
}

// Operands returns the labels of every node of the plan: the given operands followed by the result of
// each step.
func (p Plan) Operands(operands []indices.Indices) []indices.Indices {
	nodes := make([]indices.Indices, 0, len(operands)+len(p.Steps))
	nodes = append(nodes, operands...)
	for _, step := range p.Steps {
		nodes = append(nodes, step.Result)
	}
	return nodes
}
