// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
)

// einsum is a parsed "ik,kl,lj->ij" product: one single-character label per axis of each operand.
type einsum struct {
	operands []indices.Indices
	output   indices.Indices
}

// parseEinsum parses a product in numpy's einsum notation. Without "->", the output holds the labels
// used by only one operand, in alphabetical order.
func parseEinsum(spec string) (einsum, error) {
	var e einsum
	spec = strings.ReplaceAll(spec, " ", "")
	inputs, output, explicit := strings.Cut(spec, "->")
	if inputs == "" {
		return e, errs.Errorf(errs.ErrIndexMismatch, "no operands in %q", spec)
	}
	count := make(map[string]int)
	for _, operand := range strings.Split(inputs, ",") {
		ix := splitLabels(operand)
		if err := indices.Validate(ix, len(ix)); err != nil {
			return e, err
		}
		for _, label := range ix {
			count[label]++
		}
		e.operands = append(e.operands, ix)
	}
	if explicit {
		e.output = splitLabels(output)
		if err := indices.Validate(e.output, len(e.output)); err != nil {
			return e, err
		}
	} else {
		for label, n := range count {
			if n == 1 {
				e.output = append(e.output, label)
			}
		}
		slices.Sort(e.output)
	}
	return e, nil
}

func splitLabels(s string) indices.Indices {
	ix := indices.Indices{}
	for _, r := range s {
		ix = append(ix, string(r))
	}
	return ix
}

// parseDims parses the extents of the labels, e.g. "i=40,k=50". Every label of the product must be given.
func parseDims(spec string, e einsum) (indices.Bindings, error) {
	extents := indices.Bindings{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, value, found := strings.Cut(part, "=")
		extent, err := strconv.Atoi(strings.TrimSpace(value))
		if !found || err != nil || extent < 0 {
			return nil, errs.Errorf(errs.ErrDimensionMismatch, "invalid extent %q, expected <label>=<extent>", part)
		}
		extents[strings.TrimSpace(label)] = extent
	}
	for _, ix := range append(slices.Clone(e.operands), e.output) {
		for _, label := range ix {
			if _, found := extents[label]; !found {
				return nil, errs.Errorf(errs.ErrDimensionMismatch, "extent of label %q not given", label)
			}
		}
	}
	return extents, nil
}
