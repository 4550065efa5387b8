// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"testing"

	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEinsum(t *testing.T) {
	e, err := parseEinsum("ik, kl,lj -> ij")
	require.NoError(t, err)
	assert.Equal(t, []indices.Indices{{"i", "k"}, {"k", "l"}, {"l", "j"}}, e.operands)
	assert.Equal(t, indices.Indices{"i", "j"}, e.output)

	// Implicit output: labels used once, sorted.
	e, err = parseEinsum("jk,ki")
	require.NoError(t, err)
	assert.Equal(t, indices.Indices{"i", "j"}, e.output)

	// Full contraction into a scalar.
	e, err = parseEinsum("i,i->")
	require.NoError(t, err)
	assert.Empty(t, e.output)

	_, err = parseEinsum("ii,ij->j")
	require.ErrorIs(t, err, errs.ErrIndexMismatch)
	_, err = parseEinsum("->ij")
	require.ErrorIs(t, err, errs.ErrIndexMismatch)
}

func TestParseDims(t *testing.T) {
	e, err := parseEinsum("ik,kj->ij")
	require.NoError(t, err)
	extents, err := parseDims("i=2, k=3,j=4", e)
	require.NoError(t, err)
	assert.Equal(t, indices.Bindings{"i": 2, "k": 3, "j": 4}, extents)

	_, err = parseDims("i=2,k=3", e)
	require.ErrorIs(t, err, errs.ErrDimensionMismatch)
	_, err = parseDims("i=2,k=x,j=4", e)
	require.ErrorIs(t, err, errs.ErrDimensionMismatch)
	_, err = parseDims("i=2,k,j=4", e)
	require.ErrorIs(t, err, errs.ErrDimensionMismatch)
}

func TestPlanAndRun(t *testing.T) {
	e, err := parseEinsum("ik,kl,lj->ij")
	require.NoError(t, err)
	*flagDims = "i=3,k=4,l=5,j=2"
	defer func() { *flagDims = "" }()

	var buf bytes.Buffer
	require.NoError(t, plan(&buf, e))
	assert.Contains(t, buf.String(), "total")

	buf.Reset()
	require.NoError(t, run(&buf, e))
	assert.Contains(t, buf.String(), "result norm")
}
