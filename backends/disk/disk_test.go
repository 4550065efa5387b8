// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package disk

import (
	"os"
	"testing"

	"github.com/gomlx/tensorexpr/backends"
	_ "github.com/gomlx/tensorexpr/backends/incore"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDisk(t *testing.T, name string, d ...int) *Storage {
	config := backends.Config{Kind: backends.KindDisk, Options: map[string]string{"dir": t.TempDir()}}
	s, err := New(config, name, dims.Make(d...))
	require.NoError(t, err)
	return s.(*Storage)
}

func TestNew(t *testing.T) {
	s := newDisk(t, "A", 3, 4)
	require.Equal(t, backends.KindDisk, s.Kind())
	_, err := os.Stat(s.Path())
	require.NoError(t, err)
	info := must.M1(os.Stat(s.Path()))
	assert.Equal(t, int64(3*4*8), info.Size())

	// Zero-initialized.
	norm, err := s.Norm(2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, norm)

	// Disk tensors don't expose their raw buffer.
	_, ok := backends.Storage(s).(backends.RawBuffer)
	assert.False(t, ok)

	require.NoError(t, s.Set([]int{2, 3}, 5))
	require.NoError(t, s.Flush())
	v, err := s.At([]int{2, 3})
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	path := s.Path()
	require.NoError(t, s.Close())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	// Second close is a no-op.
	require.NoError(t, s.Close())
	_, err = s.At([]int{0, 0})
	require.ErrorIs(t, err, errs.ErrBackendFailure)

	empty := newDisk(t, "empty", 0, 4)
	assert.Equal(t, "", empty.Path())
	require.NoError(t, empty.Close())
}

func TestMissingDirectory(t *testing.T) {
	config := backends.Config{Kind: backends.KindDisk, Options: map[string]string{"dir": "/nonexistent/tensorexpr"}}
	_, err := New(config, "A", dims.Make(2))
	require.ErrorIs(t, err, errs.ErrBackendFailure)
}

func TestMixedKinds(t *testing.T) {
	a := newDisk(t, "A", 2, 3)
	defer func() { _ = a.Close() }()
	require.NoError(t, a.WriteFlat([]float64{1, 2, 3, 4, 5, 6}))
	b := must.M1(backends.New(backends.KindCore, "B", dims.Make(3, 2)))
	require.NoError(t, b.WriteFlat([]float64{1, 0, 0, 1, 1, 1}))

	// Disk destination, core operand.
	c := newDisk(t, "C", 2, 2)
	defer func() { _ = c.Close() }()
	require.NoError(t, c.Contract(a, b, indices.Split("ij"), indices.Split("ik"), indices.Split("kj"), 1, 0))
	got := make([]float64, 4)
	require.NoError(t, c.ReadFlat(got))
	assert.Equal(t, []float64{4, 5, 10, 11}, got)

	// Core destination, disk operand.
	at := must.M1(backends.New(backends.KindCore, "At", dims.Make(3, 2)))
	require.NoError(t, at.Permute(a, indices.Split("ji"), indices.Split("ij"), 1, 0))
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, at.(backends.RawBuffer).Data())
}
