// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package numpy

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/gomlx/tensorexpr/backends"
	_ "github.com/gomlx/tensorexpr/backends/default"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataspace(t *testing.T) {
	ds, err := NewDataspace(dims.Make(2, 3))
	require.NoError(t, err)
	assert.Equal(t, 6, ds.Size())

	_, err = NewDataspace(dims.Make())
	require.ErrorIs(t, err, errs.ErrDimensionMismatch)
	_, err = NewDataspace(dims.Make(2, 0))
	require.ErrorIs(t, err, errs.ErrDimensionMismatch)
}

func TestNpyRoundTrip(t *testing.T) {
	for _, kind := range []backends.Kind{backends.KindCore, backends.KindDisk, backends.KindDistributed} {
		t.Run(kind.String(), func(t *testing.T) {
			x := must.M1(tensors.Build(kind, "x", 2, 3, 4))
			defer func() { _ = x.Close() }()
			values := make([]float64, x.Numel())
			for ii := range values {
				values[ii] = float64(ii) - 0.25
			}
			require.NoError(t, x.SetFlat(values))

			var buf bytes.Buffer
			require.NoError(t, WriteNpy(&buf, x))
			assert.Zero(t, (buf.Len()-x.Numel()*8)%16, "header should be padded to 16 bytes")
			y, err := ReadNpy(&buf, kind, "y")
			require.NoError(t, err)
			defer func() { _ = y.Close() }()
			assert.Equal(t, kind, y.Kind())
			assert.Equal(t, "y", y.Name())
			assert.True(t, x.Equal(y))

			filePath := filepath.Join(t.TempDir(), "x.npy")
			require.NoError(t, SaveNpy(filePath, x))
			z, err := LoadNpy(filePath, backends.KindCore, "z")
			require.NoError(t, err)
			defer func() { _ = z.Close() }()
			assert.True(t, x.Equal(z))
		})
	}

	scalar := must.M1(tensors.Build(backends.KindCore, "scalar"))
	defer func() { _ = scalar.Close() }()
	require.ErrorIs(t, WriteNpy(&bytes.Buffer{}, scalar), errs.ErrDimensionMismatch)
}

// npy builds a .npy file with the given header and raw data.
func npy(header string, data []byte) *bytes.Buffer {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(data)
	return &buf
}

func TestReadNpy(t *testing.T) {
	// Fortran order: [[0, 1, 2], [3, 4, 5]] is stored as 0, 3, 1, 4, 2, 5.
	var data bytes.Buffer
	for _, v := range []float64{0, 3, 1, 4, 2, 5} {
		_ = binary.Write(&data, binary.LittleEndian, math.Float64bits(v))
	}
	x, err := ReadNpy(npy("{'descr': '<f8', 'fortran_order': True, 'shape': (2, 3), }\n", data.Bytes()),
		backends.KindCore, "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, must.M1(x.Flat()))

	// Other data types are converted.
	data.Reset()
	for _, v := range []int32{-1, 7, 3} {
		_ = binary.Write(&data, binary.LittleEndian, v)
	}
	x, err = ReadNpy(npy("{'descr': '<i4', 'fortran_order': False, 'shape': (3,), }\n", data.Bytes()),
		backends.KindCore, "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 7, 3}, must.M1(x.Flat()))

	_, err = ReadNpy(npy("{'descr': '|b1', 'fortran_order': False, 'shape': (3,), }\n", []byte{1, 0, 1}),
		backends.KindCore, "x")
	require.ErrorIs(t, err, errs.ErrUnsupportedOperation)

	_, err = ReadNpy(npy("{'descr': '<f8', 'fortran_order': False, 'shape': (3,), }\n", []byte{1, 2}),
		backends.KindCore, "x")
	require.ErrorIs(t, err, errs.ErrBackendFailure)

	_, err = ReadNpy(bytes.NewBufferString("not a numpy file"), backends.KindCore, "x")
	require.ErrorIs(t, err, errs.ErrBackendFailure)
}

func TestNpz(t *testing.T) {
	a := must.M1(tensors.Build(backends.KindCore, "a", 2, 2))
	b := must.M1(tensors.Build(backends.KindDisk, "b", 3))
	defer func() { _ = a.Close() }()
	defer func() { _ = b.Close() }()
	require.NoError(t, a.SetFlat([]float64{1, 2, 3, 4}))
	require.NoError(t, b.SetFlat([]float64{5, 6, 7}))

	filePath := filepath.Join(t.TempDir(), "ab.npz")
	require.NoError(t, SaveNpz(filePath, map[string]tensors.Tensor{"a": a, "b": b}))
	loaded, err := LoadNpz(filePath, backends.KindDistributed)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for name, t2 := range loaded {
		assert.Equal(t, backends.KindDistributed, t2.Kind())
		assert.Equal(t, name, t2.Name())
	}
	assert.True(t, loaded["a"].Equal(a))
	assert.True(t, loaded["b"].Equal(b))
}
