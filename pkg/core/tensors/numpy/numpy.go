// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package numpy reads and writes tensors in Python's NumPy .npy and .npz file formats.
//
// Tensors are written as little-endian float64 ('<f8') in C (row-major) order. Reading also accepts
// '<f4', '<i4' and '<i8' data, converted to float64, and Fortran (column-major) order.
//
// Tensors of any kind can be saved, and files can be loaded into tensors of any kind.
package numpy

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/gomlx/tensorexpr/backends"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const magic = "\x93NUMPY"

// Dataspace is the layout of a stored tensor: its dimensions, all positive.
type Dataspace struct {
	Dims dims.Dimension
}

// NewDataspace returns the dataspace for a tensor of the given dimensions.
//
// It returns ErrDimensionMismatch for scalars (rank 0) and for tensors with a zero extent: those can't be
// stored.
func NewDataspace(d dims.Dimension) (Dataspace, error) {
	if err := d.Validate(); err != nil {
		return Dataspace{}, err
	}
	if d.Rank() == 0 {
		return Dataspace{}, errs.Errorf(errs.ErrDimensionMismatch, "dataspace of rank 0 not supported")
	}
	for axis, extent := range d {
		if extent == 0 {
			return Dataspace{}, errs.Errorf(errs.ErrDimensionMismatch, "dataspace %s has zero extent in axis %d", d, axis)
		}
	}
	return Dataspace{Dims: d.Clone()}, nil
}

// Size returns the number of elements.
func (ds Dataspace) Size() int { return ds.Dims.Size() }

// header returns the .npy header dictionary.
func (ds Dataspace) header() string {
	var shapeTuple string
	if ds.Dims.Rank() == 1 {
		shapeTuple = fmt.Sprintf("(%d,)", ds.Dims[0])
	} else {
		parts := make([]string, ds.Dims.Rank())
		for ii, extent := range ds.Dims {
			parts[ii] = strconv.Itoa(extent)
		}
		shapeTuple = "(" + strings.Join(parts, ", ") + ")"
	}
	return fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': %s, }", shapeTuple)
}

// WriteNpy writes the tensor to w in .npy format.
func WriteNpy(w io.Writer, t tensors.Tensor) error {
	ds, err := NewDataspace(t.Dims())
	if err != nil {
		return err
	}
	flat, err := t.Flat()
	if err != nil {
		return err
	}

	// The preamble (magic, version and header length, 10 bytes) plus the header must be a multiple of 16,
	// with the header terminated by a newline.
	var headerBuf bytes.Buffer
	headerBuf.WriteString(ds.header())
	for (10+headerBuf.Len()+1)%16 != 0 {
		headerBuf.WriteByte(' ')
	}
	headerBuf.WriteByte('\n')

	bw := bufio.NewWriter(w)
	_, _ = bw.WriteString(magic)
	_, _ = bw.Write([]byte{1, 0})
	_ = binary.Write(bw, binary.LittleEndian, uint16(headerBuf.Len()))
	_, _ = bw.Write(headerBuf.Bytes())
	var word [8]byte
	for _, v := range flat {
		binary.LittleEndian.PutUint64(word[:], math.Float64bits(v))
		if _, err = bw.Write(word[:]); err != nil {
			break
		}
	}
	if err == nil {
		err = bw.Flush()
	}
	return errs.Backend(err, "failed to write tensor %q in .npy format", t.Name())
}

// SaveNpy writes the tensor to a .npy file.
func SaveNpy(filePath string, t tensors.Tensor) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errs.Backend(err, "failed to create .npy file %q", filePath)
	}
	if err = WriteNpy(file, t); err != nil {
		_ = file.Close()
		return err
	}
	return errs.Backend(file.Close(), "failed to close .npy file %q", filePath)
}

// ReadNpy reads a tensor in .npy format from r, into a new tensor of the given kind and name.
func ReadNpy(r io.Reader, kind backends.Kind, name string) (tensors.Tensor, error) {
	descr, ds, fortranOrder, err := readHeader(r)
	if err != nil {
		return tensors.Tensor{}, err
	}
	flat, err := readValues(r, descr, ds.Size())
	if err != nil {
		return tensors.Tensor{}, err
	}
	if fortranOrder && ds.Dims.Rank() > 1 {
		flat = fortranToC(ds.Dims, flat)
	}
	t, err := tensors.Build(kind, name, ds.Dims...)
	if err != nil {
		return tensors.Tensor{}, err
	}
	if err = t.SetFlat(flat); err != nil {
		if err2 := t.Close(); err2 != nil {
			klog.Errorf("failed to release tensor %q while handling error: %+v", name, err2)
		}
		return tensors.Tensor{}, err
	}
	return t, nil
}

// LoadNpy reads a .npy file into a new tensor of the given kind and name.
func LoadNpy(filePath string, kind backends.Kind, name string) (tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return tensors.Tensor{}, errs.Backend(err, "failed to open .npy file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	t, err := ReadNpy(bufio.NewReader(file), kind, name)
	if err != nil {
		return tensors.Tensor{}, errors.WithMessagef(err, "reading %q", filePath)
	}
	return t, nil
}

func readHeader(r io.Reader) (descr string, ds Dataspace, fortranOrder bool, err error) {
	preamble := make([]byte, len(magic)+2)
	if _, err = io.ReadFull(r, preamble); err != nil {
		err = errs.Backend(err, "failed to read .npy magic string")
		return
	}
	if string(preamble[:len(magic)]) != magic {
		err = errs.Errorf(errs.ErrBackendFailure, "invalid .npy file format: magic string mismatch")
		return
	}
	major, minor := preamble[len(magic)], preamble[len(magic)+1]
	var headerLen int
	switch {
	case major == 1:
		var length uint16
		err = binary.Read(r, binary.LittleEndian, &length)
		headerLen = int(length)
	case major == 2 || major == 3:
		var length uint32
		err = binary.Read(r, binary.LittleEndian, &length)
		headerLen = int(length)
	default:
		err = errs.Errorf(errs.ErrUnsupportedOperation, "unsupported .npy version %d.%d", major, minor)
		return
	}
	if err != nil {
		err = errs.Backend(err, "failed to read .npy header length")
		return
	}
	headerBytes := make([]byte, headerLen)
	if _, err = io.ReadFull(r, headerBytes); err != nil {
		err = errs.Backend(err, "failed to read .npy header")
		return
	}
	var shape []int
	descr, shape, fortranOrder, err = parseHeader(string(headerBytes))
	if err != nil {
		return
	}
	ds, err = NewDataspace(shape)
	return
}

var (
	reDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	reFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	reShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// parseHeader extracts the descr, shape and fortran_order from a .npy header dictionary, e.g.:
// "{'descr': '<f8', 'fortran_order': False, 'shape': (2, 3), }".
func parseHeader(header string) (descr string, shape []int, fortranOrder bool, err error) {
	mDescr := reDescr.FindStringSubmatch(header)
	mFortran := reFortran.FindStringSubmatch(header)
	mShape := reShape.FindStringSubmatch(header)
	if mDescr == nil || mFortran == nil || mShape == nil {
		err = errs.Errorf(errs.ErrBackendFailure, "invalid .npy header %q", header)
		return
	}
	descr = mDescr[1]
	fortranOrder = mFortran[1] == "True"
	shape = []int{}
	for _, part := range strings.Split(mShape[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			// Trailing comma of 1D shapes, e.g. "(10,)".
			continue
		}
		extent, pErr := strconv.Atoi(part)
		if pErr != nil {
			err = errs.Backend(pErr, "invalid shape value %q in .npy header", part)
			return
		}
		shape = append(shape, extent)
	}
	return
}

// readValues reads n values of the given NumPy type, converted to float64.
func readValues(r io.Reader, descr string, n int) ([]float64, error) {
	var wordSize int
	var decode func(word []byte) float64
	switch descr {
	case "<f8":
		wordSize = 8
		decode = func(word []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(word)) }
	case "<f4":
		wordSize = 4
		decode = func(word []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(word))) }
	case "<i8":
		wordSize = 8
		decode = func(word []byte) float64 { return float64(int64(binary.LittleEndian.Uint64(word))) }
	case "<i4":
		wordSize = 4
		decode = func(word []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(word))) }
	default:
		return nil, errs.Errorf(errs.ErrUnsupportedOperation, "unsupported .npy data type %q", descr)
	}
	data := make([]byte, n*wordSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errs.Backend(err, "failed to read .npy data (expected %d bytes)", len(data))
	}
	flat := make([]float64, n)
	for ii := range flat {
		flat[ii] = decode(data[ii*wordSize : (ii+1)*wordSize])
	}
	return flat, nil
}

// fortranToC converts values in column-major order to row-major order.
func fortranToC(d dims.Dimension, fortran []float64) []float64 {
	fortranStrides := make([]int, d.Rank())
	stride := 1
	for axis, extent := range d {
		fortranStrides[axis] = stride
		stride *= extent
	}
	c := make([]float64, len(fortran))
	for cIdx, index := range d.Iter() {
		fortranIdx := 0
		for axis, idx := range index {
			fortranIdx += idx * fortranStrides[axis]
		}
		c[cIdx] = fortran[fortranIdx]
	}
	return c
}

// WriteNpz writes the tensors to w as a .npz archive, one "<name>.npy" entry per tensor.
func WriteNpz(w io.Writer, tensorsMap map[string]tensors.Tensor) error {
	zipWriter := zip.NewWriter(w)
	for name, t := range tensorsMap {
		entry, err := zipWriter.Create(name + ".npy")
		if err != nil {
			return errs.Backend(err, "failed to create %q in .npz archive", name+".npy")
		}
		if err = WriteNpy(entry, t); err != nil {
			return errors.WithMessagef(err, "failed to write tensor %q to .npz archive", name)
		}
	}
	return errs.Backend(zipWriter.Close(), "failed to close .npz archive")
}

// SaveNpz writes the tensors to a .npz file.
func SaveNpz(filePath string, tensorsMap map[string]tensors.Tensor) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errs.Backend(err, "failed to create .npz file %q", filePath)
	}
	if err = WriteNpz(file, tensorsMap); err != nil {
		_ = file.Close()
		return err
	}
	return errs.Backend(file.Close(), "failed to close .npz file %q", filePath)
}

// ReadNpz reads all tensors of a .npz archive, into new tensors of the given kind named after their entries.
func ReadNpz(r io.ReaderAt, size int64, kind backends.Kind) (map[string]tensors.Tensor, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errs.Backend(err, "failed to open .npz archive")
	}
	results := make(map[string]tensors.Tensor)
	closeAll := func() {
		for _, t := range results {
			_ = t.Close()
		}
	}
	for _, f := range zipReader.File {
		cleanPath := path.Clean(f.Name)
		if path.IsAbs(cleanPath) || strings.HasPrefix(cleanPath, "..") {
			closeAll()
			return nil, errs.Errorf(errs.ErrBackendFailure, "invalid path in .npz archive: %q", f.Name)
		}
		if !strings.HasSuffix(f.Name, ".npy") {
			continue
		}
		name := strings.TrimSuffix(f.Name, ".npy")
		rc, err := f.Open()
		if err != nil {
			closeAll()
			return nil, errs.Backend(err, "failed to open %q within .npz", f.Name)
		}
		t, err := ReadNpy(rc, kind, name)
		_ = rc.Close()
		if err != nil {
			closeAll()
			return nil, errors.WithMessagef(err, "failed to read tensor %q from .npz", f.Name)
		}
		results[name] = t
	}
	return results, nil
}

// LoadNpz reads all tensors of a .npz file.
func LoadNpz(filePath string, kind backends.Kind) (map[string]tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errs.Backend(err, "failed to open .npz file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	info, err := file.Stat()
	if err != nil {
		return nil, errs.Backend(err, "failed to stat .npz file %q", filePath)
	}
	return ReadNpz(file, info.Size(), kind)
}
