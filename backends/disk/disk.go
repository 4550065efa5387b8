// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package disk implements the KindDisk storage engine: each tensor lives in its own scratch file,
// memory-mapped read-write, so tensors larger than the memory can be paged in and out by the OS.
//
// Files are created in the directory given by the "dir" configuration option (e.g.
// TENSOREXPR_BACKEND="disk:dir=/scratch"), or in os.TempDir() by default. They are removed when the
// tensor is closed, or when it is garbage collected.
//
// It registers itself in the backends registry when imported.
package disk

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/edsrzf/mmap-go"
	"github.com/gomlx/tensorexpr/backends"
	"github.com/gomlx/tensorexpr/backends/kernels"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

func init() {
	backends.Register(backends.KindDisk, New)
}

// Storage of a disk tensor.
type Storage struct {
	*kernels.Buffer
	mapping *mapping
	cleanup runtime.Cleanup
}

var _ backends.Storage = (*Storage)(nil)

// mapping owns the file and its memory map. It is kept separate from Storage so it can be released by
// a cleanup function when the Storage is garbage collected.
type mapping struct {
	once sync.Once
	path string
	file *os.File
	mmap mmap.MMap
}

const float64Size = int(unsafe.Sizeof(float64(0)))

// New creates a zero-initialized disk storage. It implements backends.Constructor.
func New(config backends.Config, name string, d dims.Dimension) (backends.Storage, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	size := d.Size()
	if size == 0 {
		// Nothing to map.
		return &Storage{Buffer: kernels.NewBuffer(backends.KindDisk, name, d, []float64{}), mapping: &mapping{}}, nil
	}

	dir := config.String("dir", os.TempDir())
	path := filepath.Join(dir, "tensorexpr-"+uuid.NewString()+".bin")
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, errs.Backend(err, "creating scratch file for disk tensor %q", name)
	}
	m := &mapping{path: path, file: file}
	// A truncated file reads as zeros: no need to initialize it.
	if err = file.Truncate(int64(size * float64Size)); err != nil {
		m.release()
		return nil, errs.Backend(err, "allocating %d bytes in %q for disk tensor %q", size*float64Size, path, name)
	}
	m.mmap, err = mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		m.release()
		return nil, errs.Backend(err, "mapping %q for disk tensor %q", path, name)
	}
	flat := unsafe.Slice((*float64)(unsafe.Pointer(&m.mmap[0])), size)
	s := &Storage{
		Buffer:  kernels.NewBuffer(backends.KindDisk, name, d, flat),
		mapping: m,
	}
	s.cleanup = runtime.AddCleanup(s, func(m *mapping) { m.release() }, m)
	klog.V(1).Infof("disk: tensor %q%s mapped from %q", name, d, path)
	return s, nil
}

// Path of the scratch file, or "" for tensors with no elements.
func (s *Storage) Path() string { return s.mapping.path }

// Flush writes the changes of the mapped memory to the file.
func (s *Storage) Flush() error {
	if s.mapping.mmap == nil {
		return nil
	}
	return errs.Backend(s.mapping.mmap.Flush(), "flushing disk tensor %q", s.Name())
}

// Close implements backends.Storage: it unmaps and removes the scratch file.
func (s *Storage) Close() error {
	s.cleanup.Stop()
	s.Release()
	return errs.Backend(s.mapping.release(), "closing disk tensor %q", s.Name())
}

// release unmaps, closes and removes the file. Only the first call has any effect.
func (m *mapping) release() (err error) {
	m.once.Do(func() {
		if m.mmap != nil {
			err = m.mmap.Unmap()
			m.mmap = nil
		}
		if m.file != nil {
			if closeErr := m.file.Close(); err == nil {
				err = closeErr
			}
			if removeErr := os.Remove(m.path); err == nil {
				err = removeErr
			}
		}
		if err != nil {
			klog.Errorf("disk: failed to release %q: %+v", m.path, err)
		}
	})
	return
}
