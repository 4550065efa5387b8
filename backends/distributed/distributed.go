// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package distributed implements the KindDistributed storage engine: a logical tensor sharded along its
// leading axis over a mesh of ranks, each rank holding a contiguous block of rows in its own in-core buffer.
//
// The number of ranks is given by the "ranks" configuration option (e.g.
// TENSOREXPR_BACKEND="distributed:ranks=4"), DefaultRanks by default.
//
// Element-wise operations and reductions run on all ranks concurrently, with no data movement when the
// operands are sharded the same way. Contractions, permutations and slices gather the tensor, run the
// kernel and scatter the result back to the ranks.
//
// It registers itself in the backends registry when imported.
package distributed

import (
	"fmt"
	"math"

	"github.com/gomlx/tensorexpr/backends"
	"github.com/gomlx/tensorexpr/backends/kernels"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/indices"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

func init() {
	backends.Register(backends.KindDistributed, New)
}

// DefaultRanks is the number of ranks used if the configuration doesn't set "ranks".
var DefaultRanks = 2

// Storage of a distributed tensor.
type Storage struct {
	name    string
	dims    dims.Dimension
	rowSize int
	shards  []*shard
}

// shard holds the rows [start, end) of the leading axis.
type shard struct {
	rank       int
	start, end int
	buf        *kernels.Buffer
}

var _ backends.Storage = (*Storage)(nil)

// New creates a zero-initialized distributed storage. It implements backends.Constructor.
func New(config backends.Config, name string, d dims.Dimension) (backends.Storage, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	numRanks, err := config.Int("ranks", DefaultRanks)
	if err != nil {
		return nil, err
	}
	if numRanks < 1 {
		return nil, errs.Errorf(errs.ErrUnsupportedOperation, "distributed tensor %q needs at least 1 rank, got %d", name, numRanks)
	}
	s := &Storage{name: name, dims: d.Clone(), rowSize: 1}
	numRows := 1
	if d.Rank() > 0 {
		numRows = d[0]
		s.rowSize = d[1:].Size()
	} else {
		// Scalars live in rank 0 only.
		numRanks = 1
	}
	s.shards = make([]*shard, numRanks)
	for rank := range numRanks {
		start := rank * numRows / numRanks
		end := (rank + 1) * numRows / numRanks
		shardDims := d.Clone()
		if d.Rank() > 0 {
			shardDims[0] = end - start
		}
		s.shards[rank] = &shard{
			rank:  rank,
			start: start,
			end:   end,
			buf: kernels.NewBuffer(backends.KindCore, fmt.Sprintf("%s[rank=%d]", name, rank), shardDims,
				make([]float64, shardDims.Size())),
		}
	}
	klog.V(1).Infof("distributed: tensor %q%s sharded over %d ranks", name, d, numRanks)
	return s, nil
}

// Kind implements backends.Storage.
func (s *Storage) Kind() backends.Kind { return backends.KindDistributed }

// Name implements backends.Storage.
func (s *Storage) Name() string { return s.name }

// Dims implements backends.Storage.
func (s *Storage) Dims() dims.Dimension { return s.dims }

// NumRanks returns the number of ranks the tensor is sharded over.
func (s *Storage) NumRanks() int { return len(s.shards) }

// ShardRows returns the range of rows of the leading axis held by the given rank.
func (s *Storage) ShardRows(rank int) dims.Range {
	return dims.Range{Start: s.shards[rank].start, End: s.shards[rank].end}
}

func (s *Storage) checkLive() error {
	if s.shards == nil {
		return errs.Errorf(errs.ErrBackendFailure, "distributed tensor %q used after Close", s.name)
	}
	return nil
}

// forEachShard runs fn on all ranks concurrently, and returns the first error.
func (s *Storage) forEachShard(fn func(sh *shard) error) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	var g errgroup.Group
	for _, sh := range s.shards {
		g.Go(func() error { return fn(sh) })
	}
	return g.Wait()
}

// sameLayout returns x as a distributed storage if it is sharded exactly like s.
func (s *Storage) sameLayout(x backends.Storage) (*Storage, bool) {
	xs, ok := x.(*Storage)
	if !ok || xs == s || xs.shards == nil || len(xs.shards) != len(s.shards) || !xs.dims.Equal(s.dims) {
		return nil, false
	}
	return xs, true
}

// elementWise runs fn on every shard with the matching part of x: x's own shard if it is sharded the same
// way, or the slice of its flat contents otherwise.
func (s *Storage) elementWise(x backends.Storage, fn func(sh *shard, xPart []float64) error) error {
	if !x.Dims().Equal(s.dims) {
		return errs.Errorf(errs.ErrDimensionMismatch, "distributed tensor %q has dimensions %s, operand %q has %s",
			s.name, s.dims, x.Name(), x.Dims())
	}
	if xs, ok := s.sameLayout(x); ok {
		return s.forEachShard(func(sh *shard) error {
			return fn(sh, xs.shards[sh.rank].buf.FlatView())
		})
	}
	xFlat, err := backends.Flat(x)
	if err != nil {
		return err
	}
	return s.forEachShard(func(sh *shard) error {
		return fn(sh, xFlat[sh.start*s.rowSize:sh.end*s.rowSize])
	})
}

// ScaleAndAdd implements backends.Storage.
func (s *Storage) ScaleAndAdd(alpha float64, x backends.Storage) error {
	return s.elementWise(x, func(sh *shard, xPart []float64) error {
		kernels.ScaleAndAdd(alpha, xPart, sh.buf.FlatView())
		return nil
	})
}

// PointwiseMultiply implements backends.Storage.
func (s *Storage) PointwiseMultiply(x backends.Storage) error {
	return s.elementWise(x, func(sh *shard, xPart []float64) error {
		kernels.PointwiseMultiply(nil, xPart, sh.buf.FlatView())
		return nil
	})
}

// PointwiseDivide implements backends.Storage.
func (s *Storage) PointwiseDivide(x backends.Storage) error {
	return s.elementWise(x, func(sh *shard, xPart []float64) error {
		kernels.PointwiseDivide(nil, xPart, sh.buf.FlatView())
		return nil
	})
}

// Dot implements backends.Storage: each rank computes its partial sum, which are then reduced.
func (s *Storage) Dot(x backends.Storage) (float64, error) {
	partials := make([]float64, len(s.shards))
	err := s.elementWise(x, func(sh *shard, xPart []float64) error {
		partials[sh.rank] = kernels.Dot(sh.buf.FlatView(), xPart)
		return nil
	})
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, partial := range partials {
		sum += partial
	}
	return sum, nil
}

// Norm implements backends.Storage.
func (s *Storage) Norm(power float64) (float64, error) {
	partials := make([]float64, len(s.shards))
	err := s.forEachShard(func(sh *shard) error {
		if power == 0 {
			partials[sh.rank] = kernels.Norm(sh.buf.FlatView(), 0)
		} else {
			partials[sh.rank] = kernels.PowerSum(sh.buf.FlatView(), power)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if power == 0 {
		var maxAbs float64
		for _, partial := range partials {
			maxAbs = max(maxAbs, partial)
		}
		return maxAbs, nil
	}
	var sum float64
	for _, partial := range partials {
		sum += partial
	}
	return math.Pow(sum, 1/power), nil
}

// Zero implements backends.Storage.
func (s *Storage) Zero() error {
	return s.forEachShard(func(sh *shard) error { return sh.buf.Zero() })
}

// Scale implements backends.Storage.
func (s *Storage) Scale(alpha float64) error {
	return s.forEachShard(func(sh *shard) error { return sh.buf.Scale(alpha) })
}

// locate returns the shard holding the element at index, and the index within the shard.
func (s *Storage) locate(index []int) (*shard, []int, error) {
	if err := s.checkLive(); err != nil {
		return nil, nil, err
	}
	if _, err := s.dims.FlatIndex(index); err != nil {
		return nil, nil, err
	}
	if len(index) == 0 {
		return s.shards[0], index, nil
	}
	for _, sh := range s.shards {
		if index[0] >= sh.start && index[0] < sh.end {
			local := append([]int{index[0] - sh.start}, index[1:]...)
			return sh, local, nil
		}
	}
	return nil, nil, errs.Errorf(errs.ErrBackendFailure, "no rank holds row %d of distributed tensor %q", index[0], s.name)
}

// At implements backends.Storage.
func (s *Storage) At(index []int) (float64, error) {
	sh, local, err := s.locate(index)
	if err != nil {
		return 0, err
	}
	return sh.buf.At(local)
}

// Set implements backends.Storage.
func (s *Storage) Set(index []int, value float64) error {
	sh, local, err := s.locate(index)
	if err != nil {
		return err
	}
	return sh.buf.Set(local, value)
}

// ReadFlat implements backends.Storage: it gathers the rows of all ranks.
func (s *Storage) ReadFlat(dst []float64) error {
	if len(dst) != s.dims.Size() {
		return errs.Errorf(errs.ErrDimensionMismatch, "reading %d elements from distributed tensor %q of dimensions %s",
			len(dst), s.name, s.dims)
	}
	return s.forEachShard(func(sh *shard) error {
		return sh.buf.ReadFlat(dst[sh.start*s.rowSize : sh.end*s.rowSize])
	})
}

// WriteFlat implements backends.Storage: it scatters the rows to all ranks.
func (s *Storage) WriteFlat(src []float64) error {
	if len(src) != s.dims.Size() {
		return errs.Errorf(errs.ErrDimensionMismatch, "writing %d elements to distributed tensor %q of dimensions %s",
			len(src), s.name, s.dims)
	}
	return s.forEachShard(func(sh *shard) error {
		return sh.buf.WriteFlat(src[sh.start*s.rowSize : sh.end*s.rowSize])
	})
}

// gathered runs fn over a gathered copy of the tensor, and scatters the result back to the ranks.
// The gather is skipped if load is false, when fn overwrites every element.
func (s *Storage) gathered(op string, load bool, fn func(full *kernels.Buffer) error) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	klog.V(2).Infof("distributed: %s on %q gathers %s from %d ranks", op, s.name, s.dims, len(s.shards))
	full := kernels.NewBuffer(backends.KindCore, s.name, s.dims, make([]float64, s.dims.Size()))
	if load {
		if err := s.ReadFlat(full.FlatView()); err != nil {
			return err
		}
	}
	if err := fn(full); err != nil {
		return err
	}
	return s.WriteFlat(full.FlatView())
}

// Contract implements backends.Storage.
func (s *Storage) Contract(a, b backends.Storage, cInds, aInds, bInds indices.Indices, alpha, beta float64) error {
	return s.gathered("contract", beta != 0, func(full *kernels.Buffer) error {
		return full.Contract(a, b, cInds, aInds, bInds, alpha, beta)
	})
}

// Permute implements backends.Storage.
func (s *Storage) Permute(a backends.Storage, cInds, aInds indices.Indices, alpha, beta float64) error {
	return s.gathered("permute", beta != 0, func(full *kernels.Buffer) error {
		return full.Permute(a, cInds, aInds, alpha, beta)
	})
}

// Slice implements backends.Storage. Elements outside cRange are kept, so the tensor is always gathered.
func (s *Storage) Slice(a backends.Storage, cRange, aRange dims.IndexRange, alpha, beta float64) error {
	return s.gathered("slice", true, func(full *kernels.Buffer) error {
		return full.Slice(a, cRange, aRange, alpha, beta)
	})
}

// Close implements backends.Storage.
func (s *Storage) Close() error {
	for _, sh := range s.shards {
		sh.buf.Release()
	}
	s.shards = nil
	return nil
}
