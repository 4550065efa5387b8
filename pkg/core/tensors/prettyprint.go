// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/tensorexpr/pkg/core/dims"
)

const (
	// DefaultPrintFormat is used by Print if no format is given.
	DefaultPrintFormat = "%11.6f"

	// DefaultPrintColumns is used by Print if maxCols <= 0.
	DefaultPrintColumns = 5
)

// Print writes a description of the tensor to w: a header with its name, kind, dimensions and memory.
//
// If verbose, the values are printed too, as 2D blocks of at most maxCols columns. Tensors of rank > 2 are
// printed as one matrix per index of the leading axes. If format is empty DefaultPrintFormat is used,
// and if maxCols <= 0 DefaultPrintColumns is used.
func (t Tensor) Print(w io.Writer, verbose bool, format string, maxCols int) error {
	if err := t.check(); err != nil {
		return err
	}
	if format == "" {
		format = DefaultPrintFormat
	}
	if maxCols <= 0 {
		maxCols = DefaultPrintColumns
	}
	var buf bytes.Buffer
	wf := func(format string, args ...any) { _, _ = fmt.Fprintf(&buf, format, args...) }
	wf("Tensor %q (%s): dims=%s, %s\n", t.Name(), t.Kind(), t.Dims(), humanize.IBytes(uint64(t.Numel())*8))
	if verbose {
		flat, err := t.Flat()
		if err != nil {
			return err
		}
		printValues(wf, t.Name(), t.Dims(), flat, format, maxCols)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// String returns the header of the tensor. Values are not included, see Print.
func (t Tensor) String() string {
	if !t.IsValid() {
		return "Tensor <invalid>"
	}
	var sb strings.Builder
	_ = t.Print(&sb, false, "", 0)
	return strings.TrimSuffix(sb.String(), "\n")
}

// printValues prints flat as 2D blocks: rank 0 and 1 tensors are printed as a single row.
func printValues(wf func(string, ...any), name string, d dims.Dimension, flat []float64, format string, maxCols int) {
	switch d.Rank() {
	case 0:
		wf("  "+format+"\n", flat[0])
		return
	case 1:
		printMatrix(wf, 1, d[0], flat, format, maxCols)
		return
	}
	rows, cols := d[d.Rank()-2], d[d.Rank()-1]
	matrixSize := rows * cols
	leading := d[:d.Rank()-2]
	for offset, index := range leading.Iter() {
		parts := make([]string, 0, d.Rank())
		for _, ii := range index {
			parts = append(parts, fmt.Sprint(ii))
		}
		parts = append(parts, ":", ":")
		wf("%s(%s)\n", name, strings.Join(parts, ","))
		printMatrix(wf, rows, cols, flat[offset*matrixSize:(offset+1)*matrixSize], format, maxCols)
	}
}

func printMatrix(wf func(string, ...any), rows, cols int, flat []float64, format string, maxCols int) {
	for start := 0; start < cols; start += maxCols {
		end := min(start+maxCols, cols)
		if cols > maxCols {
			wf("  columns %d to %d\n", start, end-1)
		}
		for row := range rows {
			wf("  %4d:", row)
			for col := start; col < end; col++ {
				wf(" "+format, flat[row*cols+col])
			}
			wf("\n")
		}
	}
}
