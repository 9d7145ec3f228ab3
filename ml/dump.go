// dump.go - Tensor-Inhalte als Text fuer Debugging und TRACE-Logs
//
// Dieses Modul enthaelt:
// - Dump: verschachtelte Listen im numpy-Stil, lange Achsen gekuerzt
// - LogValue: Tensor als slog.LogValuer, Dump erst beim Schreiben des Logs
package ml

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// DumpOptions configures tensor dump output format.
type DumpOptions func(*dumpOptions)

// DumpWithPrecision sets the number of decimal places to print.
func DumpWithPrecision(n int) DumpOptions {
	return func(opts *dumpOptions) {
		opts.Precision = n
	}
}

// DumpWithThreshold sets the threshold for printing the entire tensor. If the number of elements
// is less than or equal to this value, the entire tensor will be printed. Otherwise, only the
// beginning and end of each dimension will be printed.
func DumpWithThreshold(n int) DumpOptions {
	return func(opts *dumpOptions) {
		opts.Threshold = n
	}
}

// DumpWithEdgeItems sets the number of elements to print at the beginning and end of each dimension.
func DumpWithEdgeItems(n int) DumpOptions {
	return func(opts *dumpOptions) {
		opts.EdgeItems = n
	}
}

type dumpOptions struct {
	Precision, Threshold, EdgeItems int
}

// Dump converts a tensor to a human-readable string representation.
func Dump(t *Tensor, optsFuncs ...DumpOptions) string {
	opts := dumpOptions{Precision: 4, Threshold: 1000, EdgeItems: 3}
	for _, optsFunc := range optsFuncs {
		optsFunc(&opts)
	}

	if t.Numel() <= opts.Threshold {
		opts.EdgeItems = math.MaxInt
	}

	format := func(f float64) string {
		return strconv.FormatFloat(f, 'f', opts.Precision, 64)
	}
	if t.Rank() == 0 {
		return format(t.data[0])
	}

	d := &dumper{data: t.data, shape: t.shape, strides: strides(t.shape), edge: opts.EdgeItems, format: format}
	d.write(0, 0)
	return d.sb.String()
}

// LogValue prints small tensors in full and large ones with elided axes.
func (t *Tensor) LogValue() slog.Value {
	return slog.StringValue(Dump(t, DumpWithThreshold(64), DumpWithEdgeItems(2)))
}

// dumper schreibt eine Achse pro Rekursionsebene
type dumper struct {
	sb      strings.Builder
	data    []float64
	shape   []int
	strides []int
	edge    int
	format  func(float64) string
}

func (d *dumper) write(axis, offset int) {
	n := d.shape[axis]
	inner := axis == len(d.shape)-1

	// Zeilenumbruch zwischen Unterlisten, eine Leerzeile pro weiterer Achse
	brk := strings.Repeat("\n", len(d.shape)-axis-1) + strings.Repeat(" ", axis+1)
	sep := ", "
	if !inner {
		sep = "," + brk
	}

	d.sb.WriteByte('[')
	for i := 0; i < n; i++ {
		if i >= d.edge && i < n-d.edge {
			d.sb.WriteString("..., ")
			if !inner {
				d.sb.WriteString(brk)
			}
			i = n - d.edge - 1
			continue
		}

		if inner {
			text := d.format(d.data[offset+i])
			if !strings.HasPrefix(text, "-") {
				d.sb.WriteByte(' ')
			}
			d.sb.WriteString(text)
		} else {
			d.write(axis+1, offset+i*d.strides[axis])
		}

		if i < n-1 {
			d.sb.WriteString(sep)
		}
	}
	d.sb.WriteByte(']')
}
