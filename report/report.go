// Package report prints simulation results for humans.
package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/sarchlab/cachesim/simulation"
)

// Undefined is printed in place of a rate that cannot be computed.
const Undefined = "n/a"

const separator = "----------------********************-----------------"

// A Writer prints one block per trace.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter creates a report writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Header prints the banner that opens a report.
func (r *Writer) Header() error {
	r.printf("%s\n", separator)
	return r.err
}

// Footer prints the banner that closes a report.
func (r *Writer) Footer() error {
	r.printf("%s\n", separator)
	return r.err
}

// Write prints the block of one trace. A skipped trace prints a single error
// line.
func (r *Writer) Write(result simulation.Result) error {
	switch {
	case result.Unavailable():
		r.printf("Error opening file: %s (%v)\n", result.Trace, result.Err)
		return r.err
	case result.Skipped():
		r.printf("Error reading file: %s (%v)\n", result.Trace, result.Err)
		return r.err
	}

	s := result.Stats

	r.printf("File name: %s\n", filepath.Base(result.Trace))
	r.printf("----------------------\n")
	r.printf("Lines of cache: %d\n", s.NumSets)
	r.printf("Total hits is: %d\n", s.Hits)
	r.printf("Total misses is: %d\n", s.Misses)
	if s.Malformed > 0 {
		r.printf("Skipped records: %d\n", s.Malformed)
	}
	r.printf("Hit Rate (as percent) of file is: %s\n",
		percent(s.HitRate, s.Defined()))
	r.printf("Miss Rate (as percent) of file is: %s\n",
		percent(s.MissRate, s.Defined()))
	r.printf("Hits\\Miss: %s\n", number(s.HitMissRatio, s.RatioDefined()))
	r.printf("%s\n", separator)

	return r.err
}

// WriteAll prints a complete report.
func (r *Writer) WriteAll(results []simulation.Result) error {
	r.Header()
	for _, result := range results {
		r.Write(result)
	}

	return r.Footer()
}

func (r *Writer) printf(format string, args ...any) {
	if r.err != nil {
		return
	}

	_, r.err = fmt.Fprintf(r.w, format, args...)
}

func percent(v float64, defined bool) string {
	return number(v*100, defined)
}

func number(v float64, defined bool) string {
	if !defined {
		return Undefined
	}

	return fmt.Sprintf("%.6g", v)
}
