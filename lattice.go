// Package lattice extracts tabular data from PDF documents through a
// fluent API.
//
// Basic usage:
//
//	sess, err := lattice.Open("invoice.pdf").Extract(context.Background())
//	if err != nil {
//	    // handle error
//	}
//	for _, table := range sess.Tables() {
//	    fmt.Print(table.ToCSV())
//	}
//	if warnings := sess.Warnings(); len(warnings) > 0 {
//	    log.Println(lattice.FormatWarnings(warnings))
//	}
//
// With options:
//
//	sess, err := lattice.Open("report.pdf").
//	    Pages(1, 2, 3).
//	    MergeThreshold(0.6).
//	    PageTimeout(5 * time.Second).
//	    Extract(ctx)
//
// Pages are processed in parallel by a bounded worker pool; recovered
// per-page and per-region failures appear as warnings on the session
// rather than aborting the document.
package lattice

import (
	"fmt"
	"os"
)

// Open prepares an Extractor for the PDF at the given path. The file is
// not read until a terminal operation runs.
//
// Example:
//
//	sess, err := lattice.Open("document.pdf").Extract(ctx)
func Open(filename string) *Extractor {
	return &Extractor{
		filename: filename,
		options:  defaultOptions(),
	}
}

// FromBytes prepares an Extractor over an in-memory PDF byte stream.
//
// Example:
//
//	sess, err := lattice.FromBytes(data).Extract(ctx)
func FromBytes(data []byte) *Extractor {
	return &Extractor{
		data:    data,
		options: defaultOptions(),
	}
}

// readSource loads the extractor's byte stream from disk when it was
// created with Open.
func (e *Extractor) readSource() error {
	if e.data != nil {
		return nil
	}
	if e.filename == "" {
		return fmt.Errorf("no document specified")
	}
	data, err := os.ReadFile(e.filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", e.filename, err)
	}
	e.data = data
	return nil
}

// Must wraps a call returning (T, error) and panics on error. Intended
// for scripts and tests where error handling would be cumbersome.
//
// Example:
//
//	count := lattice.Must(lattice.Open("document.pdf").PageCount())
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// MustTables wraps a Tables() call, panicking on error and discarding
// warnings.
//
// Example:
//
//	tables := lattice.MustTables(lattice.Open("document.pdf").Tables())
func MustTables[T any](val T, _ []Warning, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
