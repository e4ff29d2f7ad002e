// Package loader validates PDF byte streams and produces immutable document
// handles for the extraction pipeline.
//
// Validation happens in two stages. Structural checks on the raw bytes
// (header magic, end-of-file marker) reject non-PDF input with
// [ErrInvalidDocument] before any engine is involved. Page enumeration then
// goes through the layout engine; failures there surface as [ErrUnreadable].
package loader

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cdehaan/lattice/engine"
	"github.com/cdehaan/lattice/model"
)

var (
	pdfMagic = []byte("%PDF-")
	pdfEOF   = []byte("%%EOF")
)

// Region of the file tail searched for the %%EOF marker. PDF producers
// may append bytes after it, so an exact suffix match is too strict.
const eofSearchWindow = 1024

// Validate performs structural checks on raw bytes and reports whether they
// can be a well-formed PDF. It returns an error wrapping ErrInvalidDocument
// otherwise.
func Validate(data []byte) error {
	if len(data) < len(pdfMagic)+len(pdfEOF) {
		return invalid(fmt.Errorf("%d bytes is too short for a PDF", len(data)))
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return invalid(fmt.Errorf("missing %%PDF header"))
	}

	tail := data
	if len(tail) > eofSearchWindow {
		tail = tail[len(tail)-eofSearchWindow:]
	}
	if !bytes.Contains(tail, pdfEOF) {
		return invalid(fmt.Errorf("missing %%%%EOF marker"))
	}
	return nil
}

// Load validates the byte stream and builds an immutable Document handle,
// enumerating pages through the given engine. The document is identified by
// the SHA-256 of its bytes; loading the same bytes always yields the same
// hash.
func Load(data []byte, eng engine.LayoutEngine) (*model.Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	return FromEngine(eng, hex.EncodeToString(sum[:]))
}

// FromEngine builds a Document handle directly from an engine, skipping
// byte-level validation. For callers that bring their own engine and have
// no raw byte stream to validate.
func FromEngine(eng engine.LayoutEngine, hash string) (*model.Document, error) {
	count, err := eng.PageCount()
	if err != nil {
		return nil, unreadable(fmt.Errorf("enumerating pages: %w", err))
	}
	if count < 1 {
		return nil, unreadable(fmt.Errorf("document has no pages"))
	}

	pages := make([]model.PageInfo, 0, count)
	for i := 0; i < count; i++ {
		width, height, err := eng.PageSize(i)
		if err != nil {
			return nil, unreadable(fmt.Errorf("page %d: %w", i+1, err))
		}
		pages = append(pages, model.PageInfo{Index: i, Width: width, Height: height})
	}

	var metadata model.Metadata
	if provider, ok := eng.(engine.MetadataProvider); ok {
		metadata = provider.Metadata()
	}

	return model.NewDocument(hash, pages, metadata), nil
}

// WrapOpenError classifies an engine construction failure as an invalid
// document. Called by the pipeline when the engine rejects bytes that passed
// structural validation.
func WrapOpenError(err error) error {
	return invalid(err)
}
