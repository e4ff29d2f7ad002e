// Package engine defines the layout engine capability contract.
//
// The extraction pipeline never parses PDF content itself; it asks a
// LayoutEngine for each page's geometry primitives (text runs and ruled
// line segments). Any engine satisfying this contract is substitutable:
// the production implementation lives in the lpdf subpackage, and tests
// drive the pipeline with synthetic engines.
package engine

import (
	"context"

	"github.com/cdehaan/lattice/model"
)

// PageGeometry holds the raw geometry primitives for one page: its media
// box dimensions, the positioned text runs, and any ruled line segments the
// engine could recover. Line support is optional; engines that cannot
// recover rules return an empty slice and detection falls back to
// whitespace analysis.
type PageGeometry struct {
	Index     int // 0-based page index
	Width     float64
	Height    float64
	Fragments []model.TextFragment
	Lines     []model.Line
}

// LayoutEngine provides page geometry for a loaded document. Implementations
// must be safe for concurrent use: the pipeline requests geometry for
// multiple pages in parallel.
type LayoutEngine interface {
	// PageCount returns the number of pages in the document.
	PageCount() (int, error)

	// PageSize returns the media box dimensions of the page at the given
	// 0-based index without parsing its content.
	PageSize(index int) (width, height float64, err error)

	// PageGeometry returns the geometry primitives for the page at the
	// given 0-based index. The context carries the per-page deadline;
	// implementations performing long scans should honor cancellation.
	PageGeometry(ctx context.Context, index int) (*PageGeometry, error)
}

// Rasterizer is an optional capability. Engines that can render a page to
// an image enable the OCR fallback for pages with no extractable text.
type Rasterizer interface {
	// PageImage renders the page at the given 0-based index and returns
	// encoded image bytes (PNG, TIFF, JPEG or BMP).
	PageImage(ctx context.Context, index int) ([]byte, error)
}

// MetadataProvider is an optional capability for engines that can read the
// document information dictionary.
type MetadataProvider interface {
	Metadata() model.Metadata
}
