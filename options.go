package lattice

import (
	"time"

	"github.com/cdehaan/lattice/tables"
)

// ExtractOptions holds configuration for table extraction.
type ExtractOptions struct {
	// Page selection (1-indexed in API, stored as-is)
	pages []int

	// Detection
	detector       tables.Detector
	mergeThreshold float64
	pageTimeout    time.Duration

	// Normalization
	inferTypes    bool
	typeThreshold float64

	// Concurrency (0 means one worker per core)
	workers int

	// OCR fallback for pages with no embedded text
	ocrFallback bool
	ocrLanguage string
}

// defaultOptions returns the default extraction options.
func defaultOptions() ExtractOptions {
	return ExtractOptions{
		pages:          nil, // nil means all pages
		detector:       tables.NewGeometricDetector(),
		mergeThreshold: 0.5,
		pageTimeout:    0, // no per-page deadline
		inferTypes:     true,
		typeThreshold:  0.8,
		workers:        0,
		ocrFallback:    false,
		ocrLanguage:    "",
	}
}

// clone creates a deep copy of ExtractOptions. The detector instance is
// shared along the chain; it is configured once per terminal operation.
func (o ExtractOptions) clone() ExtractOptions {
	newOpts := o
	if o.pages != nil {
		newOpts.pages = make([]int, len(o.pages))
		copy(newOpts.pages, o.pages)
	}
	return newOpts
}
