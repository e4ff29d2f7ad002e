// Package tables locates table regions on document pages and resolves
// them into rectangular cell grids.
//
// Detection is pluggable through the Detector interface and a registry;
// the built-in GeometricDetector combines ruled-line analysis with
// whitespace clustering and scores each candidate region with a
// confidence value. Overlapping candidates are merged, and surviving
// regions are ordered top-to-bottom, then left-to-right.
//
// The CellExtractor turns a region plus its page geometry into a
// CellGrid, assigning text fragments to cells by center point and
// detecting row and column spans. Regions that cannot be reconciled into
// a rectangular grid fail with ErrAmbiguousGrid so callers can drop them
// without abandoning the rest of the page.
package tables
