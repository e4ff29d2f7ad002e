// Package model provides the intermediate representation (IR) for the table
// extraction pipeline.
//
// This package defines the data structures that flow between pipeline stages.
// Every stage consumes and produces these types, making them the primary API
// for inspecting extraction results.
//
// # Pipeline Types
//
// Data moves through the pipeline leaf to root:
//
//   - [Document] - an immutable, validated PDF handle with per-page sizes
//   - [TextFragment], [Line] - the raw geometry primitives a layout engine
//     reports for one page
//   - [Region] - a candidate rectangular table area on a page
//   - [CellGrid] - the cell structure extracted from one region, with
//     row/column spans
//   - [Table] - the normalized, rectangular result with optional column types
//
// # Tables
//
// The [Table] type guarantees a rectangular shape: every row has the same
// column count, padded with empty values where extraction yielded fewer
// cells. Columns may carry an inferred [ColumnType].
//
// # Geometry
//
// Geometric primitives support position and layout calculations:
//
//   - [BBox] - bounding box with intersection, union, and overlap calculations
//   - [Point] - 2D point with distance calculation
package model
