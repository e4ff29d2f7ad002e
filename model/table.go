package model

import (
	"strings"
)

// Region is a candidate table area on a page, in page coordinates. Regions
// are owned by the page that produced them and never shared across pages.
type Region struct {
	PageIndex  int
	BBox       BBox
	Confidence float64 // Detection confidence (0-1)
	Ruled      bool    // Whether visible ruled lines back the region
}

// Cell is one addressable unit of extracted table content. A cell that spans
// multiple grid positions is stored once at its top-left anchor with
// RowSpan/ColSpan > 1; covered positions are omitted from the grid.
type Cell struct {
	Row     int
	Col     int
	Text    string
	RowSpan int
	ColSpan int
	BBox    BBox
}

// CellGrid is the raw cell structure extracted from one region, before
// normalization. Only anchor cells are present; positions covered by a
// span do not appear.
type CellGrid struct {
	Region   Region
	RowCount int
	ColCount int
	Cells    []Cell // Anchor cells in row-major order
}

// Anchor returns the anchor cell at (row, col), or nil if the position is
// empty or covered by a span from another anchor.
func (g *CellGrid) Anchor(row, col int) *Cell {
	for i := range g.Cells {
		if g.Cells[i].Row == row && g.Cells[i].Col == col {
			return &g.Cells[i]
		}
	}
	return nil
}

// Covered reports whether (row, col) is covered by the span of some other
// anchor cell.
func (g *CellGrid) Covered(row, col int) bool {
	for i := range g.Cells {
		c := &g.Cells[i]
		if row >= c.Row && row < c.Row+c.RowSpan &&
			col >= c.Col && col < c.Col+c.ColSpan &&
			!(row == c.Row && col == c.Col) {
			return true
		}
	}
	return false
}

// ColumnType is the inferred value type of a normalized table column.
type ColumnType int

const (
	// ColumnText is the default column type; no inference succeeded.
	ColumnText ColumnType = iota
	// ColumnInteger indicates whole-number values.
	ColumnInteger
	// ColumnDecimal indicates decimal numeric values.
	ColumnDecimal
	// ColumnDate indicates calendar date values.
	ColumnDate
)

// String returns the string representation of the column type.
func (t ColumnType) String() string {
	switch t {
	case ColumnInteger:
		return "integer"
	case ColumnDecimal:
		return "decimal"
	case ColumnDate:
		return "date"
	default:
		return "text"
	}
}

// Table is the normalized form of a region: a rectangular grid of cell
// values with a fixed column count across all rows. Tables are immutable
// once produced; all accessors return copies.
type Table struct {
	PageIndex int
	Index     int     // Position within the document's table sequence
	Region    BBox    // The region the table was extracted from
	Columns   []ColumnType
	Rows      [][]string
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int { return len(t.Rows) }

// ColCount returns the fixed column count.
func (t *Table) ColCount() int {
	if len(t.Rows) == 0 {
		return 0
	}
	return len(t.Rows[0])
}

// Cell returns the value at (row, col), or "" if out of range.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	if col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Flat returns all cell values as a row-major flat sequence, suitable for
// downstream serialization.
func (t *Table) Flat() []string {
	flat := make([]string, 0, t.RowCount()*t.ColCount())
	for _, row := range t.Rows {
		flat = append(flat, row...)
	}
	return flat
}

// ToTSV converts the table to tab-separated text. Embedded tabs and
// newlines in cell values are replaced with spaces.
func (t *Table) ToTSV() string {
	var sb strings.Builder
	for _, row := range t.Rows {
		for j, val := range row {
			if j > 0 {
				sb.WriteString("\t")
			}
			val = strings.ReplaceAll(val, "\t", " ")
			val = strings.ReplaceAll(val, "\n", " ")
			sb.WriteString(val)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ToCSV converts the table to CSV format with RFC 4180 quoting.
func (t *Table) ToCSV() string {
	var sb strings.Builder
	for _, row := range t.Rows {
		for j, val := range row {
			if j > 0 {
				sb.WriteString(",")
			}
			if strings.ContainsAny(val, ",\"\n") {
				val = "\"" + strings.ReplaceAll(val, "\"", "\"\"") + "\""
			}
			sb.WriteString(val)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ToMarkdown converts the table to a markdown table. The first row is
// rendered as the header row.
func (t *Table) ToMarkdown() string {
	if len(t.Rows) == 0 {
		return ""
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		for _, val := range row {
			sb.WriteString("| ")
			sb.WriteString(strings.ReplaceAll(val, "\n", " "))
			sb.WriteString(" ")
		}
		sb.WriteString("|\n")
	}

	writeRow(t.Rows[0])
	for range t.Rows[0] {
		sb.WriteString("|---")
	}
	sb.WriteString("|\n")
	for _, row := range t.Rows[1:] {
		writeRow(row)
	}

	return sb.String()
}
