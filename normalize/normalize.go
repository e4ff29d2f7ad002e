package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/cdehaan/lattice/model"
)

// Config controls normalization behavior.
type Config struct {
	// InferTypes enables per-column type inference
	InferTypes bool
	// TypeInferenceThreshold is the fraction of non-empty cells in a
	// column that must parse under a type before it is assigned
	TypeInferenceThreshold float64
}

// DefaultConfig returns the default normalization configuration.
func DefaultConfig() Config {
	return Config{
		InferTypes:             true,
		TypeInferenceThreshold: 0.8,
	}
}

// Normalizer turns extracted cell grids into rectangular, optionally
// typed tables. Normalization never fails; the worst case is an all-text
// table.
type Normalizer struct {
	config Config
}

// New creates a normalizer with the given configuration.
func New(config Config) *Normalizer {
	return &Normalizer{config: config}
}

// Table normalizes a cell grid. Span anchors contribute their text once
// at the anchor position; covered positions stay empty. Every row of the
// result has the same column count.
func (n *Normalizer) Table(grid *model.CellGrid) model.Table {
	rows := make([][]string, grid.RowCount)
	for i := range rows {
		rows[i] = make([]string, grid.ColCount)
	}

	for _, cell := range grid.Cells {
		if cell.Row >= 0 && cell.Row < grid.RowCount && cell.Col >= 0 && cell.Col < grid.ColCount {
			rows[cell.Row][cell.Col] = cell.Text
		}
	}

	return n.TableFromRows(grid.Region.PageIndex, grid.Region.BBox, rows)
}

// TableFromRows normalizes raw rows that may be ragged: short rows are
// padded with empty trailing cells to the widest row's column count.
func (n *Normalizer) TableFromRows(pageIndex int, region model.BBox, rows [][]string) model.Table {
	rows = PadRows(rows)

	table := model.Table{
		PageIndex: pageIndex,
		Region:    region,
		Rows:      rows,
	}

	if n.config.InferTypes {
		table.Columns = InferColumnTypes(rows, n.config.TypeInferenceThreshold)
	} else {
		table.Columns = make([]model.ColumnType, len(rows[0]))
	}
	return table
}

// PadRows makes rows rectangular by padding short rows with empty
// trailing cells. Empty input yields a single empty cell so the result
// always has at least one row and one column.
func PadRows(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if len(rows) == 0 || width == 0 {
		return [][]string{{""}}
	}

	padded := make([][]string, len(rows))
	for i, row := range rows {
		padded[i] = make([]string, width)
		copy(padded[i], row)
	}
	return padded
}

// InferColumnTypes assigns a type to each column by majority vote over
// its non-empty cells. A type wins only when at least threshold of those
// cells parse under it; otherwise the column stays text. Columns with no
// non-empty cells stay text.
func InferColumnTypes(rows [][]string, threshold float64) []model.ColumnType {
	if len(rows) == 0 {
		return nil
	}

	width := len(rows[0])
	types := make([]model.ColumnType, width)

	for col := 0; col < width; col++ {
		var total, integers, decimals, dates int
		for _, row := range rows {
			value := strings.TrimSpace(row[col])
			if value == "" {
				continue
			}
			total++
			if parsesInteger(value) {
				integers++
			}
			if parsesDecimal(value) {
				decimals++
			}
			if parsesDate(value) {
				dates++
			}
		}
		if total == 0 {
			continue
		}

		qualifies := func(count int) bool {
			return float64(count)/float64(total) >= threshold
		}
		switch {
		case qualifies(integers):
			types[col] = model.ColumnInteger
		case qualifies(decimals):
			types[col] = model.ColumnDecimal
		case qualifies(dates):
			types[col] = model.ColumnDate
		default:
			types[col] = model.ColumnText
		}
	}
	return types
}

// StripNumeric removes currency symbols and thousands separators before
// numeric parsing, so "$1,234.56" is recognized as a decimal.
func StripNumeric(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(s, "£")
	return strings.ReplaceAll(s, ",", "")
}

func parsesInteger(s string) bool {
	_, err := strconv.ParseInt(StripNumeric(s), 10, 64)
	return err == nil
}

func parsesDecimal(s string) bool {
	_, err := strconv.ParseFloat(StripNumeric(s), 64)
	return err == nil
}

// Date layouts seen in invoice and report tables.
var dateLayouts = []string{
	"1/2/06",
	"1/2/2006",
	"01/02/2006",
	"2006-01-02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseDate parses a cell value against the recognized date layouts.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func parsesDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}
