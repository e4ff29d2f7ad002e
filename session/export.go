package session

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cdehaan/lattice/model"
	"github.com/cdehaan/lattice/normalize"
)

// Format identifies a table export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatTSV      Format = "tsv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat converts a format name into a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatTSV:
		return FormatTSV, nil
	case FormatMarkdown, Format("md"):
		return FormatMarkdown, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q", name)
}

// jsonTable is the wire shape of one exported table.
type jsonTable struct {
	Page    int        `json:"page"`
	Index   int        `json:"index"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Export writes one table to w in the requested format. Typed columns are
// rendered canonically: dates as 2006-01-02 and numbers without currency
// symbols or thousands separators.
func Export(w io.Writer, table model.Table, format Format) error {
	rendered := renderTyped(table)

	switch format {
	case FormatCSV:
		_, err := io.WriteString(w, rendered.ToCSV())
		return err
	case FormatTSV:
		_, err := io.WriteString(w, rendered.ToTSV())
		return err
	case FormatMarkdown:
		_, err := io.WriteString(w, rendered.ToMarkdown())
		return err
	case FormatJSON:
		names := make([]string, len(rendered.Columns))
		for i, col := range rendered.Columns {
			names[i] = col.String()
		}
		enc := json.NewEncoder(w)
		return enc.Encode(jsonTable{
			Page:    rendered.PageIndex,
			Index:   rendered.Index,
			Columns: names,
			Rows:    rendered.Rows,
		})
	}
	return fmt.Errorf("unknown export format %q", format)
}

// ExportAll writes every table in the session to w, separated by blank
// lines for the text formats. JSON output is one object per table, one
// per line.
func ExportAll(w io.Writer, s *Session, format Format) error {
	for i, table := range s.Tables() {
		if i > 0 && format != FormatJSON {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := Export(w, table, format); err != nil {
			return fmt.Errorf("exporting table %d: %w", i, err)
		}
	}
	return nil
}

// renderTyped returns a copy of the table with typed columns rendered in
// canonical form. Values that fail to parse under the column type are
// left as extracted.
func renderTyped(table model.Table) model.Table {
	out := table
	out.Rows = make([][]string, len(table.Rows))
	for r, row := range table.Rows {
		out.Rows[r] = make([]string, len(row))
		for c, value := range row {
			out.Rows[r][c] = renderValue(value, columnType(table.Columns, c))
		}
	}
	return out
}

func columnType(columns []model.ColumnType, col int) model.ColumnType {
	if col < 0 || col >= len(columns) {
		return model.ColumnText
	}
	return columns[col]
}

func renderValue(value string, kind model.ColumnType) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	switch kind {
	case model.ColumnInteger:
		if n, err := strconv.ParseInt(normalize.StripNumeric(trimmed), 10, 64); err == nil {
			return strconv.FormatInt(n, 10)
		}
	case model.ColumnDecimal:
		if f, err := strconv.ParseFloat(normalize.StripNumeric(trimmed), 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case model.ColumnDate:
		if d, ok := normalize.ParseDate(trimmed); ok {
			return d.Format("2006-01-02")
		}
	}
	return value
}
