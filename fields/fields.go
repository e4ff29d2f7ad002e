// Package fields captures labeled header fields, such as invoice numbers
// and order dates, from extracted tables by pattern matching over cell
// values.
package fields

import (
	"fmt"
	"regexp"

	"github.com/cdehaan/lattice/model"
)

// Pattern describes one field to capture. The first match wins; cells
// are scanned in table order, row-major.
type Pattern struct {
	// Name is the machine-readable field key
	Name string
	// Label is the human-readable field title
	Label string
	// Expr matches the field value inside a cell
	Expr *regexp.Regexp
}

// Field is one captured value with its source position.
type Field struct {
	Name       string
	Label      string
	Value      string
	TableIndex int
	Row        int
	Col        int
}

// MustPattern builds a pattern, panicking on an invalid expression.
// Intended for package-level pattern tables.
func MustPattern(name, label, expr string) Pattern {
	return Pattern{Name: name, Label: label, Expr: regexp.MustCompile(expr)}
}

// DefaultPatterns covers the header fields of common invoice layouts.
func DefaultPatterns() []Pattern {
	return []Pattern{
		MustPattern("invoice_number", "Invoice Number", `\b\d{7}-\d{2}\b`),
		MustPattern("po_number", "PO Number", `\b\d{10}\b`),
		MustPattern("date", "Date", `\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	}
}

// Scanner captures fields from a sequence of tables.
type Scanner struct {
	patterns []Pattern
}

// NewScanner creates a scanner for the given patterns. With no patterns
// the default invoice set is used.
func NewScanner(patterns ...Pattern) *Scanner {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	return &Scanner{patterns: patterns}
}

// Scan walks the tables row-major and returns the first match for each
// pattern. Patterns with no match are absent from the result.
func (s *Scanner) Scan(tables []model.Table) []Field {
	var captured []Field
	for _, pattern := range s.patterns {
		if field, ok := s.find(pattern, tables); ok {
			captured = append(captured, field)
		}
	}
	return captured
}

func (s *Scanner) find(pattern Pattern, tables []model.Table) (Field, bool) {
	for ti, table := range tables {
		for ri, row := range table.Rows {
			for ci, value := range row {
				if match := pattern.Expr.FindString(value); match != "" {
					return Field{
						Name:       pattern.Name,
						Label:      pattern.Label,
						Value:      match,
						TableIndex: ti,
						Row:        ri,
						Col:        ci,
					}, true
				}
			}
		}
	}
	return Field{}, false
}

// Format renders captured fields as "Label: value" lines.
func Format(captured []Field) string {
	out := ""
	for i, field := range captured {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("%s: %s", field.Label, field.Value)
	}
	return out
}
