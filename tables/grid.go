package tables

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/tidwall/rtree"
	"golang.org/x/text/unicode/norm"

	"github.com/cdehaan/lattice/engine"
	"github.com/cdehaan/lattice/model"
)

// ErrAmbiguousGrid indicates a region whose content cannot be reconciled
// into a rectangular cell grid. The region is dropped; the rest of the
// document is unaffected.
var ErrAmbiguousGrid = errors.New("ambiguous cell grid")

// Fraction of a row band a fragment must cover before it counts as
// occupying that band for span and straddle detection.
const straddleCoverage = 0.6

// Multiple over the median height (or width) beyond which a fragment is
// treated as potentially spanning several rows (or columns).
const spanOutlierRatio = 1.8

// FragmentIndex is a spatial index over page fragments, answering
// "which fragments sit inside this box" queries during cell extraction.
type FragmentIndex struct {
	tree      rtree.RTreeG[int]
	fragments []model.TextFragment
}

// NewFragmentIndex builds an index over the given fragments.
func NewFragmentIndex(fragments []model.TextFragment) *FragmentIndex {
	idx := &FragmentIndex{fragments: fragments}
	for i, f := range fragments {
		idx.tree.Insert(
			[2]float64{f.BBox.Left(), f.BBox.Bottom()},
			[2]float64{f.BBox.Right(), f.BBox.Top()},
			i,
		)
	}
	return idx
}

// Within returns the fragments whose center lies inside the box.
func (ix *FragmentIndex) Within(bbox model.BBox) []model.TextFragment {
	var result []model.TextFragment
	ix.tree.Search(
		[2]float64{bbox.Left(), bbox.Bottom()},
		[2]float64{bbox.Right(), bbox.Top()},
		func(_, _ [2]float64, i int) bool {
			if bbox.Contains(ix.fragments[i].BBox.Center()) {
				result = append(result, ix.fragments[i])
			}
			return true
		},
	)
	return result
}

// CellExtractor converts a detected region plus the underlying page
// geometry into a cell grid.
type CellExtractor struct {
	// Tolerance for band clustering and boundary comparisons (points)
	AlignmentTolerance float64
}

// NewCellExtractor creates a cell extractor with default settings.
func NewCellExtractor() *CellExtractor {
	return &CellExtractor{AlignmentTolerance: 2.0}
}

// Extract builds the cell grid for a region. Row and column bands are
// derived from fragment interval overlap, fragments are assigned to cells
// by center point, and multi-line content within one cell is joined with
// newlines. A cell spanning several grid positions is stored once at its
// anchor with span > 1. Fails with an error wrapping ErrAmbiguousGrid
// when the region cannot be reconciled into a rectangular grid.
func (ce *CellExtractor) Extract(ctx context.Context, region model.Region, geom *engine.PageGeometry, index *FragmentIndex) (*model.CellGrid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if index == nil {
		index = NewFragmentIndex(geom.Fragments)
	}
	fragments := index.Within(region.BBox)
	if len(fragments) == 0 {
		return nil, fmt.Errorf("%w: region contains no text", ErrAmbiguousGrid)
	}

	// Height and width outliers are span candidates; they are excluded
	// from band derivation so they cannot bridge two bands into one.
	tall := spanOutliers(fragments, func(f model.TextFragment) float64 { return f.BBox.Height })
	wide := spanOutliers(fragments, func(f model.TextFragment) float64 { return f.BBox.Width })

	rows := rowBands(exclude(fragments, tall), ce.AlignmentTolerance)
	cols := columnBands(exclude(fragments, wide), ce.AlignmentTolerance)

	rowCount := len(rows) - 1
	colCount := len(cols) - 1
	if rowCount < 1 || colCount < 1 {
		return nil, fmt.Errorf("%w: no separable rows or columns", ErrAmbiguousGrid)
	}

	// Group fragments per base cell, recording row spans for tall
	// fragments that cover several bands.
	groups := make(map[[2]int][]model.TextFragment)
	spans := make(map[[2]int]int)

	for _, frag := range fragments {
		row, col := CellIndex(frag.BBox.Center(), rows, cols)
		if tall[frag] {
			first, count := coveredRowBands(frag.BBox, rows)
			if count > 1 {
				if !region.Ruled {
					return nil, fmt.Errorf("%w: %q crosses %d row bands with no ruling to anchor it",
						ErrAmbiguousGrid, truncate(frag.Text, 20), count)
				}
				row = first
			}
			if row >= 0 && col >= 0 {
				key := [2]int{row, col}
				if count > spans[key] {
					spans[key] = count
				}
			}
		}
		if row < 0 || col < 0 {
			continue
		}
		key := [2]int{row, col}
		groups[key] = append(groups[key], frag)
	}

	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no fragment maps onto the grid", ErrAmbiguousGrid)
	}

	grid := &model.CellGrid{
		Region:   region,
		RowCount: rowCount,
		ColCount: colCount,
	}

	keys := make([][2]int, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	covered := make(map[[2]int]bool)
	for _, key := range keys {
		if covered[key] {
			// Position absorbed by an earlier span; fold its text into
			// the covering anchor.
			if anchor := coveringAnchor(grid, key[0], key[1]); anchor != nil {
				extra := assembleCellText(groups[key])
				if extra != "" {
					anchor.Text = strings.TrimRight(anchor.Text+"\n"+extra, "\n")
				}
			}
			continue
		}

		cell := model.Cell{
			Row:     key[0],
			Col:     key[1],
			Text:    assembleCellText(groups[key]),
			RowSpan: 1,
			ColSpan: 1,
			BBox:    contentBBox(groups[key]),
		}
		if s := spans[key]; s > 1 {
			cell.RowSpan = s
			if cell.Row+cell.RowSpan > rowCount {
				cell.RowSpan = rowCount - cell.Row
			}
		}

		ce.growSpans(&cell, rows, cols, groups, covered)
		grid.Cells = append(grid.Cells, cell)
	}

	return grid, nil
}

// growSpans extends a cell over adjacent empty grid positions its content
// box reaches into, marking covered positions. Growth stops at positions
// that hold their own content, so spans never overlap.
func (ce *CellExtractor) growSpans(cell *model.Cell, rows, cols []float64, groups map[[2]int][]model.TextFragment, covered map[[2]int]bool) {
	tol := ce.AlignmentTolerance

	// Column span: content extends right past the next column boundary.
	for next := cell.Col + cell.ColSpan; next < len(cols)-1; next++ {
		if cell.BBox.Right() <= cols[next]+tol {
			break
		}
		if _, occupied := groups[[2]int{cell.Row, next}]; occupied {
			break
		}
		cell.ColSpan++
	}

	// Row span: content extends down past the next row boundary.
	for next := cell.Row + cell.RowSpan; next < len(rows)-1; next++ {
		if cell.BBox.Bottom() >= rows[next]-tol {
			break
		}
		if _, occupied := groups[[2]int{next, cell.Col}]; occupied {
			break
		}
		cell.RowSpan++
	}

	for r := cell.Row; r < cell.Row+cell.RowSpan; r++ {
		for c := cell.Col; c < cell.Col+cell.ColSpan; c++ {
			if r == cell.Row && c == cell.Col {
				continue
			}
			covered[[2]int{r, c}] = true
		}
	}
}

func coveringAnchor(grid *model.CellGrid, row, col int) *model.Cell {
	for i := range grid.Cells {
		c := &grid.Cells[i]
		if row >= c.Row && row < c.Row+c.RowSpan &&
			col >= c.Col && col < c.Col+c.ColSpan {
			return c
		}
	}
	return nil
}

// assembleCellText joins a cell's fragments into text: fragments on one
// visual line are joined with spaces left-to-right, lines are joined with
// newlines top-to-bottom.
func assembleCellText(fragments []model.TextFragment) string {
	if len(fragments) == 0 {
		return ""
	}

	sorted := make([]model.TextFragment, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		yi := sorted[i].BBox.Center().Y
		yj := sorted[j].BBox.Center().Y
		if diff := yi - yj; diff > sorted[i].BBox.Height*0.5 || diff < -sorted[i].BBox.Height*0.5 {
			return yi > yj
		}
		return sorted[i].BBox.X < sorted[j].BBox.X
	})

	var sb strings.Builder
	lastY := sorted[0].BBox.Center().Y
	for i, frag := range sorted {
		if i > 0 {
			y := frag.BBox.Center().Y
			if lastY-y > frag.BBox.Height*0.5 {
				sb.WriteString("\n")
			} else {
				sb.WriteString(" ")
			}
			lastY = y
		}
		sb.WriteString(CleanText(frag.Text))
	}

	return strings.TrimSpace(sb.String())
}

// CleanText applies NFKC normalization and strips control characters,
// preserving newlines.
func CleanText(s string) string {
	normalized := norm.NFKC.String(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normalized)
}

// spanOutliers returns the fragments whose measure exceeds the median by
// spanOutlierRatio. At most half the fragments can qualify, so band
// derivation never runs out of input.
func spanOutliers(fragments []model.TextFragment, measure func(model.TextFragment) float64) map[model.TextFragment]bool {
	values := make([]float64, len(fragments))
	for i, frag := range fragments {
		values[i] = measure(frag)
	}
	sort.Float64s(values)
	median := values[len(values)/2]

	outliers := make(map[model.TextFragment]bool)
	for _, frag := range fragments {
		if median > 0 && measure(frag) > median*spanOutlierRatio {
			outliers[frag] = true
		}
	}
	return outliers
}

func exclude(fragments []model.TextFragment, skip map[model.TextFragment]bool) []model.TextFragment {
	if len(skip) == 0 {
		return fragments
	}
	kept := make([]model.TextFragment, 0, len(fragments))
	for _, frag := range fragments {
		if !skip[frag] {
			kept = append(kept, frag)
		}
	}
	return kept
}

// rowBands groups fragments into rows by vertical interval overlap and
// returns the row boundaries, sorted descending. Boundaries between
// adjacent rows sit at the midpoint of the gap, so every band holds text.
func rowBands(fragments []model.TextFragment, tolerance float64) []float64 {
	if len(fragments) == 0 {
		return nil
	}

	sorted := make([]model.TextFragment, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BBox.Top() > sorted[j].BBox.Top()
	})

	type band struct{ top, bottom float64 }
	bands := []band{{sorted[0].BBox.Top(), sorted[0].BBox.Bottom()}}
	for _, frag := range sorted[1:] {
		cur := &bands[len(bands)-1]
		if frag.BBox.Top() >= cur.bottom-tolerance {
			if frag.BBox.Bottom() < cur.bottom {
				cur.bottom = frag.BBox.Bottom()
			}
		} else {
			bands = append(bands, band{frag.BBox.Top(), frag.BBox.Bottom()})
		}
	}

	boundaries := make([]float64, 0, len(bands)+1)
	boundaries = append(boundaries, bands[0].top)
	for i := 1; i < len(bands); i++ {
		boundaries = append(boundaries, (bands[i-1].bottom+bands[i].top)/2)
	}
	boundaries = append(boundaries, bands[len(bands)-1].bottom)
	return boundaries
}

// columnBands groups fragments into columns by horizontal interval overlap
// and returns the column boundaries, sorted ascending. Interval grouping
// keeps left-, right-, and center-aligned columns each in one band.
func columnBands(fragments []model.TextFragment, tolerance float64) []float64 {
	if len(fragments) == 0 {
		return nil
	}

	sorted := make([]model.TextFragment, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BBox.Left() < sorted[j].BBox.Left()
	})

	type band struct{ left, right float64 }
	bands := []band{{sorted[0].BBox.Left(), sorted[0].BBox.Right()}}
	for _, frag := range sorted[1:] {
		cur := &bands[len(bands)-1]
		if frag.BBox.Left() <= cur.right+tolerance {
			if frag.BBox.Right() > cur.right {
				cur.right = frag.BBox.Right()
			}
		} else {
			bands = append(bands, band{frag.BBox.Left(), frag.BBox.Right()})
		}
	}

	boundaries := make([]float64, 0, len(bands)+1)
	boundaries = append(boundaries, bands[0].left)
	for i := 1; i < len(bands); i++ {
		boundaries = append(boundaries, (bands[i-1].right+bands[i].left)/2)
	}
	boundaries = append(boundaries, bands[len(bands)-1].right)
	return boundaries
}

// coveredRowBands returns the first row band the box substantially covers
// and the number of such bands.
func coveredRowBands(bbox model.BBox, rows []float64) (first, count int) {
	first = -1
	for i := 0; i < len(rows)-1; i++ {
		bandTop := rows[i]
		bandBottom := rows[i+1]
		bandHeight := bandTop - bandBottom
		if bandHeight <= 0 {
			continue
		}

		overlapTop := minFloat(bbox.Top(), bandTop)
		overlapBottom := maxFloat(bbox.Bottom(), bandBottom)
		if overlapTop-overlapBottom >= bandHeight*straddleCoverage {
			if first < 0 {
				first = i
			}
			count++
		}
	}
	return first, count
}

func contentBBox(fragments []model.TextFragment) model.BBox {
	bbox := fragments[0].BBox
	for _, frag := range fragments[1:] {
		bbox = bbox.Union(frag.BBox)
	}
	return bbox
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
