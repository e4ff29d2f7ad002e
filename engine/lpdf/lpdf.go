// Package lpdf provides the production layout engine, backed by the
// github.com/ledongthuc/pdf reader.
//
// The library reports positioned text runs and drawn rectangles per page.
// Text runs are merged into word-level fragments; thin drawn rectangles are
// interpreted as ruled lines so lattice-style tables keep their grid signal.
// Pages are parsed lazily and results cached, guarded by a mutex because the
// underlying reader is not documented as safe for concurrent page access.
package lpdf

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/cdehaan/lattice/engine"
	"github.com/cdehaan/lattice/model"
)

// Maximum thickness for a drawn rectangle to be treated as a single ruled
// line rather than a box outline.
const ruleThickness = 2.0

// Gap between text runs, as a multiple of font size, beyond which runs are
// not merged into one fragment.
const mergeGapRatio = 0.3

// Engine is a LayoutEngine over an in-memory PDF byte stream.
type Engine struct {
	mu     sync.Mutex
	reader *pdf.Reader
	cache  map[int]*engine.PageGeometry
}

var _ engine.LayoutEngine = (*Engine)(nil)
var _ engine.MetadataProvider = (*Engine)(nil)

// New creates an engine for the given PDF bytes.
func New(data []byte) (*Engine, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &Engine{
		reader: reader,
		cache:  make(map[int]*engine.PageGeometry),
	}, nil
}

// PageCount returns the number of pages in the document.
func (e *Engine) PageCount() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reader.NumPage(), nil
}

// PageSize reads the page's media box without parsing its content stream.
func (e *Engine) PageSize(index int) (width, height float64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 || index >= e.reader.NumPage() {
		return 0, 0, fmt.Errorf("page index %d out of range", index)
	}
	page := e.reader.Page(index + 1)
	if page.V.IsNull() {
		return 0, 0, fmt.Errorf("page %d: missing page object", index+1)
	}
	width, height = mediaBox(page)
	return width, height, nil
}

// PageGeometry parses the page at the given 0-based index into geometry
// primitives. Results are cached; repeated calls for the same page are cheap.
func (e *Engine) PageGeometry(ctx context.Context, index int) (geom *engine.PageGeometry, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if cached, ok := e.cache[index]; ok {
		return cached, nil
	}

	if index < 0 || index >= e.reader.NumPage() {
		return nil, fmt.Errorf("page index %d out of range", index)
	}

	// The underlying content stream interpreter panics on some malformed
	// streams; surface that as an error instead of taking the process down.
	defer func() {
		if r := recover(); r != nil {
			geom = nil
			err = fmt.Errorf("page %d: content parse failure: %v", index+1, r)
		}
	}()

	page := e.reader.Page(index + 1) // library pages are 1-indexed
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d: missing page object", index+1)
	}

	width, height := mediaBox(page)
	content := page.Content()

	geom = &engine.PageGeometry{
		Index:     index,
		Width:     width,
		Height:    height,
		Fragments: mergeTextRuns(content.Text),
		Lines:     rectsToLines(content.Rect),
	}
	e.cache[index] = geom
	return geom, nil
}

// Metadata reads the document information dictionary. Missing entries
// yield empty fields.
func (e *Engine) Metadata() model.Metadata {
	e.mu.Lock()
	defer e.mu.Unlock()

	info := e.reader.Trailer().Key("Info")
	if info.IsNull() {
		return model.Metadata{}
	}
	return model.Metadata{
		Title:    infoString(info, "Title"),
		Author:   infoString(info, "Author"),
		Creator:  infoString(info, "Creator"),
		Producer: infoString(info, "Producer"),
	}
}

func infoString(info pdf.Value, key string) string {
	v := info.Key(key)
	if v.Kind() != pdf.String {
		return ""
	}
	return v.RawString()
}

// mediaBox resolves the page media box, walking up the page tree for
// inherited values. Defaults to US Letter when absent or degenerate.
func mediaBox(page pdf.Page) (width, height float64) {
	v := page.V.Key("MediaBox")
	for parent := page.V.Key("Parent"); v.IsNull() && !parent.IsNull(); parent = parent.Key("Parent") {
		v = parent.Key("MediaBox")
	}

	if !v.IsNull() && v.Len() == 4 {
		x0 := v.Index(0).Float64()
		y0 := v.Index(1).Float64()
		x1 := v.Index(2).Float64()
		y1 := v.Index(3).Float64()
		width = x1 - x0
		height = y1 - y0
	}

	if width <= 0 || height <= 0 {
		width, height = 612, 792
	}
	return width, height
}

// mergeTextRuns merges the library's short text runs into word-level
// fragments. Runs on the same baseline whose horizontal gap is small
// relative to the font size belong to the same fragment.
func mergeTextRuns(texts []pdf.Text) []model.TextFragment {
	var fragments []model.TextFragment

	var current *model.TextFragment
	var lastEnd float64

	flush := func() {
		if current != nil && current.Text != "" {
			fragments = append(fragments, *current)
		}
		current = nil
	}

	for _, t := range texts {
		if t.S == "" {
			continue
		}

		height := t.FontSize
		if height <= 0 {
			height = 1
		}

		sameRun := current != nil &&
			abs(t.Y-current.BBox.Y) <= height*0.2 &&
			t.X >= lastEnd-height*0.05 &&
			t.X-lastEnd <= height*mergeGapRatio &&
			t.Font == current.FontName

		if sameRun {
			current.Text += t.S
			current.BBox.Width = (t.X + t.W) - current.BBox.X
		} else {
			flush()
			current = &model.TextFragment{
				Text:     t.S,
				BBox:     model.NewBBox(t.X, t.Y, t.W, height),
				FontSize: t.FontSize,
				FontName: t.Font,
			}
		}
		lastEnd = t.X + t.W
	}
	flush()

	return fragments
}

// rectsToLines converts drawn rectangles into ruled lines. Thin rectangles
// become a single line through their middle; larger ones contribute their
// four border edges, which is how many generators draw cell borders.
func rectsToLines(rects []pdf.Rect) []model.Line {
	var lines []model.Line

	for _, r := range rects {
		w := r.Max.X - r.Min.X
		h := r.Max.Y - r.Min.Y

		switch {
		case h <= ruleThickness && w > ruleThickness:
			y := (r.Min.Y + r.Max.Y) / 2
			lines = append(lines, model.Line{
				Start: model.Point{X: r.Min.X, Y: y},
				End:   model.Point{X: r.Max.X, Y: y},
				Width: h,
			})
		case w <= ruleThickness && h > ruleThickness:
			x := (r.Min.X + r.Max.X) / 2
			lines = append(lines, model.Line{
				Start: model.Point{X: x, Y: r.Min.Y},
				End:   model.Point{X: x, Y: r.Max.Y},
				Width: w,
			})
		case w > ruleThickness && h > ruleThickness:
			lines = append(lines,
				model.Line{Start: model.Point{X: r.Min.X, Y: r.Min.Y}, End: model.Point{X: r.Max.X, Y: r.Min.Y}},
				model.Line{Start: model.Point{X: r.Min.X, Y: r.Max.Y}, End: model.Point{X: r.Max.X, Y: r.Max.Y}},
				model.Line{Start: model.Point{X: r.Min.X, Y: r.Min.Y}, End: model.Point{X: r.Min.X, Y: r.Max.Y}},
				model.Line{Start: model.Point{X: r.Max.X, Y: r.Min.Y}, End: model.Point{X: r.Max.X, Y: r.Max.Y}},
			)
		}
	}

	return lines
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
