package lattice

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/cdehaan/lattice/engine"
	"github.com/cdehaan/lattice/loader"
	"github.com/cdehaan/lattice/model"
	"github.com/cdehaan/lattice/tables"
)

// fakeEngine serves canned page geometry, optionally delaying each page
// to trigger deadline handling.
type fakeEngine struct {
	pages []*engine.PageGeometry
	delay time.Duration
}

func (f *fakeEngine) PageCount() (int, error) {
	return len(f.pages), nil
}

func (f *fakeEngine) PageSize(index int) (float64, float64, error) {
	if index < 0 || index >= len(f.pages) {
		return 0, 0, fmt.Errorf("page %d out of range", index)
	}
	return f.pages[index].Width, f.pages[index].Height, nil
}

func (f *fakeEngine) PageGeometry(ctx context.Context, index int) (*engine.PageGeometry, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(f.pages) {
		return nil, fmt.Errorf("page %d out of range", index)
	}
	return f.pages[index], nil
}

// tablePage builds a page whose fragments form a clean 3x3 grid with a
// numeric last column.
func tablePage(index int) *engine.PageGeometry {
	texts := [][]string{
		{"Item", "Size", "1"},
		{"Bolt", "M4", "2"},
		{"Nut", "M5", "3"},
	}
	var fragments []model.TextFragment
	for r, row := range texts {
		for c, text := range row {
			fragments = append(fragments, model.TextFragment{
				Text: text,
				BBox: model.NewBBox(50+float64(c)*100, 700-float64(r)*20, 80, 12),
			})
		}
	}
	return &engine.PageGeometry{Index: index, Width: 612, Height: 792, Fragments: fragments}
}

func emptyPage(index int) *engine.PageGeometry {
	return &engine.PageGeometry{Index: index, Width: 612, Height: 792}
}

func TestExtractSinglePage(t *testing.T) {
	eng := &fakeEngine{pages: []*engine.PageGeometry{tablePage(0)}}

	sess, err := FromBytes(nil).WithEngine(eng).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if sess.Count() != 1 {
		t.Fatalf("expected 1 table, got %d", sess.Count())
	}

	table, _ := sess.Table(0)
	if table.RowCount() != 3 || table.ColCount() != 3 {
		t.Fatalf("expected 3x3 table, got %dx%d", table.RowCount(), table.ColCount())
	}
	if table.Cell(1, 0) != "Bolt" {
		t.Errorf("expected Bolt at (1,0), got %q", table.Cell(1, 0))
	}
	if len(table.Columns) != 3 || table.Columns[2] != model.ColumnInteger {
		t.Errorf("expected integer last column, got %v", table.Columns)
	}
	if len(sess.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", sess.Warnings())
	}
}

func TestEmptyPageYieldsNoTables(t *testing.T) {
	eng := &fakeEngine{pages: []*engine.PageGeometry{emptyPage(0)}}

	sess, err := FromBytes(nil).WithEngine(eng).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if sess.Count() != 0 {
		t.Errorf("expected zero tables, got %d", sess.Count())
	}
	if len(sess.Warnings()) != 0 {
		t.Errorf("an empty page is not a warning: %v", sess.Warnings())
	}
}

func TestDeterministicReExtraction(t *testing.T) {
	eng := &fakeEngine{pages: []*engine.PageGeometry{tablePage(0), tablePage(1)}}
	base := FromBytes(nil).WithEngine(eng).Workers(4)

	first, err := base.Extract(context.Background())
	if err != nil {
		t.Fatalf("first extraction failed: %v", err)
	}
	second, err := base.Extract(context.Background())
	if err != nil {
		t.Fatalf("second extraction failed: %v", err)
	}

	if !reflect.DeepEqual(first.Tables(), second.Tables()) {
		t.Error("re-extraction should produce an identical table sequence")
	}
}

func TestPageTimeoutBecomesWarning(t *testing.T) {
	eng := &fakeEngine{
		pages: []*engine.PageGeometry{tablePage(0)},
		delay: 200 * time.Millisecond,
	}

	sess, err := FromBytes(nil).
		WithEngine(eng).
		PageTimeout(5 * time.Millisecond).
		Extract(context.Background())
	if err != nil {
		t.Fatalf("a timed-out page must not fail the document: %v", err)
	}
	if sess.Count() != 0 {
		t.Errorf("expected zero tables after timeout, got %d", sess.Count())
	}

	warnings := sess.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if warnings[0].Code != WarnDetectionTimeout {
		t.Errorf("expected %s, got %s", WarnDetectionTimeout, warnings[0].Code)
	}
	if warnings[0].PageIndex != 0 {
		t.Errorf("warning should name the page, got %d", warnings[0].PageIndex)
	}
}

func TestTimeoutDoesNotAbortSiblings(t *testing.T) {
	slow := tablePage(0)
	eng := &slowFirstEngine{
		fakeEngine: fakeEngine{pages: []*engine.PageGeometry{slow, tablePage(1)}},
		slowIndex:  0,
		delay:      200 * time.Millisecond,
	}

	sess, err := FromBytes(nil).
		WithEngine(eng).
		PageTimeout(20 * time.Millisecond).
		Workers(1).
		Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if sess.Count() != 1 {
		t.Fatalf("expected the healthy page's table, got %d tables", sess.Count())
	}
	table, _ := sess.Table(0)
	if table.PageIndex != 1 {
		t.Errorf("expected table from page 1, got page %d", table.PageIndex)
	}
	if len(sess.Warnings()) != 1 {
		t.Errorf("expected 1 timeout warning, got %v", sess.Warnings())
	}
}

// slowFirstEngine delays a single page only.
type slowFirstEngine struct {
	fakeEngine
	slowIndex int
	delay     time.Duration
}

func (s *slowFirstEngine) PageGeometry(ctx context.Context, index int) (*engine.PageGeometry, error) {
	if index == s.slowIndex {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.fakeEngine.PageGeometry(ctx, index)
}

// fixedRegionDetector returns preset regions for every page.
type fixedRegionDetector struct {
	regions []model.Region
}

func (d *fixedRegionDetector) Name() string                  { return "fixed" }
func (d *fixedRegionDetector) Configure(tables.Config) error { return nil }
func (d *fixedRegionDetector) Detect(ctx context.Context, geom *engine.PageGeometry) ([]model.Region, error) {
	out := make([]model.Region, len(d.regions))
	copy(out, d.regions)
	for i := range out {
		out[i].PageIndex = geom.Index
	}
	return out, nil
}

func TestAmbiguousRegionDropped(t *testing.T) {
	// An unruled region where one fragment crosses two row bands.
	fragments := []model.TextFragment{
		{Text: "straddler", BBox: model.NewBBox(50, 680, 80, 32)},
		{Text: "a", BBox: model.NewBBox(150, 700, 80, 12)},
		{Text: "b", BBox: model.NewBBox(250, 700, 80, 12)},
		{Text: "c", BBox: model.NewBBox(150, 680, 80, 12)},
		{Text: "d", BBox: model.NewBBox(250, 680, 80, 12)},
	}
	page := &engine.PageGeometry{Index: 0, Width: 612, Height: 792, Fragments: fragments}
	region := model.Region{BBox: model.NewBBox(40, 670, 300, 50), Confidence: 0.9, Ruled: false}

	eng := &fakeEngine{pages: []*engine.PageGeometry{page}}
	sess, err := FromBytes(nil).
		WithEngine(eng).
		WithDetector(&fixedRegionDetector{regions: []model.Region{region}}).
		Extract(context.Background())
	if err != nil {
		t.Fatalf("a dropped region must not fail the document: %v", err)
	}

	if sess.Count() != 0 {
		t.Errorf("expected the ambiguous region to be dropped, got %d tables", sess.Count())
	}
	warnings := sess.Warnings()
	if len(warnings) != 1 || warnings[0].Code != WarnAmbiguousRegion {
		t.Errorf("expected one ambiguous-region warning, got %v", warnings)
	}
}

func TestPageSelection(t *testing.T) {
	eng := &fakeEngine{pages: []*engine.PageGeometry{tablePage(0), tablePage(1), tablePage(2)}}

	sess, err := FromBytes(nil).WithEngine(eng).Pages(2).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if sess.Count() != 1 {
		t.Fatalf("expected 1 table, got %d", sess.Count())
	}
	table, _ := sess.Table(0)
	if table.PageIndex != 1 {
		t.Errorf("Pages is 1-indexed; expected page index 1, got %d", table.PageIndex)
	}
}

func TestConfigurationDoesNotMutateBase(t *testing.T) {
	eng := &fakeEngine{pages: []*engine.PageGeometry{tablePage(0), tablePage(1)}}
	base := FromBytes(nil).WithEngine(eng)

	restricted := base.Pages(1)
	if _, err := restricted.Extract(context.Background()); err != nil {
		t.Fatalf("restricted extraction failed: %v", err)
	}

	sess, err := base.Extract(context.Background())
	if err != nil {
		t.Fatalf("base extraction failed: %v", err)
	}
	if sess.Count() != 2 {
		t.Errorf("base chain should still cover all pages, got %d tables", sess.Count())
	}
}

func TestInvalidOptionFailsFast(t *testing.T) {
	eng := &fakeEngine{pages: []*engine.PageGeometry{tablePage(0)}}

	_, err := FromBytes(nil).WithEngine(eng).MergeThreshold(1.5).Extract(context.Background())
	if err == nil {
		t.Error("expected error for out-of-range merge threshold")
	}
}

func TestInvalidDocumentBytes(t *testing.T) {
	_, err := FromBytes([]byte("not a pdf")).Extract(context.Background())
	if !errors.Is(err, loader.ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := &fakeEngine{pages: []*engine.PageGeometry{tablePage(0)}}
	_, err := FromBytes(nil).WithEngine(eng).Extract(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTablesTerminal(t *testing.T) {
	eng := &fakeEngine{pages: []*engine.PageGeometry{tablePage(0)}}

	got, warnings, err := FromBytes(nil).WithEngine(eng).Tables()
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 table, got %d", len(got))
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestPageCount(t *testing.T) {
	eng := &fakeEngine{pages: []*engine.PageGeometry{tablePage(0), tablePage(1)}}

	count, err := FromBytes(nil).WithEngine(eng).PageCount()
	if err != nil {
		t.Fatalf("PageCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 pages, got %d", count)
	}
}
