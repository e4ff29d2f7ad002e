package tables

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cdehaan/lattice/engine"
	"github.com/cdehaan/lattice/model"
)

func textFrag(text string, x, y, w, h float64) model.TextFragment {
	return model.TextFragment{Text: text, BBox: model.NewBBox(x, y, w, h)}
}

// gridFragments builds a regular grid of fragments: columns 80pt wide at
// 100pt pitch starting at x=50, rows 12pt tall at 20pt pitch below y=700.
func gridFragments(rows, cols int) []model.TextFragment {
	var fragments []model.TextFragment
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			fragments = append(fragments, textFrag(
				fmt.Sprintf("r%dc%d", r, c),
				50+float64(c)*100,
				700-float64(r)*20,
				80, 12,
			))
		}
	}
	return fragments
}

func hline(y, x1, x2 float64) model.Line {
	return model.Line{Start: model.Point{X: x1, Y: y}, End: model.Point{X: x2, Y: y}, Width: 1}
}

func vline(x, y1, y2 float64) model.Line {
	return model.Line{Start: model.Point{X: x, Y: y1}, End: model.Point{X: x, Y: y2}, Width: 1}
}

func TestGeometricDetectorWhitespace(t *testing.T) {
	geom := &engine.PageGeometry{
		Index:     2,
		Width:     612,
		Height:    792,
		Fragments: gridFragments(4, 3),
	}

	regions, err := NewGeometricDetector().Detect(context.Background(), geom)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(regions))
	}

	region := regions[0]
	if region.PageIndex != 2 {
		t.Errorf("expected page index 2, got %d", region.PageIndex)
	}
	if region.Confidence < 0.4 {
		t.Errorf("expected confidence >= 0.4, got %f", region.Confidence)
	}
	if region.Ruled {
		t.Error("region without lines should not be ruled")
	}
	for _, frag := range geom.Fragments {
		if !region.BBox.Contains(frag.BBox.Center()) {
			t.Errorf("region does not cover fragment %q", frag.Text)
		}
	}
}

func TestGeometricDetectorRuled(t *testing.T) {
	var lines []model.Line
	for y := 640.0; y <= 700; y += 20 {
		lines = append(lines, hline(y, 50, 350))
	}
	for x := 50.0; x <= 350; x += 100 {
		lines = append(lines, vline(x, 640, 700))
	}

	geom := &engine.PageGeometry{Index: 0, Width: 612, Height: 792, Lines: lines}

	regions, err := NewGeometricDetector().Detect(context.Background(), geom)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(regions))
	}

	region := regions[0]
	if !region.Ruled {
		t.Error("line grid should produce a ruled region")
	}
	if region.Confidence < 0.9 {
		t.Errorf("expected confidence >= 0.9, got %f", region.Confidence)
	}
	want := model.NewBBox(50, 640, 300, 60)
	if region.BBox != want {
		t.Errorf("expected bbox %+v, got %+v", want, region.BBox)
	}
}

func TestGeometricDetectorEmptyPage(t *testing.T) {
	regions, err := NewGeometricDetector().Detect(context.Background(), &engine.PageGeometry{Index: 0})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("expected no regions on an empty page, got %d", len(regions))
	}
}

func TestGeometricDetectorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	geom := &engine.PageGeometry{Index: 0, Fragments: gridFragments(4, 3)}
	_, err := NewGeometricDetector().Detect(ctx, geom)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMergeRegionsThresholdInclusive(t *testing.T) {
	a := model.Region{BBox: model.NewBBox(0, 0, 10, 10), Confidence: 0.5}
	b := model.Region{BBox: model.NewBBox(0, 5, 10, 10), Confidence: 0.8, Ruled: true}

	// Overlap ratio is exactly 0.5: the boundary merges.
	merged := MergeRegions([]model.Region{a, b}, 0.5)
	if len(merged) != 1 {
		t.Fatalf("expected merge at exact threshold, got %d regions", len(merged))
	}
	if merged[0].Confidence != 0.8 {
		t.Errorf("merged region should keep the higher confidence, got %f", merged[0].Confidence)
	}
	if !merged[0].Ruled {
		t.Error("merged region should be ruled when either input was")
	}
	want := model.NewBBox(0, 0, 10, 15)
	if merged[0].BBox != want {
		t.Errorf("expected union bbox %+v, got %+v", want, merged[0].BBox)
	}
}

func TestMergeRegionsSixtyPercentOverlap(t *testing.T) {
	a := model.Region{BBox: model.NewBBox(0, 0, 10, 10)}
	b := model.Region{BBox: model.NewBBox(0, 4, 10, 10)}

	merged := MergeRegions([]model.Region{a, b}, 0.5)
	if len(merged) != 1 {
		t.Errorf("expected 60%% overlap to merge, got %d regions", len(merged))
	}
}

func TestMergeRegionsBelowThreshold(t *testing.T) {
	a := model.Region{BBox: model.NewBBox(0, 0, 10, 10)}
	b := model.Region{BBox: model.NewBBox(0, 7, 10, 10)}

	merged := MergeRegions([]model.Region{a, b}, 0.5)
	if len(merged) != 2 {
		t.Errorf("expected 30%% overlap to stay separate, got %d regions", len(merged))
	}
}

func TestSortRegions(t *testing.T) {
	regions := []model.Region{
		{BBox: model.NewBBox(300, 600, 100, 50)},
		{BBox: model.NewBBox(50, 600, 100, 50)},
		{BBox: model.NewBBox(50, 700, 100, 50)},
	}

	SortRegions(regions)

	if regions[0].BBox.Bottom() != 700 {
		t.Error("topmost region should sort first")
	}
	if regions[1].BBox.Left() != 50 || regions[2].BBox.Left() != 300 {
		t.Error("regions at equal height should sort left to right")
	}
}

func TestDetectorRegistry(t *testing.T) {
	detector := GetDetector("geometric")
	if detector == nil {
		t.Fatal("geometric detector not registered")
	}
	if detector.Name() != "geometric" {
		t.Errorf("expected name geometric, got %s", detector.Name())
	}

	names := ListDetectors()
	found := false
	for _, name := range names {
		if name == "geometric" {
			found = true
		}
	}
	if !found {
		t.Errorf("ListDetectors missing geometric: %v", names)
	}
}

func TestCellIndexOutsideGrid(t *testing.T) {
	rows := []float64{700, 680, 660}
	cols := []float64{50, 150, 250}

	row, col := CellIndex(model.Point{X: 100, Y: 670}, rows, cols)
	if row != 1 || col != 0 {
		t.Errorf("expected (1, 0), got (%d, %d)", row, col)
	}

	row, col = CellIndex(model.Point{X: 400, Y: 100}, rows, cols)
	if row != -1 || col != -1 {
		t.Errorf("expected (-1, -1) outside the grid, got (%d, %d)", row, col)
	}
}
