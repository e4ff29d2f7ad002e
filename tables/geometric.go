package tables

import (
	"context"
	"math"
	"sort"

	"github.com/cdehaan/lattice/engine"
	"github.com/cdehaan/lattice/model"
)

// Vertical gap (points) beyond which fragments belong to separate clusters.
const clusterGap = 50.0

// GeometricDetector proposes table regions using geometric heuristics. It
// combines two passes: ruled-line analysis for lattice-style tables, and
// whitespace-gap clustering of text fragments for borderless ones.
// Overlapping candidates are merged before the region list is returned.
type GeometricDetector struct {
	config Config
}

// NewGeometricDetector creates a geometric region detector with default
// configuration.
func NewGeometricDetector() *GeometricDetector {
	return &GeometricDetector{
		config: DefaultConfig(),
	}
}

// Name returns the detector's identifier ("geometric").
func (d *GeometricDetector) Name() string {
	return "geometric"
}

// Configure sets the detector configuration.
func (d *GeometricDetector) Configure(config Config) error {
	d.config = config
	return nil
}

// Detect proposes regions for one page. Cancellation is checked between
// clusters, never mid-scan, so a cancelled detection leaves no partial
// region behind.
func (d *GeometricDetector) Detect(ctx context.Context, geom *engine.PageGeometry) ([]model.Region, error) {
	if geom == nil || (len(geom.Fragments) == 0 && len(geom.Lines) == 0) {
		return nil, nil
	}

	var candidates []model.Region

	if d.config.UseLines {
		ruled, err := d.detectRuled(ctx, geom)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, ruled...)
	}

	if d.config.UseWhitespace {
		clustered, err := d.detectWhitespace(ctx, geom)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, clustered...)
	}

	merged := MergeRegions(candidates, d.config.MergeOverlapThreshold)
	SortRegions(merged)

	for i := range merged {
		merged[i].PageIndex = geom.Index
	}
	return merged, nil
}

// detectRuled finds regions bounded by drawn grid lines. Lines are grouped
// into spatial clusters; a cluster with enough aligned horizontal and
// vertical rules becomes a high-confidence ruled region.
func (d *GeometricDetector) detectRuled(ctx context.Context, geom *engine.PageGeometry) ([]model.Region, error) {
	tol := d.config.AlignmentTolerance

	var horizontals, verticals []model.Line
	for _, line := range geom.Lines {
		switch {
		case line.IsHorizontal(tol):
			horizontals = append(horizontals, line)
		case line.IsVertical(tol):
			verticals = append(verticals, line)
		}
	}

	if len(horizontals) < d.config.MinRows+1 || len(verticals) < d.config.MinCols+1 {
		return nil, nil
	}

	clusters := clusterLines(append(horizontals, verticals...))

	var regions []model.Region
	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var yPositions, xPositions []float64
		for _, line := range cluster {
			if line.IsHorizontal(tol) {
				yPositions = append(yPositions, line.Start.Y)
			} else {
				xPositions = append(xPositions, line.Start.X)
			}
		}

		sort.Float64s(yPositions)
		sort.Float64s(xPositions)
		rows := clusterValues(yPositions, tol)
		cols := clusterValues(xPositions, tol)

		if len(rows) < d.config.MinRows+1 || len(cols) < d.config.MinCols+1 {
			continue
		}

		bbox := model.NewBBox(
			cols[0],
			rows[0],
			cols[len(cols)-1]-cols[0],
			rows[len(rows)-1]-rows[0],
		)
		if bbox.IsEmpty() {
			continue
		}

		regions = append(regions, model.Region{
			BBox:       bbox,
			Confidence: 0.9,
			Ruled:      true,
		})
	}

	return regions, nil
}

// detectWhitespace finds regions by clustering text fragments on vertical
// gaps and checking each cluster for tabular alignment.
func (d *GeometricDetector) detectWhitespace(ctx context.Context, geom *engine.PageGeometry) ([]model.Region, error) {
	clusters := clusterFragments(geom.Fragments)

	var regions []model.Region
	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if region := d.regionFromCluster(cluster, geom.Lines); region != nil {
			regions = append(regions, *region)
		}
	}
	return regions, nil
}

// regionFromCluster evaluates one fragment cluster for tabular structure.
// Returns nil if the cluster does not look like a table.
func (d *GeometricDetector) regionFromCluster(fragments []model.TextFragment, lines []model.Line) *model.Region {
	if len(fragments) < d.config.MinRows*d.config.MinCols {
		return nil
	}

	rows := RowBoundaries(fragments, d.config.AlignmentTolerance)
	cols := ColumnBoundaries(fragments, d.config.AlignmentTolerance)

	if len(rows) < d.config.MinRows+1 || len(cols) < d.config.MinCols+1 {
		return nil
	}

	confidence := d.confidence(rows, cols, fragments, lines)
	if confidence < d.config.MinConfidence {
		return nil
	}

	// Row boundaries are sorted descending (PDF coordinates).
	bbox := model.NewBBox(
		cols[0],
		rows[len(rows)-1],
		cols[len(cols)-1]-cols[0],
		rows[0]-rows[len(rows)-1],
	)

	return &model.Region{
		BBox:       bbox,
		Confidence: confidence,
		Ruled:      d.lineScore(rows, cols, lines) >= 0.5,
	}
}

// MergeRegions merges overlapping regions to a fixed point. Two regions
// merge when their overlap ratio is at or above the threshold (inclusive
// boundary). The merged region covers the union box, keeps the higher
// confidence, and is ruled if either input was.
func MergeRegions(regions []model.Region, threshold float64) []model.Region {
	merged := append([]model.Region(nil), regions...)

	for {
		combined := false
		for i := 0; i < len(merged) && !combined; i++ {
			for j := i + 1; j < len(merged); j++ {
				if merged[i].BBox.OverlapRatio(merged[j].BBox) >= threshold {
					merged[i] = model.Region{
						BBox:       merged[i].BBox.Union(merged[j].BBox),
						Confidence: math.Max(merged[i].Confidence, merged[j].Confidence),
						Ruled:      merged[i].Ruled || merged[j].Ruled,
					}
					merged = append(merged[:j], merged[j+1:]...)
					combined = true
					break
				}
			}
		}
		if !combined {
			return merged
		}
	}
}

// SortRegions orders regions top-to-bottom, then left-to-right.
func SortRegions(regions []model.Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].BBox.Top() != regions[j].BBox.Top() {
			return regions[i].BBox.Top() > regions[j].BBox.Top()
		}
		return regions[i].BBox.Left() < regions[j].BBox.Left()
	})
}

// confidence scores a candidate grid (0-1) from grid regularity (30%),
// fragment alignment (30%), ruled line presence (20%), and cell
// occupancy (20%).
func (d *GeometricDetector) confidence(rows, cols []float64, fragments []model.TextFragment, lines []model.Line) float64 {
	score := d.gridRegularity(rows, cols)*0.3 +
		d.alignmentQuality(fragments, rows, cols)*0.3 +
		d.lineScore(rows, cols, lines)*0.2 +
		d.cellOccupancy(fragments, rows, cols)*0.2
	return score
}

// gridRegularity measures row height and column width uniformity via the
// coefficient of variation.
func (d *GeometricDetector) gridRegularity(rows, cols []float64) float64 {
	if len(rows) < 3 || len(cols) < 3 {
		return 0
	}

	rowHeights := make([]float64, len(rows)-1)
	for i := range rowHeights {
		rowHeights[i] = rows[i] - rows[i+1]
	}
	colWidths := make([]float64, len(cols)-1)
	for i := range colWidths {
		colWidths[i] = cols[i+1] - cols[i]
	}

	rowScore := math.Max(0, 1-coefficientOfVariation(rowHeights))
	colScore := math.Max(0, 1-coefficientOfVariation(colWidths))
	return (rowScore + colScore) / 2
}

// alignmentQuality is the fraction of fragments with at least two edges on
// grid boundaries.
func (d *GeometricDetector) alignmentQuality(fragments []model.TextFragment, rows, cols []float64) float64 {
	if len(fragments) == 0 {
		return 0
	}

	aligned := 0
	for _, frag := range fragments {
		edges := 0
		if d.nearBoundary(frag.BBox.Left(), cols) {
			edges++
		}
		if d.nearBoundary(frag.BBox.Right(), cols) {
			edges++
		}
		if d.nearBoundary(frag.BBox.Top(), rows) {
			edges++
		}
		if d.nearBoundary(frag.BBox.Bottom(), rows) {
			edges++
		}
		if edges >= 2 {
			aligned++
		}
	}
	return float64(aligned) / float64(len(fragments))
}

func (d *GeometricDetector) nearBoundary(value float64, boundaries []float64) bool {
	for _, b := range boundaries {
		if math.Abs(value-b) < d.config.AlignmentTolerance*2 {
			return true
		}
	}
	return false
}

// lineScore is the fraction of grid boundaries backed by a visible ruled
// line.
func (d *GeometricDetector) lineScore(rows, cols []float64, lines []model.Line) float64 {
	if len(lines) == 0 {
		return 0
	}
	tol := d.config.AlignmentTolerance

	backed := 0
	for _, y := range rows {
		for _, line := range lines {
			if line.IsHorizontal(tol) && math.Abs(line.Start.Y-y) < tol {
				backed++
				break
			}
		}
	}
	for _, x := range cols {
		for _, line := range lines {
			if line.IsVertical(tol) && math.Abs(line.Start.X-x) < tol {
				backed++
				break
			}
		}
	}

	return float64(backed) / float64(len(rows)+len(cols))
}

// cellOccupancy is the fraction of grid cells that contain at least one
// fragment center.
func (d *GeometricDetector) cellOccupancy(fragments []model.TextFragment, rows, cols []float64) float64 {
	rowCount := len(rows) - 1
	colCount := len(cols) - 1
	if rowCount < 1 || colCount < 1 {
		return 0
	}

	occupied := make(map[int]bool)
	for _, frag := range fragments {
		row, col := CellIndex(frag.BBox.Center(), rows, cols)
		if row >= 0 && col >= 0 {
			occupied[row*colCount+col] = true
		}
	}

	return float64(len(occupied)) / float64(rowCount*colCount)
}

// RowBoundaries clusters fragment top and bottom edges into row boundary
// Y coordinates, sorted descending (PDF coordinates: top is larger).
func RowBoundaries(fragments []model.TextFragment, tolerance float64) []float64 {
	if len(fragments) == 0 {
		return nil
	}

	values := make([]float64, 0, len(fragments)*2)
	for _, frag := range fragments {
		values = append(values, frag.BBox.Top(), frag.BBox.Bottom())
	}
	sort.Float64s(values)

	clustered := clusterValues(values, tolerance)
	sort.Sort(sort.Reverse(sort.Float64Slice(clustered)))
	return clustered
}

// ColumnBoundaries clusters fragment left and right edges into column
// boundary X coordinates, sorted ascending.
func ColumnBoundaries(fragments []model.TextFragment, tolerance float64) []float64 {
	if len(fragments) == 0 {
		return nil
	}

	values := make([]float64, 0, len(fragments)*2)
	for _, frag := range fragments {
		values = append(values, frag.BBox.Left(), frag.BBox.Right())
	}
	sort.Float64s(values)

	return clusterValues(values, tolerance)
}

// CellIndex returns the (row, col) band containing the point, or (-1, -1)
// when outside the grid. Rows are sorted descending, columns ascending.
func CellIndex(p model.Point, rows, cols []float64) (row, col int) {
	row, col = -1, -1

	for i := 0; i < len(rows)-1; i++ {
		if p.Y <= rows[i] && p.Y >= rows[i+1] {
			row = i
			break
		}
	}
	for i := 0; i < len(cols)-1; i++ {
		if p.X >= cols[i] && p.X <= cols[i+1] {
			col = i
			break
		}
	}
	return row, col
}

// clusterValues merges sorted values within tolerance of each other,
// averaging values that join a cluster.
func clusterValues(values []float64, tolerance float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	clustered := []float64{values[0]}
	for _, v := range values[1:] {
		if v-clustered[len(clustered)-1] > tolerance {
			clustered = append(clustered, v)
		} else {
			clustered[len(clustered)-1] = (clustered[len(clustered)-1] + v) / 2
		}
	}
	return clustered
}

// clusterFragments groups fragments by vertical proximity. A vertical gap
// larger than clusterGap starts a new cluster.
func clusterFragments(fragments []model.TextFragment) [][]model.TextFragment {
	if len(fragments) == 0 {
		return nil
	}

	sorted := make([]model.TextFragment, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BBox.Y > sorted[j].BBox.Y
	})

	var clusters [][]model.TextFragment
	current := []model.TextFragment{sorted[0]}

	for _, frag := range sorted[1:] {
		last := current[len(current)-1].BBox
		gap := last.Y - frag.BBox.Top()

		if gap > clusterGap {
			clusters = append(clusters, current)
			current = []model.TextFragment{frag}
		} else {
			current = append(current, frag)
		}
	}
	clusters = append(clusters, current)

	return clusters
}

// clusterLines groups lines by vertical proximity of their bounding
// extents, mirroring fragment clustering.
func clusterLines(lines []model.Line) [][]model.Line {
	if len(lines) == 0 {
		return nil
	}

	sorted := make([]model.Line, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Max(sorted[i].Start.Y, sorted[i].End.Y) > math.Max(sorted[j].Start.Y, sorted[j].End.Y)
	})

	var clusters [][]model.Line
	current := []model.Line{sorted[0]}
	currentBottom := math.Min(sorted[0].Start.Y, sorted[0].End.Y)

	for _, line := range sorted[1:] {
		top := math.Max(line.Start.Y, line.End.Y)
		bottom := math.Min(line.Start.Y, line.End.Y)

		if currentBottom-top > clusterGap {
			clusters = append(clusters, current)
			current = []model.Line{line}
			currentBottom = bottom
		} else {
			current = append(current, line)
			currentBottom = math.Min(currentBottom, bottom)
		}
	}
	clusters = append(clusters, current)

	return clusters
}

func coefficientOfVariation(values []float64) float64 {
	m := mean(values)
	if m == 0 {
		return 0
	}
	return math.Sqrt(variance(values)) / m
}

// mean computes the arithmetic mean of a slice of float64 values.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance computes the population variance of a slice of float64 values.
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		diff := v - m
		sum += diff * diff
	}
	return sum / float64(len(values))
}
