package lattice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cdehaan/lattice/engine"
	"github.com/cdehaan/lattice/engine/lpdf"
	"github.com/cdehaan/lattice/loader"
	"github.com/cdehaan/lattice/model"
	"github.com/cdehaan/lattice/normalize"
	"github.com/cdehaan/lattice/ocr"
	"github.com/cdehaan/lattice/session"
	"github.com/cdehaan/lattice/tables"
)

// Extractor provides a fluent interface for extracting tables from PDF
// documents. Each configuration method returns a new Extractor instance,
// making chains safe to fork and reuse.
type Extractor struct {
	// Source
	filename string
	data     []byte

	// Engine and document, populated on first terminal operation
	eng    engine.LayoutEngine
	doc    *model.Document
	opened bool

	// Configuration
	options ExtractOptions

	// Accumulated error (fail-fast)
	err error
}

// clone creates a shallow copy of the Extractor with a deep copy of
// options, so configuration methods never mutate their receiver.
func (e *Extractor) clone() *Extractor {
	return &Extractor{
		filename: e.filename,
		data:     e.data,
		eng:      e.eng,
		doc:      e.doc,
		opened:   e.opened,
		options:  e.options.clone(),
		err:      e.err,
	}
}

// ensureOpen builds the layout engine and document handle if not done
// yet.
func (e *Extractor) ensureOpen() error {
	if e.opened {
		return nil
	}

	if e.eng != nil {
		doc, err := loader.FromEngine(e.eng, "")
		if err != nil {
			return err
		}
		e.doc = doc
		e.opened = true
		return nil
	}

	if err := e.readSource(); err != nil {
		return err
	}
	eng, err := lpdf.New(e.data)
	if err != nil {
		return loader.WrapOpenError(err)
	}
	doc, err := loader.Load(e.data, eng)
	if err != nil {
		return err
	}
	e.eng = eng
	e.doc = doc
	e.opened = true
	return nil
}

// ============================================================================
// Configuration methods (return a new Extractor instance)
// ============================================================================

// Pages restricts extraction to the given pages (1-indexed). Multiple
// calls are cumulative. Page numbers outside the document are ignored.
//
// Example:
//
//	sess, err := lattice.Open("doc.pdf").Pages(1, 3, 5).Extract(ctx)
func (e *Extractor) Pages(pages ...int) *Extractor {
	newExt := e.clone()
	newExt.options.pages = append(newExt.options.pages, pages...)
	return newExt
}

// PageRange restricts extraction to a page range (1-indexed, inclusive).
//
// Example:
//
//	sess, err := lattice.Open("doc.pdf").PageRange(5, 10).Extract(ctx)
func (e *Extractor) PageRange(start, end int) *Extractor {
	newExt := e.clone()
	for i := start; i <= end; i++ {
		newExt.options.pages = append(newExt.options.pages, i)
	}
	return newExt
}

// MergeThreshold sets the overlap fraction at or above which two detected
// regions on one page are merged (default 0.5).
func (e *Extractor) MergeThreshold(threshold float64) *Extractor {
	newExt := e.clone()
	if threshold < 0 || threshold > 1 {
		newExt.err = fmt.Errorf("merge threshold %v outside [0, 1]", threshold)
		return newExt
	}
	newExt.options.mergeThreshold = threshold
	return newExt
}

// PageTimeout sets the per-page detection deadline. A page that misses
// its deadline contributes zero tables and a detection timeout warning;
// sibling pages are unaffected. Zero means no deadline.
func (e *Extractor) PageTimeout(timeout time.Duration) *Extractor {
	newExt := e.clone()
	newExt.options.pageTimeout = timeout
	return newExt
}

// TypeThreshold sets the fraction of parseable cells required before a
// column is assigned a non-text type (default 0.8).
func (e *Extractor) TypeThreshold(threshold float64) *Extractor {
	newExt := e.clone()
	if threshold < 0 || threshold > 1 {
		newExt.err = fmt.Errorf("type threshold %v outside [0, 1]", threshold)
		return newExt
	}
	newExt.options.typeThreshold = threshold
	return newExt
}

// NoTypeInference disables column type inference; all columns stay text.
func (e *Extractor) NoTypeInference() *Extractor {
	newExt := e.clone()
	newExt.options.inferTypes = false
	return newExt
}

// Workers bounds the page worker pool. Zero or negative selects one
// worker per available core.
func (e *Extractor) Workers(n int) *Extractor {
	newExt := e.clone()
	newExt.options.workers = n
	return newExt
}

// WithDetector substitutes the region detector.
func (e *Extractor) WithDetector(d tables.Detector) *Extractor {
	newExt := e.clone()
	newExt.options.detector = d
	return newExt
}

// WithEngine substitutes the layout engine. Any engine producing page
// geometry can drive the pipeline; the built-in PDF engine is skipped.
func (e *Extractor) WithEngine(eng engine.LayoutEngine) *Extractor {
	newExt := e.clone()
	newExt.eng = eng
	newExt.doc = nil
	newExt.opened = false
	return newExt
}

// WithOCR enables the OCR fallback for pages with no embedded text.
// Requires a build with the ocr tag and a rasterizing engine; otherwise
// affected pages report an OCR warning. Language may be empty for the
// engine default.
func (e *Extractor) WithOCR(language string) *Extractor {
	newExt := e.clone()
	newExt.options.ocrFallback = true
	newExt.options.ocrLanguage = language
	return newExt
}

// ============================================================================
// Terminal operations
// ============================================================================

// PageCount returns the number of pages in the document.
func (e *Extractor) PageCount() (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	if err := e.ensureOpen(); err != nil {
		return 0, err
	}
	return e.doc.PageCount(), nil
}

// Metadata returns the document information dictionary fields.
func (e *Extractor) Metadata() (model.Metadata, error) {
	if e.err != nil {
		return model.Metadata{}, e.err
	}
	if err := e.ensureOpen(); err != nil {
		return model.Metadata{}, err
	}
	return e.doc.Metadata(), nil
}

// Document returns the immutable document handle.
func (e *Extractor) Document() (*model.Document, error) {
	if e.err != nil {
		return nil, e.err
	}
	if err := e.ensureOpen(); err != nil {
		return nil, err
	}
	return e.doc, nil
}

// Tables runs extraction and returns the normalized tables along with
// any warnings.
func (e *Extractor) Tables() ([]model.Table, []Warning, error) {
	sess, err := e.Extract(context.Background())
	if err != nil {
		return nil, nil, err
	}
	return sess.Tables(), sess.Warnings(), nil
}

// pageResult is one worker's output. Workers write only their own slot,
// so results need no locking.
type pageResult struct {
	tables   []model.Table
	warnings []Warning
}

// Extract runs the full pipeline and returns a session over the
// extracted tables. Pages run in parallel on a bounded worker pool;
// cancelling the context aborts in-flight workers between pipeline
// steps.
func (e *Extractor) Extract(ctx context.Context) (*session.Session, error) {
	if e.err != nil {
		return nil, e.err
	}
	if err := e.ensureOpen(); err != nil {
		return nil, err
	}

	detector := e.options.detector
	config := tables.DefaultConfig()
	config.MergeOverlapThreshold = e.options.mergeThreshold
	if err := detector.Configure(config); err != nil {
		return nil, fmt.Errorf("configuring detector %s: %w", detector.Name(), err)
	}

	normConfig := normalize.DefaultConfig()
	normConfig.InferTypes = e.options.inferTypes
	normConfig.TypeInferenceThreshold = e.options.typeThreshold
	normalizer := normalize.New(normConfig)

	pageIndexes := e.targetPages()
	results := make([]pageResult, len(pageIndexes))

	workers := e.options.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(pageIndexes) {
		workers = len(pageIndexes)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for slot := range jobs {
				results[slot] = e.processPage(ctx, detector, normalizer, pageIndexes[slot])
			}
		}()
	}
	for slot := range pageIndexes {
		jobs <- slot
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var allTables []model.Table
	var allWarnings []Warning
	for _, result := range results {
		allTables = append(allTables, result.tables...)
		allWarnings = append(allWarnings, result.warnings...)
	}
	for i := range allTables {
		allTables[i].Index = i
	}

	return session.New(e.doc.Hash(), allTables, allWarnings), nil
}

// targetPages resolves the page selection to 0-based page indexes in
// document order.
func (e *Extractor) targetPages() []int {
	count := e.doc.PageCount()
	if len(e.options.pages) == 0 {
		all := make([]int, count)
		for i := range all {
			all[i] = i
		}
		return all
	}

	seen := make(map[int]bool)
	var indexes []int
	for _, page := range e.options.pages {
		index := page - 1
		if index < 0 || index >= count || seen[index] {
			continue
		}
		seen[index] = true
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)
	return indexes
}

// processPage runs detection, cell extraction, and normalization for one
// page. Failures degrade to warnings; a page never takes its siblings
// down with it.
func (e *Extractor) processPage(ctx context.Context, detector tables.Detector, normalizer *normalize.Normalizer, pageIndex int) pageResult {
	var result pageResult

	pctx := ctx
	cancel := func() {}
	if e.options.pageTimeout > 0 {
		pctx, cancel = context.WithTimeout(ctx, e.options.pageTimeout)
	}
	defer cancel()

	geom, err := e.eng.PageGeometry(pctx, pageIndex)
	if err != nil {
		result.warnings = append(result.warnings, pageWarning(pageIndex, err,
			fmt.Sprintf("reading page geometry: %v", err)))
		return result
	}

	if len(geom.Fragments) == 0 && len(geom.Lines) == 0 {
		if e.options.ocrFallback {
			return e.ocrPage(pctx, normalizer, geom, pageIndex)
		}
		return result
	}

	regions, err := detector.Detect(pctx, geom)
	if err != nil {
		result.warnings = append(result.warnings, pageWarning(pageIndex, err,
			fmt.Sprintf("detecting regions: %v", err)))
		return result
	}

	index := tables.NewFragmentIndex(geom.Fragments)
	extractor := tables.NewCellExtractor()

	for _, region := range regions {
		grid, err := extractor.Extract(pctx, region, geom, index)
		if errors.Is(err, tables.ErrAmbiguousGrid) {
			result.warnings = append(result.warnings, Warning{
				Code:      WarnAmbiguousRegion,
				PageIndex: pageIndex,
				Message:   err.Error(),
			})
			continue
		}
		if err != nil {
			result.warnings = append(result.warnings, pageWarning(pageIndex, err,
				fmt.Sprintf("extracting cells: %v", err)))
			return result
		}
		result.tables = append(result.tables, normalizer.Table(grid))
	}
	return result
}

// pageWarning classifies a page-level failure: deadline expiry becomes a
// detection timeout, anything else a skipped page.
func pageWarning(pageIndex int, err error, message string) Warning {
	code := WarnPageSkipped
	if errors.Is(err, context.DeadlineExceeded) {
		code = WarnDetectionTimeout
	}
	return Warning{Code: code, PageIndex: pageIndex, Message: message}
}

// cellSplit separates OCR line text into cells on tabs or runs of two or
// more spaces.
var cellSplit = regexp.MustCompile(`\t| {2,}`)

// ocrPage rasterizes a page with no embedded text and recognizes its
// content, producing at most one table from the recognized lines.
func (e *Extractor) ocrPage(ctx context.Context, normalizer *normalize.Normalizer, geom *engine.PageGeometry, pageIndex int) pageResult {
	var result pageResult
	fail := func(err error) pageResult {
		result.warnings = append(result.warnings, Warning{
			Code:      WarnOCRFailed,
			PageIndex: pageIndex,
			Message:   err.Error(),
		})
		return result
	}

	rasterizer, ok := e.eng.(engine.Rasterizer)
	if !ok {
		return fail(fmt.Errorf("engine cannot rasterize pages"))
	}
	imageData, err := rasterizer.PageImage(ctx, pageIndex)
	if err != nil {
		return fail(fmt.Errorf("rasterizing page: %w", err))
	}
	pngData, err := ocr.ToPNG(imageData)
	if err != nil {
		return fail(err)
	}

	client, err := ocr.New()
	if err != nil {
		return fail(err)
	}
	defer client.Close()
	if e.options.ocrLanguage != "" {
		if err := client.SetLanguage(e.options.ocrLanguage); err != nil {
			return fail(err)
		}
	}

	text, err := client.RecognizeImage(pngData)
	if err != nil {
		return fail(err)
	}

	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rows = append(rows, cellSplit.Split(line, -1))
	}
	if len(rows) == 0 {
		return result
	}

	pageBox := model.NewBBox(0, 0, geom.Width, geom.Height)
	table := normalizer.TableFromRows(pageIndex, pageBox, rows)
	result.tables = append(result.tables, table)
	return result
}
