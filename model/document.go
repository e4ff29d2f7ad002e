package model

// Document is a validated, immutable handle to a loaded PDF. It carries no
// decoded page content; pipeline stages request geometry from the layout
// engine on demand. The content hash identifies the exact byte stream the
// document was loaded from.
type Document struct {
	hash     string
	pages    []PageInfo
	metadata Metadata
}

// PageInfo describes one page of a document: its 0-based index and its
// media box dimensions in points.
type PageInfo struct {
	Index  int
	Width  float64
	Height float64
}

// Metadata contains document-level information from the PDF info dictionary.
// All fields may be empty; PDFs are not required to carry any of them.
type Metadata struct {
	Title    string
	Author   string
	Creator  string
	Producer string
}

// NewDocument creates an immutable document handle. The page slice is copied
// so later mutation by the caller cannot reach the document.
func NewDocument(hash string, pages []PageInfo, metadata Metadata) *Document {
	copied := make([]PageInfo, len(pages))
	copy(copied, pages)
	return &Document{hash: hash, pages: copied, metadata: metadata}
}

// Hash returns the hex-encoded SHA-256 of the document's byte stream.
func (d *Document) Hash() string { return d.hash }

// PageCount returns the total number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Page returns info for the page at the given 0-based index.
// The second return value is false if the index is out of range.
func (d *Document) Page(index int) (PageInfo, bool) {
	if index < 0 || index >= len(d.pages) {
		return PageInfo{}, false
	}
	return d.pages[index], true
}

// Pages returns a copy of the per-page info, in page order.
func (d *Document) Pages() []PageInfo {
	copied := make([]PageInfo, len(d.pages))
	copy(copied, d.pages)
	return copied
}

// Metadata returns the document metadata.
func (d *Document) Metadata() Metadata { return d.metadata }
