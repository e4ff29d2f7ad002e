package lattice

import "github.com/cdehaan/lattice/session"

// Warning records a recovered failure during extraction. Warnings attach
// to the produced session; they never abort the document.
type Warning = session.Warning

// Warning codes reported by the pipeline.
const (
	// WarnDetectionTimeout: a page's detection deadline expired; the
	// page contributes zero regions.
	WarnDetectionTimeout = session.WarnDetectionTimeout
	// WarnAmbiguousRegion: a region's cell boundaries could not be
	// reconciled into a rectangular grid; the region was dropped.
	WarnAmbiguousRegion = session.WarnAmbiguousRegion
	// WarnPageSkipped: a page's geometry could not be read.
	WarnPageSkipped = session.WarnPageSkipped
	// WarnOCRFailed: the OCR fallback for a scanned page failed.
	WarnOCRFailed = session.WarnOCRFailed
)

// FormatWarnings renders warnings one per line for display.
func FormatWarnings(warnings []Warning) string {
	return session.FormatWarnings(warnings)
}
