//go:build !ocr

// Package ocr recovers text from rasterized pages of scanned documents
// where the layout engine finds no embedded text.
//
// This is the stub used when the "ocr" build tag is not set; every
// operation reports ErrOCRNotEnabled. Rebuild with -tags ocr, with
// Tesseract installed, to enable recognition.
package ocr

import "errors"

// ErrOCRNotEnabled is returned when OCR support was not compiled in.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// PageSegMode mirrors the segmentation modes of the OCR-enabled build.
type PageSegMode int

const (
	PSM_OSD_ONLY               PageSegMode = 0
	PSM_AUTO_OSD               PageSegMode = 1
	PSM_AUTO_ONLY              PageSegMode = 2
	PSM_AUTO                   PageSegMode = 3
	PSM_SINGLE_COLUMN          PageSegMode = 4
	PSM_SINGLE_BLOCK_VERT_TEXT PageSegMode = 5
	PSM_SINGLE_BLOCK           PageSegMode = 6
	PSM_SINGLE_LINE            PageSegMode = 7
	PSM_SINGLE_WORD            PageSegMode = 8
	PSM_CIRCLE_WORD            PageSegMode = 9
	PSM_SINGLE_CHAR            PageSegMode = 10
	PSM_SPARSE_TEXT            PageSegMode = 11
	PSM_SPARSE_TEXT_OSD        PageSegMode = 12
	PSM_RAW_LINE               PageSegMode = 13
)

// Client is the stub client; all operations fail with ErrOCRNotEnabled.
type Client struct{}

// New reports that OCR support is not compiled in.
func New() (*Client, error) {
	return nil, ErrOCRNotEnabled
}

// Close is a no-op, safe on a nil client.
func (c *Client) Close() error {
	return nil
}

// RecognizeImage reports that OCR support is not compiled in.
func (c *Client) RecognizeImage(imageData []byte) (string, error) {
	return "", ErrOCRNotEnabled
}

// SetLanguage reports that OCR support is not compiled in.
func (c *Client) SetLanguage(lang string) error {
	return ErrOCRNotEnabled
}

// SetPageSegMode reports that OCR support is not compiled in.
func (c *Client) SetPageSegMode(mode PageSegMode) error {
	return ErrOCRNotEnabled
}
