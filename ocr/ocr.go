//go:build ocr

// Package ocr recovers text from rasterized pages of scanned documents
// where the layout engine finds no embedded text. It wraps the Tesseract
// engine via gosseract and requires Tesseract to be installed:
//
//	brew install tesseract        (macOS)
//	apt-get install tesseract-ocr (Debian/Ubuntu)
//
// Builds without the "ocr" tag get a stub that reports OCR as disabled.
package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Client wraps a Tesseract session. Close it to release engine resources.
type Client struct {
	client *gosseract.Client
}

// New creates an OCR client.
func New() (*Client, error) {
	return &Client{client: gosseract.NewClient()}, nil
}

// Close releases engine resources.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// RecognizeImage extracts text from encoded image data. Formats outside
// Tesseract's native set should be converted with ToPNG first. The result
// has surrounding whitespace trimmed.
func (c *Client) RecognizeImage(imageData []byte) (string, error) {
	if err := c.client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := c.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}

	return strings.TrimSpace(text), nil
}

// SetLanguage sets the recognition language(s), "+"-separated for
// multiple (e.g. "eng+fra"). Default is "eng".
func (c *Client) SetLanguage(lang string) error {
	return c.client.SetLanguage(lang)
}

// SetPageSegMode sets the page segmentation mode. Table regions usually
// recognize best with a uniform-block mode.
func (c *Client) SetPageSegMode(mode gosseract.PageSegMode) error {
	return c.client.SetPageSegMode(mode)
}
