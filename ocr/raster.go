package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ToPNG re-encodes image data as PNG, the safest input format for the
// recognition engine. Scanned pages arrive as JPEG, TIFF, BMP, or GIF
// depending on the producing scanner.
func ToPNG(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if format == "png" {
		return data, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Crop cuts a sub-image out of encoded image data and returns it as PNG.
// Used to isolate one detected region before recognition.
func Crop(data []byte, rect image.Rectangle) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := rect.Intersect(img.Bounds())
	if bounds.Empty() {
		return nil, fmt.Errorf("crop rectangle %v outside image bounds %v", rect, img.Bounds())
	}

	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	sub, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("image type %T does not support cropping", img)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, sub.SubImage(bounds)); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
