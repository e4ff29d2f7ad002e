package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func testImage(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	for x := 10; x < 50 && x < width; x++ {
		for y := 10; y < 30 && y < height; y++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding PNG: %v", err)
	}
	return buf.Bytes()
}

func TestToPNGPassthrough(t *testing.T) {
	data := encodePNG(t, testImage(100, 50))

	out, err := ToPNG(data)
	if err != nil {
		t.Fatalf("ToPNG failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("PNG input should pass through unchanged")
	}
}

func TestToPNGFromJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(100, 50), nil); err != nil {
		t.Fatalf("encoding JPEG: %v", err)
	}

	out, err := ToPNG(buf.Bytes())
	if err != nil {
		t.Fatalf("ToPNG failed: %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if format != "png" {
		t.Errorf("expected png output, got %s", format)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("unexpected dimensions %v", img.Bounds())
	}
}

func TestToPNGRejectsGarbage(t *testing.T) {
	if _, err := ToPNG([]byte("not an image")); err == nil {
		t.Error("expected error for non-image input")
	}
}

func TestCrop(t *testing.T) {
	data := encodePNG(t, testImage(100, 50))

	out, err := Crop(data, image.Rect(10, 10, 60, 40))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if img.Bounds().Dx() != 50 || img.Bounds().Dy() != 30 {
		t.Errorf("unexpected crop dimensions %v", img.Bounds())
	}
}

func TestCropOutsideBounds(t *testing.T) {
	data := encodePNG(t, testImage(100, 50))

	if _, err := Crop(data, image.Rect(200, 200, 300, 300)); err == nil {
		t.Error("expected error for crop outside bounds")
	}
}
