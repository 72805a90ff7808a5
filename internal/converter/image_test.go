package converter

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestFlatten(t *testing.T) {
	opaque := makeSolidNRGBA(4, 4, color.NRGBA{R: 10, G: 80, B: 180, A: 255})
	if flatten(opaque) != image.Image(opaque) {
		t.Fatal("flatten() should return opaque images unchanged")
	}

	transparent := makeSolidNRGBA(4, 4, color.NRGBA{A: 0})
	out := flatten(transparent)
	if hasAlpha(out) {
		t.Fatal("flatten() result still has alpha")
	}
	r, g, b, _ := out.At(1, 1).RGBA()
	if r != 0xFFFF || g != 0xFFFF || b != 0xFFFF {
		t.Fatalf("transparent pixel = %d,%d,%d, want white", r, g, b)
	}
}

func TestCoverMediaType(t *testing.T) {
	tests := []struct {
		format string
		want   string
		ok     bool
	}{
		{"jpeg", mediaJPEG, true},
		{"PNG", mediaPNG, true},
		{"gif", "", false},
		{"webp", "", false},
	}
	for _, tt := range tests {
		got, ok := coverMediaType(tt.format)
		if got != tt.want || ok != tt.ok {
			t.Errorf("coverMediaType(%q) = %q, %v", tt.format, got, ok)
		}
	}
}

func makeSolidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func mustEncodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func mustEncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func mustEncodeGIF(t *testing.T, img *image.Paletted) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("gif.Encode() error = %v", err)
	}
	return buf.Bytes()
}
