package imagecodec

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func sample(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	return img
}

func TestSaveAndLoadFormats(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name   string
		format string
	}{
		{"a.png", "png"},
		{"a.JPG", "jpeg"},
		{"a.bmp", "bmp"},
		{"a.tiff", "tiff"},
		{"a.gif", "gif"},
	}
	for _, tc := range cases {
		path := filepath.Join(dir, tc.name)
		if err := Save(path, sample(12, 7)); err != nil {
			t.Fatalf("Save %s: %v", tc.name, err)
		}
		img, format, err := Load(path)
		if err != nil {
			t.Fatalf("Load %s: %v", tc.name, err)
		}
		if format != tc.format {
			t.Fatalf("%s: expected format %q, got %q", tc.name, tc.format, format)
		}
		if b := img.Bounds(); b.Dx() != 12 || b.Dy() != 7 {
			t.Fatalf("%s: unexpected bounds %v", tc.name, b)
		}
	}
}

func TestSaveRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.xyz")
	if err := Save(path, sample(2, 2)); err == nil {
		t.Fatal("expected error for unknown extension")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}
