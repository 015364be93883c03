package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return cfg.Width, cfg.Height
}

func TestFitDownscalesWide(t *testing.T) {
	data := testPNG(t, 800, 400)

	out, err := Fit(data, Options{MaxWidth: 200, MaxHeight: 200, Format: "png"})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	w, h := decodeSize(t, out)
	if w != 200 {
		t.Errorf("width: got %d, want 200", w)
	}
	if h != 100 {
		t.Errorf("height: got %d, want 100 (aspect preserved)", h)
	}
}

func TestFitLeavesSmallImagesAlone(t *testing.T) {
	data := testPNG(t, 100, 50)

	out, err := Fit(data, Options{MaxWidth: 200, MaxHeight: 200, Format: "png"})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("small image was re-encoded, want passthrough")
	}
}

func TestFitDisabledPassthrough(t *testing.T) {
	data := []byte("not even an image")
	out, err := Fit(data, Options{})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("disabled Fit modified input")
	}
}

func TestFitRejectsGarbage(t *testing.T) {
	if _, err := Fit([]byte("garbage"), Options{MaxWidth: 10}); err == nil {
		t.Error("Fit(garbage): got nil error, want decode failure")
	}
}
