package loaders

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/bmp"
)

func checkerboard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, A: 255}
			if (x+y)%2 == 0 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// TestDecodeBMPRoundTrip checks that a .bmp-encoded image decodes to the
// same dimensions and pixel content, and that BytesPerPixel is always 4
// (RGBA8) regardless of source format — the shape Renderer.UploadImage
// requires for its bytesPerPixel-aware staging math (spec.md §4.7).
func TestDecodeBMPRoundTrip(t *testing.T) {
	src := checkerboard(4, 3)

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, src); err != nil {
		t.Fatalf("bmp.Encode: %v", err)
	}

	tex, err := Decode(&buf, ".bmp")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tex.Width != 4 || tex.Height != 3 {
		t.Fatalf("expected 4x3, got %dx%d", tex.Width, tex.Height)
	}
	if tex.BytesPerPixel != 4 {
		t.Fatalf("expected 4 bytes per pixel, got %d", tex.BytesPerPixel)
	}
	if len(tex.Pixels) != 4*3*4 {
		t.Fatalf("expected %d pixel bytes, got %d", 4*3*4, len(tex.Pixels))
	}

	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			want := src.RGBAAt(x, y)
			i := (y*4 + x) * 4
			got := color.RGBA{R: tex.Pixels[i], G: tex.Pixels[i+1], B: tex.Pixels[i+2], A: tex.Pixels[i+3]}
			if got != want {
				t.Fatalf("pixel (%d,%d): got %+v, want %+v", x, y, got, want)
			}
		}
	}
}

func TestDecodeUnknownExtensionFallsBackToRegisteredDecoders(t *testing.T) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, checkerboard(2, 2)); err == nil {
		// golang.org/x/image/bmp registers its decoder with image.RegisterFormat
		// when imported, so image.Decode recognises the BMP bytes even under
		// an extension Decode has no case for.
		tex, err := Decode(&buf, ".tex")
		if err != nil {
			t.Fatalf("expected BMP bytes under an unknown extension to decode through the registered decoders, got %v", err)
		}
		if tex.Width != 2 || tex.Height != 2 {
			t.Fatalf("expected 2x2, got %dx%d", tex.Width, tex.Height)
		}
	}
}
