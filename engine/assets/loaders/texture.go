// Package loaders decodes image files on disk into the tightly-packed RGBA8
// byte slices Renderer.UploadImage expects. Image-file decoding is a
// spec.md §1 Non-goal for the core itself ("the core exposes what those
// layers need"); this is the external asset-loading collaborator the spec
// describes, grounded on the teacher's engine/assets/loaders/image.go
// shape (path in, decoded width/height/pixels out) but re-expressed in
// pure Go — the teacher's version shells out to cgo'd stb_image, which has
// no idiomatic-Go equivalent in this corpus, so the standard image package
// plus golang.org/x/image's format decoders (declared in the teacher's
// go.mod but never imported by any teacher file) take its place.
package loaders

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
)

// TextureData is a decoded image ready for Renderer.UploadImage: tightly
// packed RGBA8 rows, origin top-left.
type TextureData struct {
	Width, Height uint32
	BytesPerPixel uint32
	Pixels        []byte
}

// Decode reads an image from r, dispatching on ext (the file extension,
// including the leading dot): ".bmp" goes straight to bmp.Decode, and any
// other extension goes through image.Decode, which recognises every format
// registered by import (PNG via its blank import, BMP via x/image/bmp).
func Decode(r io.Reader, ext string) (*TextureData, error) {
	var img image.Image
	var err error

	switch strings.ToLower(ext) {
	case ".bmp":
		img, err = bmp.Decode(r)
	default:
		img, _, err = image.Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("loaders: decode texture: %w", err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	return &TextureData{
		Width:         uint32(bounds.Dx()),
		Height:        uint32(bounds.Dy()),
		BytesPerPixel: 4,
		Pixels:        rgba.Pix,
	}, nil
}

// LoadTexture opens and decodes the image file at path.
func LoadTexture(path string) (*TextureData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loaders: open texture %q: %w", path, err)
	}
	defer f.Close()

	return Decode(f, filepath.Ext(path))
}
