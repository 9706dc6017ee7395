// Package imgdiff brings raster pairs to identical dimensions and computes
// perceptual pixel differences between them.
package imgdiff

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

// Load reads and decodes a PNG file.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imgdiff: open %s: %w", path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("imgdiff: decode %s: %w", path, err)
	}
	return img, nil
}

// Normalize scales img onto a w×h canvas with a contain policy: aspect ratio
// preserved, image scaled to fit entirely, remaining canvas padded with fully
// transparent pixels. The scaled image is anchored at the origin so identical
// content stays at identical coordinates when only heights differ. A new
// buffer is always allocated; the source is never mutated.
func Normalize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return dst
	}

	scale := math.Min(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	sw := int(math.Round(float64(b.Dx()) * scale))
	sh := int(math.Round(float64(b.Dy()) * scale))
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}
	if sw > w {
		sw = w
	}
	if sh > h {
		sh = h
	}

	draw.CatmullRom.Scale(dst, image.Rect(0, 0, sw, sh), img, b, draw.Src, nil)
	return dst
}

// NormalizeFile loads path and normalizes it to w×h. A missing or unreadable
// file surfaces as an error; callers map it to a capture error for the pair.
func NormalizeFile(path string, w, h int) (*image.RGBA, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Normalize(img, w, h), nil
}

// SavePNG persists img to path, creating intermediate directories as needed.
func SavePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("imgdiff: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imgdiff: create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("imgdiff: encode %s: %w", path, err)
	}
	return nil
}
