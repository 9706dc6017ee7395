package imgdiff

import (
	"fmt"
	"image"
	"image/color"
)

// DefaultThreshold is the perceptual sensitivity on a normalized 0-1 scale.
// Channel deviation below it (anti-aliasing, compression noise) does not
// count as a mismatch.
const DefaultThreshold = 0.1

// Marker colors for the diff image, keyed to which side carries the brighter
// pixel: removed = the reference (staging) side is brighter, added = the
// candidate (prod) side is.
var (
	removedColor = color.RGBA{R: 255, G: 0, B: 110, A: 255}
	addedColor   = color.RGBA{R: 0, G: 168, B: 255, A: 255}
)

// bgAlpha fades matching pixels into a pale grayscale rendering of the
// reference image so mismatches stand out.
const bgAlpha = 0.1

// Diff compares two equal-sized RGBA images pixel by pixel using a perceptual
// (YIQ) color distance with the given threshold. It returns the mismatched
// pixel count and a diff image marking mismatches over a faded background.
// Pure: the result depends only on the two pixel buffers and the threshold.
func Diff(a, b *image.RGBA, threshold float64) (int, *image.RGBA, error) {
	if a.Bounds().Size() != b.Bounds().Size() {
		return 0, nil, fmt.Errorf("imgdiff: dimension mismatch: %v vs %v",
			a.Bounds().Size(), b.Bounds().Size())
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	// Maximum squared YIQ distance is 35215; scale the normalized
	// threshold into that space.
	maxDelta := 35215 * threshold * threshold

	mismatched := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pa := a.PixOffset(a.Bounds().Min.X+x, a.Bounds().Min.Y+y)
			pb := b.PixOffset(b.Bounds().Min.X+x, b.Bounds().Min.Y+y)

			delta := colorDelta(a.Pix[pa:pa+4], b.Pix[pb:pb+4])
			if abs(delta) > maxDelta {
				mismatched++
				if delta < 0 {
					out.SetRGBA(x, y, removedColor)
				} else {
					out.SetRGBA(x, y, addedColor)
				}
			} else {
				g := grayPixel(a.Pix[pa:pa+4], bgAlpha)
				out.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
			}
		}
	}

	return mismatched, out, nil
}

// Similarity converts a mismatch count into a percentage of matching pixels.
func Similarity(mismatched, totalPixels int) float64 {
	if totalPixels == 0 {
		return 100
	}
	return float64(totalPixels-mismatched) / float64(totalPixels) * 100
}

// colorDelta returns the squared YIQ distance between two RGBA pixels,
// negative when the first (reference) pixel is the brighter one. Pixels with
// partial alpha are blended onto a white background first.
func colorDelta(p, q []uint8) float64 {
	r1, g1, b1, a1 := float64(p[0]), float64(p[1]), float64(p[2]), float64(p[3])
	r2, g2, b2, a2 := float64(q[0]), float64(q[1]), float64(q[2]), float64(q[3])

	if r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2 {
		return 0
	}

	if a1 < 255 {
		f := a1 / 255
		r1, g1, b1 = blendWhite(r1, f), blendWhite(g1, f), blendWhite(b1, f)
	}
	if a2 < 255 {
		f := a2 / 255
		r2, g2, b2 = blendWhite(r2, f), blendWhite(g2, f), blendWhite(b2, f)
	}

	y1 := rgb2y(r1, g1, b1)
	y2 := rgb2y(r2, g2, b2)
	yd := y1 - y2
	id := rgb2i(r1, g1, b1) - rgb2i(r2, g2, b2)
	qd := rgb2q(r1, g1, b1) - rgb2q(r2, g2, b2)

	delta := 0.5053*yd*yd + 0.299*id*id + 0.1957*qd*qd
	if y1 > y2 {
		return -delta
	}
	return delta
}

func grayPixel(p []uint8, alpha float64) uint8 {
	y := rgb2y(float64(p[0]), float64(p[1]), float64(p[2]))
	v := blendWhite(y, alpha*float64(p[3])/255)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

func blendWhite(c, f float64) float64 { return 255 + (c-255)*f }

func rgb2y(r, g, b float64) float64 { return r*0.29889531 + g*0.58662247 + b*0.11448223 }
func rgb2i(r, g, b float64) float64 { return r*0.59597799 - g*0.27417610 - b*0.32180189 }
func rgb2q(r, g, b float64) float64 { return r*0.21147017 - g*0.52261711 + b*0.31114694 }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
