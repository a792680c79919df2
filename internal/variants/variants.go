// Package variants derives preprocessed copies of a rasterized page for OCR.
package variants

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// Variant labels in generation order.
const (
	Raw        = "raw"
	Normalized = "normalized"
	Threshold  = "threshold"
	Sharpened  = "sharpened"
)

// ThresholdLevel is the fixed binarization cut-off applied to the normalized image.
const ThresholdLevel = 128

// Variant is one preprocessed page image on disk.
type Variant struct {
	Label string
	Path  string
}

// Set selects the optional variants. raw and normalized are always produced.
type Set struct {
	Threshold bool
	Sharpened bool
}

var encoder = png.Encoder{CompressionLevel: png.BestSpeed}

// Generate writes the selected variants of the PNG at rawPath into dir and
// returns them in label order, raw first. raw reuses rawPath.
func Generate(rawPath, dir string, set Set) ([]Variant, error) {
	img, err := decode(rawPath)
	if err != nil {
		return nil, err
	}

	out := []Variant{{Label: Raw, Path: rawPath}}

	norm := normalize(toGray(img))
	p, err := save(dir, Normalized, norm)
	if err != nil {
		return nil, err
	}
	out = append(out, Variant{Label: Normalized, Path: p})

	if set.Threshold {
		p, err := save(dir, Threshold, applyThreshold(norm, ThresholdLevel))
		if err != nil {
			return nil, err
		}
		out = append(out, Variant{Label: Threshold, Path: p})
	}
	if set.Sharpened {
		p, err := save(dir, Sharpened, sharpen(median3(norm)))
		if err != nil {
			return nil, err
		}
		out = append(out, Variant{Label: Sharpened, Path: p})
	}
	return out, nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page image: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}
	return img, nil
}

func save(dir, label string, img image.Image) (string, error) {
	path := filepath.Join(dir, label+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s variant: %w", label, err)
	}
	if err := encoder.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("encode %s variant: %w", label, err)
	}
	return path, f.Close()
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	xdraw.Draw(gray, b, img, b.Min, xdraw.Src)
	return gray
}

// normalize stretches the 1st..99th percentile of intensities to the full range.
func normalize(g *image.Gray) *image.Gray {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	out := image.NewGray(g.Rect)
	if total == 0 {
		return out
	}

	cut := total / 100
	lo, hi := 0, 255
	for acc := 0; lo < 255; lo++ {
		acc += hist[lo]
		if acc > cut {
			break
		}
	}
	for acc := 0; hi > 0; hi-- {
		acc += hist[hi]
		if acc > cut {
			break
		}
	}
	if hi <= lo {
		copy(out.Pix, g.Pix)
		return out
	}

	var lut [256]uint8
	for v := 0; v < 256; v++ {
		switch {
		case v <= lo:
			lut[v] = 0
		case v >= hi:
			lut[v] = 255
		default:
			lut[v] = uint8((v - lo) * 255 / (hi - lo))
		}
	}
	for i, v := range g.Pix {
		out.Pix[i] = lut[v]
	}
	return out
}

// applyThreshold converts grayscale to binary (0 or 255)
func applyThreshold(img *image.Gray, threshold uint8) *image.Gray {
	b := img.Bounds()
	binary := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.GrayAt(x, y).Y < threshold {
				binary.SetGray(x, y, color.Gray{Y: 0})
			} else {
				binary.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return binary
}

// median3 applies a 3x3 median filter; edge pixels use clamped neighbours.
func median3(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	var win [9]uint8
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			k := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					win[k] = img.GrayAt(clamp(x+dx, b.Min.X, b.Max.X-1), clamp(y+dy, b.Min.Y, b.Max.Y-1)).Y
					k++
				}
			}
			// insertion sort, nine elements
			for i := 1; i < 9; i++ {
				for j := i; j > 0 && win[j] < win[j-1]; j-- {
					win[j], win[j-1] = win[j-1], win[j]
				}
			}
			out.SetGray(x, y, color.Gray{Y: win[4]})
		}
	}
	return out
}

// sharpen convolves with the 4-neighbour sharpening kernel (centre 5, cross -1).
func sharpen(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	at := func(x, y int) int {
		return int(img.GrayAt(clamp(x, b.Min.X, b.Max.X-1), clamp(y, b.Min.Y, b.Max.Y-1)).Y)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := 5*at(x, y) - at(x-1, y) - at(x+1, y) - at(x, y-1) - at(x, y+1)
			out.SetGray(x, y, color.Gray{Y: uint8(clamp(v, 0, 255))})
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
