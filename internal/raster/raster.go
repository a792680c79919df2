// Package raster renders single PDF pages to PNG bitmaps.
package raster

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"strconv"
	"strings"

	"github.com/local/pdfdocx/internal/runner"
)

// Rasterizer writes page (1-based) of the PDF at pdfPath as a PNG at outPath.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, page, dpi int, outPath string) error
}

// Backend names accepted by New.
const (
	BackendPdftoppm = "pdftoppm"
	BackendMuPDF    = "mupdf"
)

// New returns the rasterizer for the named backend; binary overrides the
// pdftoppm executable path.
func New(backend, binary string) (Rasterizer, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendPdftoppm:
		return &Pdftoppm{Binary: binary}, nil
	case BackendMuPDF:
		return Fitz{}, nil
	default:
		return nil, fmt.Errorf("unknown rasterizer %q", backend)
	}
}

// Pdftoppm shells out to poppler's pdftoppm.
type Pdftoppm struct {
	Binary string
}

func (p *Pdftoppm) bin() string {
	if p.Binary != "" {
		return p.Binary
	}
	return "pdftoppm"
}

// Rasterize runs pdftoppm -png -singlefile for one page.
func (p *Pdftoppm) Rasterize(ctx context.Context, pdfPath string, page, dpi int, outPath string) error {
	if page < 1 {
		return fmt.Errorf("invalid page number %d", page)
	}
	// pdftoppm appends the extension itself
	prefix := strings.TrimSuffix(outPath, ".png")
	n := strconv.Itoa(page)
	args := []string{"-png", "-r", strconv.Itoa(dpi), "-f", n, "-l", n, "-singlefile", pdfPath, prefix}
	if _, err := runner.Run(ctx, p.bin(), args...); err != nil {
		return fmt.Errorf("rasterize page %d: %w", page, err)
	}
	return checkOutput(prefix+".png", outPath)
}

// checkOutput verifies the rasterizer produced a decodable PNG and moves it to outPath.
func checkOutput(produced, outPath string) error {
	f, err := os.Open(produced)
	if err != nil {
		return fmt.Errorf("rasterizer produced no output: %w", err)
	}
	_, err = png.DecodeConfig(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("rasterizer output unreadable: %w", err)
	}
	if produced != outPath {
		if err := os.Rename(produced, outPath); err != nil {
			return fmt.Errorf("move rasterized page: %w", err)
		}
	}
	return nil
}
