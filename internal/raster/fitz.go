package raster

import (
	"context"
	"fmt"
	"image/png"
	"os"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// Fitz renders in-process through MuPDF.
type Fitz struct{}

func (Fitz) Rasterize(ctx context.Context, pdfPath string, page, dpi int, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(page-1, float64(dpi))
	if err != nil {
		return fmt.Errorf("failed to render page %d: %w", page, err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	b := img.Bounds()
	log.Debug().
		Int("page", page).
		Int("dpi", dpi).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Msg("rendered page with mupdf")
	return nil
}
