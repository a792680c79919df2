// Package ocr runs an OCR engine over a single page image.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Segmentation is the engine page-segmentation mode. Values match tesseract's --psm.
type Segmentation int

const (
	PageLayout   Segmentation = 3
	SingleColumn Segmentation = 4
	UniformBlock Segmentation = 6
	SparseText   Segmentation = 11
)

func (s Segmentation) String() string {
	switch s {
	case PageLayout:
		return "page_layout"
	case SingleColumn:
		return "single_column"
	case UniformBlock:
		return "uniform_block"
	case SparseText:
		return "sparse_text"
	default:
		return fmt.Sprintf("psm_%d", int(s))
	}
}

// EngineMode is passed as --oem; 1 selects the LSTM recognizer.
const EngineMode = 1

// PreserveInterwordSpaces is the engine variable that keeps runs of spaces between words.
const PreserveInterwordSpaces = "preserve_interword_spaces"

// ErrEngineUnavailable is returned by engines that were not compiled in.
var ErrEngineUnavailable = errors.New("ocr engine not available in this build")

// Request describes one OCR pass.
type Request struct {
	ImagePath    string
	Languages    []string
	Segmentation Segmentation
	// Flags are engine variables set for this pass only.
	Flags map[string]string
	// OutputBase is the path prefix, without extension, for engine output files.
	OutputBase string
}

// Output is the raw engine result. Confidence is the mean word confidence
// (0-100) when the engine could report it.
type Output struct {
	Text       string
	Confidence *float64
}

// Engine recognizes text in one image.
type Engine interface {
	Recognize(ctx context.Context, req Request) (Output, error)
}

// Backend names accepted by New.
const (
	BackendTesseract = "tesseract"
	BackendGosseract = "gosseract"
)

// New returns the engine for the named backend; binary overrides the tesseract executable.
func New(backend, binary string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendTesseract:
		return &Tesseract{Binary: binary}, nil
	case BackendGosseract:
		return NewGosseract()
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", backend)
	}
}

// LanguageArg joins language codes the way the engine expects them.
func LanguageArg(langs []string) string {
	if len(langs) == 0 {
		return "eng"
	}
	return strings.Join(langs, "+")
}
