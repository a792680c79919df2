//go:build gosseract

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Gosseract runs tesseract in-process through libtesseract.
type Gosseract struct {
	clientFactory func() *gosseract.Client
}

// NewGosseract constructs a libtesseract-backed engine.
func NewGosseract() (Engine, error) {
	return &Gosseract{clientFactory: gosseract.NewClient}, nil
}

var segmentationModes = map[Segmentation]gosseract.PageSegMode{
	PageLayout:   gosseract.PSM_AUTO,
	SingleColumn: gosseract.PSM_SINGLE_COLUMN,
	UniformBlock: gosseract.PSM_SINGLE_BLOCK,
	SparseText:   gosseract.PSM_SPARSE_TEXT,
}

func (g *Gosseract) Recognize(ctx context.Context, req Request) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	c := g.clientFactory()
	defer c.Close()

	if err := c.SetImage(req.ImagePath); err != nil {
		return Output{}, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(req.Languages...); err != nil {
		return Output{}, fmt.Errorf("set languages: %w", err)
	}
	mode, ok := segmentationModes[req.Segmentation]
	if !ok {
		return Output{}, fmt.Errorf("unsupported segmentation %s", req.Segmentation)
	}
	if err := c.SetPageSegMode(mode); err != nil {
		return Output{}, fmt.Errorf("set segmentation: %w", err)
	}
	for k, v := range req.Flags {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return Output{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return Output{}, fmt.Errorf("recognize text: %w", err)
	}
	return Output{Text: text, Confidence: wordConfidence(c)}, nil
}

func wordConfidence(c *gosseract.Client) *float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil
	}
	var sum float64
	n := 0
	for _, b := range boxes {
		if b.Confidence < 0 || b.Word == "" {
			continue
		}
		sum += b.Confidence
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}
