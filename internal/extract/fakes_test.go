package extract

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"strings"
	"sync"

	"github.com/local/pdfdocx/internal/ocr"
	"github.com/local/pdfdocx/internal/pdfdoc"
)

// fakeOpener serves a document whose pages carry the given native text.
type fakeOpener struct {
	pages []string
}

func (o fakeOpener) Open(data []byte) (pdfdoc.Doc, error) {
	if !strings.HasPrefix(string(data), "%PDF") {
		return nil, errors.New("no pdf header")
	}
	return &fakeDoc{pages: o.pages}, nil
}

type fakeDoc struct {
	pages  []string
	closed bool
}

func (d *fakeDoc) NumPage() int { return len(d.pages) }
func (d *fakeDoc) Close() error { d.closed = true; return nil }
func (d *fakeDoc) Page(i int) (pdfdoc.Page, error) {
	return fakePage(d.pages[i]), nil
}

type fakePage string

func (p fakePage) Tokens() ([]pdfdoc.Token, error) {
	var out []pdfdoc.Token
	for _, l := range strings.Split(string(p), "\n") {
		out = append(out, pdfdoc.Token{Text: l, EOL: true})
	}
	return out, nil
}

// fakeRasterizer writes a small grey PNG and counts calls.
type fakeRasterizer struct {
	mu    sync.Mutex
	calls []int
	dpis  []int
	err   error
}

func (r *fakeRasterizer) Rasterize(_ context.Context, _ string, page, dpi int, outPath string) error {
	r.mu.Lock()
	r.calls = append(r.calls, page)
	r.dpis = append(r.dpis, dpi)
	r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(40 + i*3)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// call records one OCR request by variant label and segmentation.
type call struct {
	variant string
	seg     ocr.Segmentation
	flags   map[string]string
}

// fakeEngine answers every request through respond.
type fakeEngine struct {
	mu      sync.Mutex
	calls   []call
	respond func(variant string, seg ocr.Segmentation) (ocr.Output, error)
}

func variantOf(path string) string {
	base := path[strings.LastIndexAny(path, `/\`)+1:]
	base = strings.TrimSuffix(base, ".png")
	if base == "page" {
		return "raw"
	}
	return base
}

func (e *fakeEngine) Recognize(_ context.Context, req ocr.Request) (ocr.Output, error) {
	v := variantOf(req.ImagePath)
	e.mu.Lock()
	e.calls = append(e.calls, call{variant: v, seg: req.Segmentation, flags: req.Flags})
	e.mu.Unlock()
	if e.respond == nil {
		return ocr.Output{}, nil
	}
	return e.respond(v, req.Segmentation)
}

func (e *fakeEngine) count(seg ocr.Segmentation) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c.seg == seg {
			n++
		}
	}
	return n
}

func (e *fakeEngine) variantsFor(seg ocr.Segmentation) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, c := range e.calls {
		if c.seg == seg {
			out = append(out, c.variant)
		}
	}
	return out
}

type fakeProbe struct{ err error }

func (p fakeProbe) Check(context.Context) error { return p.err }

// words returns n space-separated copies of "word" (score 7n).
func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func conf(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
