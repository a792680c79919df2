// Package pdfdoc opens PDF documents and exposes their embedded text layer
// as a per-page token stream.
package pdfdoc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/local/pdfdocx/internal/textnorm"
)

// ErrUnparsable is returned when a document cannot be opened or has no pages.
var ErrUnparsable = errors.New("pdf document cannot be parsed")

// Token is one piece of page text. EOL marks that the source ends a line after it.
type Token struct {
	Text string
	EOL  bool
}

// Doc abstracts a parsed PDF document. Page indices are 0-based.
type Doc interface {
	NumPage() int
	Page(i int) (Page, error)
	Close() error
}

// Page abstracts a single PDF page for text extraction.
type Page interface {
	Tokens() ([]Token, error)
}

// Opener parses raw PDF bytes into a Doc.
type Opener interface {
	Open(data []byte) (Doc, error)
}

// Backend names accepted by NewOpener.
const (
	BackendMuPDF = "mupdf"
	BackendPlain = "plain"
)

// NewOpener returns the opener for the named backend. An empty name selects MuPDF.
func NewOpener(backend string) (Opener, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMuPDF:
		return fitzOpener{}, nil
	case BackendPlain:
		return plainOpener{}, nil
	default:
		return nil, fmt.Errorf("unknown pdf text backend %q", backend)
	}
}

// Open parses data with o and rejects documents without pages.
// Every failure wraps ErrUnparsable.
func Open(o Opener, data []byte) (Doc, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnparsable)
	}
	d, err := o.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	if d.NumPage() <= 0 {
		_ = d.Close()
		return nil, fmt.Errorf("%w: document has no pages", ErrUnparsable)
	}
	return d, nil
}

// NativeText joins the page tokens in document order, breaking lines where the
// source marks an end of line, and normalizes the result.
func NativeText(p Page) (string, error) {
	toks, err := p.Tokens()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Text)
		if t.EOL {
			b.WriteByte('\n')
		}
	}
	return textnorm.Normalize(b.String()), nil
}

// PageCount reports the number of pages of the PDF at path without
// loading its content streams.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// lineTokens turns a block of text into one EOL-terminated token per line.
func lineTokens(text string) []Token {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	out := make([]Token, 0, len(lines))
	for _, l := range lines {
		out = append(out, Token{Text: l, EOL: true})
	}
	return out
}
