package pdfdoc

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// plainOpener implements Opener with the pure-Go github.com/ledongthuc/pdf reader.
// It needs no cgo and is used where MuPDF is not available.
type plainOpener struct{}

func (plainOpener) Open(data []byte) (d Doc, err error) {
	// the reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return plainDoc{r: r}, nil
}

type plainDoc struct{ r *pdf.Reader }

func (d plainDoc) NumPage() int { return d.r.NumPage() }
func (d plainDoc) Close() error { return nil }

func (d plainDoc) Page(i int) (Page, error) {
	if i < 0 || i >= d.r.NumPage() {
		return nil, fmt.Errorf("page index %d out of range", i)
	}
	return plainPage{p: d.r.Page(i + 1)}, nil
}

type plainPage struct{ p pdf.Page }

func (p plainPage) Tokens() (toks []Token, err error) {
	if p.p.V.IsNull() {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			toks, err = nil, fmt.Errorf("content stream panic: %v", r)
		}
	}()
	text, err := p.p.GetPlainText(nil)
	if err != nil {
		return nil, err
	}
	return lineTokens(text), nil
}
