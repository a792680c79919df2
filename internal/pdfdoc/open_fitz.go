package pdfdoc

import (
	fitz "github.com/gen2brain/go-fitz"
)

// fitzOpener implements Opener using github.com/gen2brain/go-fitz.
type fitzOpener struct{}

func (fitzOpener) Open(data []byte) (Doc, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return fitzDoc{doc}, nil
}

type fitzDoc struct{ *fitz.Document }

func (d fitzDoc) Page(i int) (Page, error) {
	text, err := d.Document.Text(i)
	if err != nil {
		return nil, err
	}
	return fitzPage{text: text}, nil
}

// fitzPage holds the page text MuPDF already laid out line by line.
type fitzPage struct{ text string }

func (p fitzPage) Tokens() ([]Token, error) { return lineTokens(p.text), nil }
