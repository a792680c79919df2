package pdfdoc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/local/pdfdocx/internal/pdftest"
)

func TestPlainOpenerReadsPages(t *testing.T) {
	data := pdftest.TextPDF("Hello first page", "Second page text")
	d, err := Open(plainOpener{}, data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if d.NumPage() != 2 {
		t.Fatalf("NumPage = %d, want 2", d.NumPage())
	}
	for i, want := range []string{"Hello first page", "Second page text"} {
		p, err := d.Page(i)
		if err != nil {
			t.Fatalf("Page(%d): %v", i, err)
		}
		got, err := NativeText(p)
		if err != nil {
			t.Fatalf("NativeText(%d): %v", i, err)
		}
		if !strings.Contains(got, want) {
			t.Fatalf("page %d text = %q, want it to contain %q", i, got, want)
		}
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	for _, o := range []Opener{plainOpener{}} {
		if _, err := Open(o, []byte("this is not a pdf at all")); !errors.Is(err, ErrUnparsable) {
			t.Fatalf("Open(garbage) err = %v, want ErrUnparsable", err)
		}
		if _, err := Open(o, nil); !errors.Is(err, ErrUnparsable) {
			t.Fatalf("Open(nil) err = %v, want ErrUnparsable", err)
		}
	}
}

type zeroPageDoc struct{ closed *bool }

func (zeroPageDoc) NumPage() int { return 0 }
func (zeroPageDoc) Page(int) (Page, error) { return nil, errors.New("no pages") }
func (d zeroPageDoc) Close() error { *d.closed = true; return nil }

type openerFunc func([]byte) (Doc, error)

func (f openerFunc) Open(b []byte) (Doc, error) { return f(b) }

func TestOpenRejectsZeroPages(t *testing.T) {
	closed := false
	o := openerFunc(func([]byte) (Doc, error) { return zeroPageDoc{closed: &closed}, nil })
	if _, err := Open(o, []byte("%PDF-1.4")); !errors.Is(err, ErrUnparsable) {
		t.Fatalf("err = %v, want ErrUnparsable", err)
	}
	if !closed {
		t.Fatal("zero-page document was not closed")
	}
}

type tokenPage []Token

func (p tokenPage) Tokens() ([]Token, error) { return p, nil }

func TestNativeTextHonoursEOL(t *testing.T) {
	p := tokenPage{
		{Text: "Hello "},
		{Text: "world", EOL: true},
		{Text: "  next\tline  ", EOL: true},
		{Text: ""},
	}
	got, err := NativeText(p)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello world\nnext line" {
		t.Fatalf("NativeText = %q", got)
	}
}

func TestNewOpener(t *testing.T) {
	for _, name := range []string{"", "mupdf", "PLAIN"} {
		if _, err := NewOpener(name); err != nil {
			t.Fatalf("NewOpener(%q): %v", name, err)
		}
	}
	if _, err := NewOpener("poppler"); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestPageCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "three.pdf")
	if err := os.WriteFile(path, pdftest.TextPDF("a", "b", "c"), 0o600); err != nil {
		t.Fatal(err)
	}
	n, err := PageCount(path)
	if err != nil || n != 3 {
		t.Fatalf("PageCount = %d, %v; want 3", n, err)
	}

	bad := filepath.Join(dir, "bad.pdf")
	if err := os.WriteFile(bad, []byte("not a pdf"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := PageCount(bad); err == nil {
		t.Fatal("PageCount accepted garbage")
	}
}
