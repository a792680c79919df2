package raster

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
}

func TestCheckOutputMovesPNG(t *testing.T) {
	dir := t.TempDir()
	produced := filepath.Join(dir, "tmp.png")
	out := filepath.Join(dir, "page.png")
	writePNG(t, produced)

	if err := checkOutput(produced, out); err != nil {
		t.Fatalf("checkOutput: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestCheckOutputRejectsMissingAndGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := checkOutput(filepath.Join(dir, "nope.png"), filepath.Join(dir, "x.png")); err == nil {
		t.Fatal("expected error for missing output")
	}
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := checkOutput(bad, bad); err == nil {
		t.Fatal("expected error for unreadable output")
	}
}

func TestNew(t *testing.T) {
	r, err := New("", "/opt/poppler/bin/pdftoppm")
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := r.(*Pdftoppm); !ok || p.bin() != "/opt/poppler/bin/pdftoppm" {
		t.Fatalf("New(\"\") = %#v", r)
	}
	if _, err := New("mupdf", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := New("ghostscript", ""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
