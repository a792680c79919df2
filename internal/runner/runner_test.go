package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLimitedBufferTruncates(t *testing.T) {
	b := &limitedBuffer{max: 8}
	n, err := b.Write([]byte("hello "))
	if n != 6 || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	n, _ = b.Write([]byte("world!"))
	if n != 6 {
		t.Fatalf("Write must report full length, got %d", n)
	}
	if got := string(b.Bytes()); got != "hello wo" {
		t.Fatalf("buffer = %q", got)
	}
	if !b.truncated {
		t.Fatal("truncated flag not set")
	}
	_, _ = b.Write([]byte("more"))
	if len(b.Bytes()) != 8 {
		t.Fatalf("buffer grew past limit: %d", len(b.Bytes()))
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := Run(context.Background(), "definitely-not-a-real-tool-4821")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRunExitError(t *testing.T) {
	if _, err := Resolve("sh"); err != nil {
		t.Skip("sh not available")
	}
	_, err := Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	var ee *ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *ExitError", err)
	}
	if ee.Code != 3 || !strings.Contains(ee.Error(), "boom") {
		t.Fatalf("ExitError = %+v", ee)
	}
}

func TestBaseName(t *testing.T) {
	if got := baseName("/usr/bin/tesseract"); got != "tesseract" {
		t.Fatalf("baseName = %q", got)
	}
	if got := baseName("pdftoppm"); got != "pdftoppm" {
		t.Fatalf("baseName = %q", got)
	}
}

func TestResolve(t *testing.T) {
	if _, err := Resolve("sh"); err != nil {
		t.Skip("sh not available")
	}
	if _, err := Resolve("/no/such/dir/pdftoppm-missing"); err == nil || !strings.Contains(err.Error(), "pdftoppm-missing") {
		t.Fatalf("err = %v, want a lookup error naming the tool", err)
	}
}
