package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestInitWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pdfdocx.log")
	if err := Init(Options{Level: "debug", File: path, MaxSizeMB: 1, Stderr: true}); err != nil {
		t.Fatal(err)
	}
	defer Close()

	log.Debug().Int("page", 3).Msg("ocr page done")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(b)
	for _, want := range []string{`"service":"pdfdocx"`, `"page":3`, `"message":"ocr page done"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %s", line, want)
		}
	}
}

func TestInitBadLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := Init(Options{Level: "chatty", File: path, Stderr: true}); err != nil {
		t.Fatal(err)
	}
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "hidden") || !strings.Contains(string(b), "shown") {
		t.Fatalf("log = %q", b)
	}
}

func TestAxiomEvent(t *testing.T) {
	if _, ok := axiomEvent([]byte(`{"level":"debug","message":"x"}`), "svc"); ok {
		t.Fatal("debug lines must not be forwarded")
	}
	ev, ok := axiomEvent([]byte(`{"level":"error","message":"boom"}`), "svc")
	if !ok || ev["service"] != "svc" || ev["message"] != "boom" {
		t.Fatalf("event = %v", ev)
	}
	ev, ok = axiomEvent([]byte("not json"), "svc")
	if !ok || ev["message"] != "not json" {
		t.Fatalf("raw event = %v", ev)
	}
}
