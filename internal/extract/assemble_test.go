package extract

import (
	"testing"
	"time"

	"github.com/local/pdfdocx/internal/docx"
)

func TestAssembleLayout(t *testing.T) {
	run := Run{
		SourceName: "scan.pdf",
		PageCount:  3,
		Pages: []PageResult{
			{PageNumber: 1, Text: "Intro line\n\nSecond block"},
			{PageNumber: 2, Text: "", UsedOCRFallback: true},
			{PageNumber: 3, Text: "Recovered", UsedOCRFallback: true},
		},
	}
	gen := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	got := Assemble(run, Options{IncludePageBreaks: true, IncludeConfidenceMarkers: true}, gen)

	want := []docx.Element{
		docx.Title("Extracted text"),
		docx.Paragraph("Source: scan.pdf"),
		docx.Paragraph("Generated: 2026-10-18T09:30:00Z"),
		docx.Heading("Page 1"),
		docx.Paragraph("Intro line"),
		docx.Paragraph("Second block"),
		docx.PageBreak(),
		docx.Heading("Page 2"),
		docx.Paragraph("OCR fallback used on this page"),
		docx.Paragraph("No readable text found on this page"),
		docx.PageBreak(),
		docx.Heading("Page 3"),
		docx.Paragraph("OCR fallback used on this page"),
		docx.Paragraph("Recovered"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d elements, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAssembleWithoutBreaksOrMarkers(t *testing.T) {
	run := Run{SourceName: "a.pdf", Pages: []PageResult{
		{PageNumber: 1, Text: "one"},
		{PageNumber: 2, Text: "two", UsedOCRFallback: true},
	}}
	for _, el := range Assemble(run, Options{}, time.Now()) {
		if el.Kind == docx.KindPageBreak {
			t.Fatal("page break emitted although disabled")
		}
		if el.Text == fallbackMarker {
			t.Fatal("marker emitted although disabled")
		}
	}
}
