package extract

import (
	"fmt"
	"time"

	"github.com/local/pdfdocx/internal/docx"
	"github.com/local/pdfdocx/internal/textnorm"
)

const (
	documentTitle  = "Extracted text"
	fallbackMarker = "OCR fallback used on this page"
	emptyPageText  = "No readable text found on this page"
)

// Assemble lays the run out as document elements: a title section, then one
// section per page in page order.
func Assemble(run Run, opts Options, generated time.Time) []docx.Element {
	els := []docx.Element{
		docx.Title(documentTitle),
		docx.Paragraph("Source: " + run.SourceName),
		docx.Paragraph("Generated: " + generated.UTC().Format(time.RFC3339)),
	}
	for i, p := range run.Pages {
		if i > 0 && opts.IncludePageBreaks {
			els = append(els, docx.PageBreak())
		}
		els = append(els, docx.Heading(fmt.Sprintf("Page %d", p.PageNumber)))
		if opts.IncludeConfidenceMarkers && p.UsedOCRFallback {
			els = append(els, docx.Paragraph(fallbackMarker))
		}
		blocks := textnorm.Blocks(p.Text)
		if len(blocks) == 0 {
			els = append(els, docx.Paragraph(emptyPageText))
			continue
		}
		for _, b := range blocks {
			els = append(els, docx.Paragraph(b))
		}
	}
	return els
}
