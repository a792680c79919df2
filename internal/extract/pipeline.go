package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfdocx/internal/docx"
	"github.com/local/pdfdocx/internal/metrics"
	"github.com/local/pdfdocx/internal/ocr"
	"github.com/local/pdfdocx/internal/pdfdoc"
	"github.com/local/pdfdocx/internal/progress"
	"github.com/local/pdfdocx/internal/raster"
	"github.com/local/pdfdocx/internal/textnorm"
	"github.com/local/pdfdocx/internal/variants"
)

// RuntimeProbe reports whether the external tools OCR depends on are installed.
type RuntimeProbe interface {
	Check(ctx context.Context) error
}

// Dependencies are the collaborators a Pipeline drives.
type Dependencies struct {
	Opener     pdfdoc.Opener
	Rasterizer raster.Rasterizer
	Engine     ocr.Engine
	// Probe is optional; when set it runs before any page work.
	Probe  RuntimeProbe
	Tuning Tuning
	// TempDir is the parent of request-scoped work directories; empty means os.TempDir.
	TempDir string
	Now     func() time.Time
}

// Pipeline turns PDF bytes into a DOCX document. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	deps Dependencies
}

func New(deps Dependencies) *Pipeline {
	if deps.Tuning == nil {
		deps.Tuning = DefaultTuning()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{deps: deps}
}

// Input is the uploaded document.
type Input struct {
	Name string
	Data []byte
}

// PageResult is the final text of one page.
type PageResult struct {
	PageNumber      int    `json:"page_number"`
	Text            string `json:"text"`
	UsedOCRFallback bool   `json:"used_ocr_fallback"`

	NativeChars int  `json:"native_chars"`
	OCRScore    int  `json:"ocr_score,omitempty"`
	OCRPasses   int  `json:"ocr_passes,omitempty"`
	Escalated   bool `json:"escalated,omitempty"`
}

// Run is the ordered page results plus run metadata.
type Run struct {
	ID         string       `json:"id"`
	SourceName string       `json:"source_name"`
	PageCount  int          `json:"page_count"`
	Pages      []PageResult `json:"pages"`
	OCRPages   []int        `json:"ocr_pages"`
}

// Result is a finished extraction.
type Result struct {
	Document []byte
	Run      Run
}

// Extract runs the hybrid pipeline over in. Pages are processed one at a time;
// the first page failure aborts the request. The request work directory is
// removed on every return path. Cancelling ctx stops the run and returns ctx.Err().
// report is called from a separate goroutine; a slow callback loses
// intermediate updates but never stalls the pages.
func (p *Pipeline) Extract(ctx context.Context, in Input, opts Options, report progress.Func) (res *Result, err error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Str("source", in.Name).Logger()
	report, stopReport := progress.Async(progress.Safe(report), 64)
	defer stopReport(time.Second)

	defer func() {
		result := "success"
		if err != nil {
			result = string(CodeOf(err))
			if result == "" {
				result = "cancelled"
			}
			logger.Error().Err(err).Dur("took", time.Since(start)).Msg("extraction failed")
		}
		metrics.ObserveExtraction(result, time.Since(start))
	}()

	if len(in.Data) == 0 {
		return nil, newError(CodeInputInvalid, 0, nil, "file is missing or empty")
	}
	opts, err = opts.Resolve(p.deps.Tuning)
	if err != nil {
		return nil, err
	}
	name := in.Name
	if name == "" {
		name = "document.pdf"
	}
	report(progress.Update{Progress: 1, Step: "validated"})

	if p.deps.Probe != nil {
		if perr := p.deps.Probe.Check(ctx); perr != nil {
			return nil, newError(CodeOCRRuntimeMissing, 0, perr, "required OCR runtime is not available")
		}
	}

	doc, err := pdfdoc.Open(p.deps.Opener, in.Data)
	if err != nil {
		return nil, newError(CodePDFParseFailed, 0, err, "document cannot be parsed")
	}
	defer doc.Close()
	total := doc.NumPage()

	workDir, err := os.MkdirTemp(p.deps.TempDir, "pdfdocx-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(workDir); rerr != nil {
			logger.Warn().Err(rerr).Str("dir", workDir).Msg("work dir cleanup failed")
		}
	}()

	srcPath := filepath.Join(workDir, "source.pdf")
	if err := os.WriteFile(srcPath, in.Data, 0o600); err != nil {
		return nil, fmt.Errorf("stage source pdf: %w", err)
	}

	logger.Info().Int("pages", total).Str("options", opts.String()).Msg("extraction started")
	report(progress.Update{Progress: 5, Step: "parsed", Metadata: map[string]any{"total_pages": total}})

	run := Run{ID: runID, SourceName: name, PageCount: total, Pages: make([]PageResult, 0, total)}
	for i := 0; i < total; i++ {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		pr, perr := p.page(ctx, doc, i, srcPath, workDir, opts, logger)
		if perr != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			return nil, perr
		}
		run.Pages = append(run.Pages, pr)
		if pr.UsedOCRFallback {
			run.OCRPages = append(run.OCRPages, pr.PageNumber)
		}
		report(progress.Update{
			Progress: 5 + 85*(i+1)/total,
			Step:     "page",
			Metadata: map[string]any{"pages_done": i + 1, "total_pages": total, "ocr_pages": len(run.OCRPages)},
		})
	}

	report(progress.Update{Progress: 95, Step: "assembling"})
	generated := p.deps.Now()
	data, err := docx.Write(Assemble(run, opts, generated), docx.Meta{Title: name, Created: generated})
	if err != nil {
		return nil, newError(CodeDOCXGenerationFailed, 0, err, "document serialization failed")
	}

	logger.Info().
		Int("pages", total).
		Ints("ocr_pages", run.OCRPages).
		Int("bytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("extraction finished")
	report(progress.Update{Progress: 100, Step: "completed"})
	return &Result{Document: data, Run: run}, nil
}

// page extracts one page (index i, 0-based).
func (p *Pipeline) page(ctx context.Context, doc pdfdoc.Doc, i int, srcPath, workDir string, opts Options, logger zerolog.Logger) (PageResult, error) {
	num := i + 1
	lg := logger.With().Int("page", num).Logger()

	pg, err := doc.Page(i)
	if err != nil {
		return PageResult{}, newError(CodePDFParseFailed, num, err, "page cannot be read")
	}
	native, err := pdfdoc.NativeText(pg)
	if err != nil {
		return PageResult{}, newError(CodePDFParseFailed, num, err, "page text cannot be read")
	}

	pr := PageResult{PageNumber: num, NativeChars: textnorm.CompactLen(native)}
	if pr.NativeChars >= opts.MinNativeChars() {
		pr.Text = native
		metrics.IncPage("native")
		lg.Debug().Int("native_chars", pr.NativeChars).Msg("native text sufficient")
		return pr, nil
	}

	pr.UsedOCRFallback = true
	pageDir := filepath.Join(workDir, fmt.Sprintf("page-%04d", num))
	if err := os.Mkdir(pageDir, 0o700); err != nil {
		return PageResult{}, fmt.Errorf("create page dir: %w", err)
	}
	// variants and engine output only live as long as the page
	defer os.RemoveAll(pageDir)

	pt := p.deps.Tuning.For(opts.Profile)
	rawPath := filepath.Join(pageDir, "page.png")
	if err := p.deps.Rasterizer.Rasterize(ctx, srcPath, num, pt.DPI, rawPath); err != nil {
		return PageResult{}, newError(CodeOCRFailed, num, err, "rasterization failed")
	}
	vs, err := variants.Generate(rawPath, pageDir, variantSet(opts.Profile))
	if err != nil {
		return PageResult{}, newError(CodeOCRFailed, num, err, "image preprocessing failed")
	}

	esc := &escalator{
		engine:  p.deps.Engine,
		langs:   opts.Languages,
		profile: opts.Profile,
		accept:  pt.AcceptScore,
		workDir: pageDir,
		log:     lg,
	}
	res, err := esc.run(ctx, vs)
	if err != nil {
		return PageResult{}, newError(CodeOCRFailed, num, err, "ocr failed")
	}

	var ocrText string
	if res.winner != nil {
		ocrText = res.winner.Text
		pr.OCRScore = res.winner.SelectionScore()
	}
	pr.OCRPasses = res.passes
	pr.Escalated = res.escalated
	pr.Text = Merge(native, ocrText)

	source := "ocr"
	if pr.NativeChars > 0 {
		source = "merged"
	}
	metrics.IncPage(source)
	lg.Debug().
		Int("native_chars", pr.NativeChars).
		Int("passes", res.passes).
		Bool("escalated", res.escalated).
		Int("score", pr.OCRScore).
		Msg("ocr page done")
	return pr, nil
}

// IsCancelled reports whether err comes from a cancelled or timed-out context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// SafeName reduces a user-supplied file name to its base for display.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
