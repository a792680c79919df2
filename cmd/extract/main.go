// Command extract converts one PDF into a DOCX without the HTTP service.
//
//	extract [flags] input.pdf
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfdocx/internal/bootstrap"
	cfgpkg "github.com/local/pdfdocx/internal/config"
	"github.com/local/pdfdocx/internal/extract"
	"github.com/local/pdfdocx/internal/filetype"
	logpkg "github.com/local/pdfdocx/internal/logger"
	"github.com/local/pdfdocx/internal/progress"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	out := flag.String("o", "", "output .docx path (default: input name with .docx)")
	profile := flag.String("profile", cfg.Pipeline.DefaultProfile, "processing profile: fast, quality, maximum, ultra")
	langs := flag.String("lang", strings.Join(cfg.Pipeline.DefaultLanguages, "+"), "OCR languages, e.g. eng+deu")
	breaks := flag.Bool("page-breaks", true, "insert a page break between pages")
	markers := flag.Bool("markers", false, "mark pages that fell back to OCR")
	minChars := flag.Int("min-chars", -1, "native characters per page below which OCR runs (-1: profile default)")
	verbose := flag.Bool("v", false, "log progress")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] input.pdf\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	input := flag.Arg(0)

	// Logs go to stderr only; no log file for one-shot runs.
	cfg.Logging.File = ""
	if !*verbose {
		cfg.Logging.Level = "warn"
	}
	if err := bootstrap.Logging(cfg, true); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
	}
	defer logpkg.Close()

	ex, err := bootstrap.Pipeline(cfg.Pipeline)
	if err != nil {
		fatal(err)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		fatal(err)
	}
	if _, err := filetype.Check(data); err != nil {
		fatal(fmt.Errorf("%s: %w", input, err))
	}

	opts := extract.Options{
		Profile:                  extract.Profile(*profile),
		Languages:                extract.ParseLanguages(*langs),
		IncludePageBreaks:        *breaks,
		IncludeConfidenceMarkers: *markers,
	}
	if *minChars >= 0 {
		opts.MinNativeCharsPerPage = minChars
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	res, err := ex.Pipeline.Extract(ctx, extract.Input{Name: filepath.Base(input), Data: data}, opts, func(u progress.Update) {
		log.Debug().Int("progress", u.Progress).Str("step", u.Step).Msg("progress")
	})
	if err != nil {
		fatal(err)
	}

	dest := *out
	if dest == "" {
		dest = strings.TrimSuffix(input, filepath.Ext(input)) + ".docx"
	}
	if err := os.WriteFile(dest, res.Document, 0o644); err != nil {
		fatal(err)
	}
	fmt.Printf("%s: %d pages, %d via OCR %v, %d bytes in %s\n",
		dest, res.Run.PageCount, len(res.Run.OCRPages), res.Run.OCRPages, len(res.Document), time.Since(start).Round(time.Millisecond))
}

// fatal prints err and exits with a status derived from its pipeline code.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "extract: %v\n", err)
	logpkg.Close()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	switch extract.CodeOf(err) {
	case extract.CodeInputInvalid:
		return 2
	case extract.CodePDFParseFailed:
		return 3
	case extract.CodeOCRRuntimeMissing:
		return 4
	case extract.CodeOCRFailed:
		return 5
	case extract.CodeDOCXGenerationFailed:
		return 6
	}
	return 1
}
