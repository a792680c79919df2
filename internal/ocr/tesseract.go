package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfdocx/internal/runner"
)

// Tesseract drives the tesseract command line tool.
type Tesseract struct {
	Binary string
	// SkipConfidence disables the second, table-output run used to read word confidences.
	SkipConfidence bool
}

func (t *Tesseract) bin() string {
	if t.Binary != "" {
		return t.Binary
	}
	return "tesseract"
}

func (t *Tesseract) args(req Request, outBase string) []string {
	args := []string{
		req.ImagePath, outBase,
		"-l", LanguageArg(req.Languages),
		"--psm", strconv.Itoa(int(req.Segmentation)),
		"--oem", strconv.Itoa(EngineMode),
	}
	keys := make([]string, 0, len(req.Flags))
	for k := range req.Flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-c", k+"="+req.Flags[k])
	}
	return args
}

// Recognize writes <OutputBase>.txt and reads it back. A missing text file or
// a failed run is an error; confidence is best-effort.
func (t *Tesseract) Recognize(ctx context.Context, req Request) (Output, error) {
	if req.OutputBase == "" {
		return Output{}, fmt.Errorf("ocr request without output base")
	}
	if _, err := runner.Run(ctx, t.bin(), t.args(req, req.OutputBase)...); err != nil {
		return Output{}, err
	}
	text, err := os.ReadFile(req.OutputBase + ".txt")
	if err != nil {
		return Output{}, fmt.Errorf("ocr produced no output: %w", err)
	}

	out := Output{Text: string(text)}
	if !t.SkipConfidence {
		out.Confidence = t.confidence(ctx, req)
	}
	return out, nil
}

func (t *Tesseract) confidence(ctx context.Context, req Request) *float64 {
	base := req.OutputBase + "-conf"
	args := append(t.args(req, base), "tsv")
	if _, err := runner.Run(ctx, t.bin(), args...); err != nil {
		log.Debug().Err(err).Str("image", req.ImagePath).Msg("confidence table unavailable")
		return nil
	}
	data, err := os.ReadFile(base + ".tsv")
	if err != nil {
		return nil
	}
	return MeanConfidence(data)
}

// MeanConfidence averages the conf column over word rows of a tesseract TSV table.
// Rows with negative confidence or blank text are ignored. Returns nil when no word qualifies.
func MeanConfidence(tsv []byte) *float64 {
	const (
		colLevel = 0
		colConf  = 10
		colText  = 11
		wordRow  = "5"
	)
	var sum float64
	var n int
	sc := bufio.NewScanner(bytes.NewReader(tsv))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		cols := strings.Split(sc.Text(), "\t")
		if len(cols) <= colText || cols[colLevel] != wordRow {
			continue
		}
		if strings.TrimSpace(cols[colText]) == "" {
			continue
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(cols[colConf]), 64)
		if err != nil || conf < 0 {
			continue
		}
		sum += conf
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}
