// Package bootstrap turns configuration into the running pieces shared by
// the service and the command line tool.
package bootstrap

import (
	"fmt"
	"strings"

	"github.com/local/pdfdocx/internal/config"
	"github.com/local/pdfdocx/internal/extract"
	"github.com/local/pdfdocx/internal/logger"
	"github.com/local/pdfdocx/internal/ocr"
	"github.com/local/pdfdocx/internal/pdfdoc"
	"github.com/local/pdfdocx/internal/raster"
	"github.com/local/pdfdocx/internal/statuscheck"
)

// Logging initialises the global logger from cfg.
func Logging(cfg config.Config, stderr bool) error {
	return logger.Init(logger.Options{
		Service:      "pdfdocx",
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		Stderr:       stderr,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
}

// Extraction is a ready pipeline together with the pieces the service
// reuses: the runtime probe for /status and the loaded tuning for request
// validation.
type Extraction struct {
	Pipeline *extract.Pipeline
	Probe    *statuscheck.Probe
	Tuning   extract.Tuning
}

// Pipeline builds the extraction pipeline from pc. The tuning file is read
// once here.
func Pipeline(pc config.PipelineConfig) (Extraction, error) {
	opener, err := pdfdoc.NewOpener(pc.TextBackend)
	if err != nil {
		return Extraction{}, err
	}
	rast, err := raster.New(pc.Rasterizer, pc.RasterBinary)
	if err != nil {
		return Extraction{}, err
	}
	engine, err := ocr.New(pc.OCREngine, pc.OCRBinary)
	if err != nil {
		return Extraction{}, fmt.Errorf("ocr engine %q: %w", pc.OCREngine, err)
	}
	if t, ok := engine.(*ocr.Tesseract); ok {
		t.SkipConfidence = pc.SkipConfidence
	}
	tuning, err := extract.LoadTuning(pc.TuningFile)
	if err != nil {
		return Extraction{}, err
	}

	probe := statuscheck.NewProbe(binaries(pc)...)
	p := extract.New(extract.Dependencies{
		Opener:     opener,
		Rasterizer: rast,
		Engine:     engine,
		Probe:      probe,
		Tuning:     tuning,
		TempDir:    pc.TempDir,
	})
	return Extraction{Pipeline: p, Probe: probe, Tuning: tuning}, nil
}

// Backends describes the selected backends for status output.
func Backends(pc config.PipelineConfig) map[string]string {
	return map[string]string{
		"text":       orDefault(pc.TextBackend, pdfdoc.BackendMuPDF),
		"rasterizer": orDefault(pc.Rasterizer, raster.BackendPdftoppm),
		"ocr":        orDefault(pc.OCREngine, ocr.BackendTesseract),
	}
}

// binaries lists the executables the configured backends need on PATH.
func binaries(pc config.PipelineConfig) []string {
	var out []string
	if orDefault(pc.Rasterizer, raster.BackendPdftoppm) == raster.BackendPdftoppm {
		out = append(out, binaryOr(pc.RasterBinary, "pdftoppm"))
	}
	if orDefault(pc.OCREngine, ocr.BackendTesseract) == ocr.BackendTesseract {
		out = append(out, binaryOr(pc.OCRBinary, "tesseract"))
	}
	return out
}

func orDefault(v, def string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return def
	}
	return v
}

func binaryOr(path, def string) string {
	if path = strings.TrimSpace(path); path != "" {
		return path
	}
	return def
}
