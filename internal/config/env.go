package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Port            string
	MaxUploadMB     int
	ShutdownTimeout time.Duration
	// FetchTimeout bounds downloads of file_url sources.
	FetchTimeout time.Duration
}

// WorkerConfig bounds job execution.
type WorkerConfig struct {
	Concurrency int
	JobTimeout  time.Duration
}

// PipelineConfig selects the extraction backends and their defaults.
type PipelineConfig struct {
	TextBackend      string // "mupdf"|"plain"
	Rasterizer       string // "pdftoppm"|"mupdf"
	RasterBinary     string
	OCREngine        string // "tesseract"|"gosseract"
	OCRBinary        string
	SkipConfidence   bool
	TempDir          string
	TuningFile       string
	DefaultProfile   string
	DefaultLanguages []string
}

// ProgressConfig selects the job progress store. An empty RedisURL keeps
// progress in memory.
type ProgressConfig struct {
	RedisURL string
	TTL      time.Duration
}

// StorageConfig configures where results are kept. An empty Bucket keeps
// results on local disk under LocalDir.
type StorageConfig struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	SealPassword string
	ResultPrefix string
	LocalDir     string
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Server   ServerConfig
	Worker   WorkerConfig
	Pipeline PipelineConfig
	Progress ProgressConfig
	Storage  StorageConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdfdocx.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdfdocx",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		MaxUploadMB:     parseInt(getEnv("MAX_UPLOAD_MB", "64"), 64),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "30s"), 30*time.Second),
		FetchTimeout:    parseDuration(getEnv("FETCH_TIMEOUT", "60s"), 60*time.Second),
	}

	cfg.Worker = WorkerConfig{
		Concurrency: parseInt(getEnv("WORKER_CONCURRENCY", "2"), 2),
		JobTimeout:  parseDuration(getEnv("JOB_TIMEOUT", "30m"), 30*time.Minute),
	}
	if cfg.Worker.Concurrency < 1 {
		cfg.Worker.Concurrency = 1
	}

	cfg.Pipeline = PipelineConfig{
		TextBackend:      strings.ToLower(getEnv("PDF_TEXT_BACKEND", "mupdf")),
		Rasterizer:       strings.ToLower(getEnv("RASTERIZER", "pdftoppm")),
		RasterBinary:     getEnv("PDFTOPPM_BIN", ""),
		OCREngine:        strings.ToLower(getEnv("OCR_ENGINE", "tesseract")),
		OCRBinary:        getEnv("TESSERACT_BIN", ""),
		SkipConfidence:   parseBool(getEnv("OCR_SKIP_CONFIDENCE", "false")),
		TempDir:          getEnv("PIPELINE_TMP_DIR", ""),
		TuningFile:       getEnv("OCR_TUNING_FILE", ""),
		DefaultProfile:   strings.ToLower(getEnv("DEFAULT_PROFILE", "quality")),
		DefaultLanguages: parseList(getEnv("DEFAULT_LANGUAGES", "eng")),
	}

	cfg.Progress = ProgressConfig{
		RedisURL: getEnv("REDIS_URL", ""),
		TTL:      parseDuration(getEnv("PROGRESS_TTL", "24h"), 24*time.Hour),
	}

	cfg.Storage = StorageConfig{
		Bucket:       getEnv("AWS_S3_BUCKET", ""),
		Region:       getEnv("AWS_REGION", ""),
		Endpoint:     getEnv("AWS_S3_ENDPOINT", ""),
		AccessKey:    getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		SealPassword: getEnv("RESULT_SEAL_PASSWORD", ""),
		ResultPrefix: strings.Trim(getEnv("RESULT_PREFIX", "results"), "/"),
		LocalDir:     getEnv("RESULT_DIR", "results"),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// parseList splits on commas and plus signs, the separators tesseract users
// already know.
func parseList(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '+' }) {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
