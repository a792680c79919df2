package orchestrator

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/local/pdfdocx/internal/extract"
	"github.com/local/pdfdocx/internal/progress"
	"github.com/local/pdfdocx/internal/statuscheck"
	"github.com/local/pdfdocx/internal/storage"
)

// Extractor runs one extraction.
type Extractor interface {
	Extract(ctx context.Context, in extract.Input, opts extract.Options, report progress.Func) (*extract.Result, error)
}

// Fetcher downloads s3:// sources.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, maxBytes int64) ([]byte, string, error)
}

type Dependencies struct {
	Pipeline Extractor
	Status   progress.Store
	Results  storage.Store
	// S3 is optional; without it s3:// sources are rejected.
	S3      Fetcher
	HTTP    *http.Client
	Checker *statuscheck.Checker

	Tuning   extract.Tuning
	Defaults extract.Options

	Concurrency    int
	JobTimeout     time.Duration
	MaxUploadBytes int64
	ResultPrefix   string
	TempDir        string
}

// Orchestrator accepts extraction jobs over HTTP and runs them in the
// background, at most Concurrency at a time.
type Orchestrator struct {
	deps Dependencies
	sem  chan struct{}

	mu   sync.Mutex
	jobs map[string]context.CancelFunc
	wg   sync.WaitGroup

	ctx  context.Context
	stop context.CancelFunc
}

func New(deps Dependencies) *Orchestrator {
	if deps.Concurrency < 1 {
		deps.Concurrency = 1
	}
	if deps.JobTimeout <= 0 {
		deps.JobTimeout = 30 * time.Minute
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 64 << 20
	}
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{Timeout: time.Minute}
	}
	if deps.Tuning == nil {
		deps.Tuning = extract.DefaultTuning()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		deps: deps,
		sem:  make(chan struct{}, deps.Concurrency),
		jobs: map[string]context.CancelFunc{},
		ctx:  ctx,
		stop: stop,
	}
}

// Shutdown waits for running jobs until ctx expires, then cancels the rest
// and waits for them to record their final state.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		o.stop()
		<-done
	}
	o.stop()
}
