package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfdocx/internal/extract"
	"github.com/local/pdfdocx/internal/metrics"
	"github.com/local/pdfdocx/internal/progress"
	"github.com/local/pdfdocx/internal/storage"
)

// Codes recorded for failures outside the extraction taxonomy.
const (
	CodeCancelled     = "CANCELLED"
	CodeTimeout       = "TIMEOUT"
	CodeStorageFailed = "STORAGE_FAILED"
	CodeInternal      = "INTERNAL"
)

var errStorage = errors.New("store result")

// job is one accepted request. Once the job is started, meta belongs to the
// goroutine running it; stores only ever see copies and handlers read totalPages.
type job struct {
	id         string
	input      extract.Input
	opts       extract.Options
	start      time.Time
	totalPages int
	meta       map[string]any
}

func (o *Orchestrator) newJob(in extract.Input, opts extract.Options, totalPages int) *job {
	meta := map[string]any{
		"source_name": in.Name,
		"profile":     string(opts.Profile),
		"languages":   opts.Languages,
		"size_bytes":  len(in.Data),
	}
	if totalPages > 0 {
		meta["total_pages"] = totalPages
	}
	return &job{id: uuid.NewString(), input: in, opts: opts, start: time.Now(), totalPages: totalPages, meta: meta}
}

// enqueue records the job as queued and runs it in the background.
func (o *Orchestrator) enqueue(ctx context.Context, j *job) error {
	start := j.start
	if err := o.deps.Status.Set(ctx, j.id, progress.Status{
		State: progress.StateQueued, Step: "queued", Message: "queued", Start: &start, Metadata: maps.Clone(j.meta),
	}); err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	jctx, cancel := o.register(o.ctx, j.id)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		_, _ = o.run(jctx, j)
	}()
	log.Info().Str("job_id", j.id).Str("source", j.input.Name).Str("options", j.opts.String()).Msg("job created")
	return nil
}

// register derives the job context and remembers its cancel func.
func (o *Orchestrator) register(parent context.Context, id string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, o.deps.JobTimeout)
	o.mu.Lock()
	o.jobs[id] = cancel
	o.mu.Unlock()
	return ctx, func() {
		o.mu.Lock()
		delete(o.jobs, id)
		o.mu.Unlock()
		cancel()
	}
}

// cancel stops a running or queued job. It reports false when the job is not
// running in this process.
func (o *Orchestrator) cancel(id string) bool {
	o.mu.Lock()
	cancel, ok := o.jobs[id]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// run waits for a worker slot, extracts, stores the document and records the
// final state. The returned error is the one recorded for the job.
func (o *Orchestrator) run(ctx context.Context, j *job) (*extract.Result, error) {
	logger := log.With().Str("job_id", j.id).Logger()

	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		o.finish(j, nil, ctx.Err(), timedOut(ctx))
		return nil, ctx.Err()
	}
	defer func() { <-o.sem }()
	metrics.IncJobsInflight()
	defer metrics.DecJobsInflight()

	start := j.start
	base := progress.Status{Start: &start, Metadata: maps.Clone(j.meta)}
	sink := progress.NewSink(o.deps.Status, j.id, base, 32)
	sink.Report(progress.Update{Progress: 0, Step: "started"})
	res, err := o.deps.Pipeline.Extract(ctx, j.input, j.opts, sink.Report)
	sink.Close()

	if err == nil {
		var loc storage.Location
		loc, err = o.deps.Results.Put(ctx, storage.ResultKey(o.deps.ResultPrefix, j.id), res.Document, map[string]string{
			"name":   resultName(j.input.Name),
			"job-id": j.id,
		})
		if err != nil {
			err = fmt.Errorf("%w: %v", errStorage, err)
		} else {
			j.meta["result_key"] = loc.Key
			j.meta["result_url"] = loc.URL
			j.meta["result_bytes"] = len(res.Document)
		}
	}
	if err != nil {
		logger.Error().Err(err).Msg("job failed")
	}
	o.finish(j, res, err, timedOut(ctx))
	return res, err
}

func timedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// finish writes the terminal status. It uses a fresh context so that a
// cancelled job can still record that it was cancelled.
func (o *Orchestrator) finish(j *job, res *extract.Result, err error, deadline bool) {
	end := time.Now()
	start := j.start
	st := progress.Status{Start: &start, End: &end, Metadata: maps.Clone(j.meta)}

	switch {
	case err == nil:
		st.State, st.Progress, st.Step, st.Message = progress.StateSuccess, 100, "completed", "completed"
		st.Metadata["page_count"] = res.Run.PageCount
		st.Metadata["ocr_pages"] = res.Run.OCRPages
		st.Metadata["pages"] = pageSummaries(res.Run.Pages)
	case extract.IsCancelled(err) && deadline:
		st.State, st.Step, st.Code = progress.StateFailed, "failed", CodeTimeout
		st.Message = fmt.Sprintf("job exceeded %s", o.deps.JobTimeout)
	case extract.IsCancelled(err):
		st.State, st.Step, st.Code, st.Message = progress.StateCancelled, "cancelled", CodeCancelled, "cancelled"
	default:
		st.State, st.Step = progress.StateFailed, "failed"
		st.Code, st.Message = failureCode(err), err.Error()
		var pe *extract.Error
		if errors.As(err, &pe) {
			st.Message = pe.Message
			if pe.Page > 0 {
				st.Metadata["failed_page"] = pe.Page
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := o.deps.Status.Set(ctx, j.id, st); serr != nil {
		log.Error().Err(serr).Str("job_id", j.id).Msg("failed to record job status")
	}
	log.Info().Str("job_id", j.id).Str("state", st.State).Str("code", st.Code).Dur("took", end.Sub(start)).Msg("job finished")
}

func failureCode(err error) string {
	if c := extract.CodeOf(err); c != "" {
		return string(c)
	}
	if errors.Is(err, errStorage) {
		return CodeStorageFailed
	}
	return CodeInternal
}

// pageSummaries keeps the per-page decisions without the text itself.
func pageSummaries(pages []extract.PageResult) []map[string]any {
	out := make([]map[string]any, 0, len(pages))
	for _, p := range pages {
		m := map[string]any{
			"page":         p.PageNumber,
			"used_ocr":     p.UsedOCRFallback,
			"native_chars": p.NativeChars,
		}
		if p.UsedOCRFallback {
			m["ocr_score"] = p.OCRScore
			m["ocr_passes"] = p.OCRPasses
			m["escalated"] = p.Escalated
		}
		out = append(out, m)
	}
	return out
}
