// Package progress carries extraction progress from the pipeline to a job store.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Update is one progress report. Progress is 0-100.
type Update struct {
	Progress int            `json:"progress"`
	Step     string         `json:"step"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Func receives progress updates. Implementations must not block.
type Func func(Update)

// Safe wraps fn so that a panicking callback never reaches the caller.
// A nil fn yields a no-op.
func Safe(fn Func) Func {
	if fn == nil {
		return func(Update) {}
	}
	return func(u Update) {
		defer func() {
			if r := recover(); r != nil {
				log.Warn().Interface("panic", r).Str("step", u.Step).Msg("progress callback panicked")
			}
		}()
		fn(u)
	}
}

// Async delivers updates to fn in order from its own goroutine. The returned
// Func never blocks: an update is dropped when buffer updates are already pending.
// stop ends delivery and waits at most grace for pending updates to drain.
func Async(fn Func, buffer int) (report Func, stop func(grace time.Duration)) {
	if buffer <= 0 {
		buffer = 16
	}
	var (
		mu     sync.Mutex
		closed bool
	)
	ch := make(chan Update, buffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range ch {
			fn(u)
		}
	}()

	report = func(u Update) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- u:
		default:
			log.Debug().Str("step", u.Step).Int("progress", u.Progress).Msg("progress update dropped, callback is slow")
		}
	}
	stop = func(grace time.Duration) {
		mu.Lock()
		if !closed {
			closed = true
			close(ch)
		}
		mu.Unlock()
		t := time.NewTimer(grace)
		defer t.Stop()
		select {
		case <-done:
		case <-t.C:
			log.Warn().Dur("grace", grace).Msg("progress callback still busy, not waiting")
		}
	}
	return report, stop
}

// Job states.
const (
	StateQueued     = "queued"
	StateProcessing = "processing"
	StateSuccess    = "success"
	StateFailed     = "failed"
	StateCancelled  = "cancelled"
)

// Status is the stored record of one job.
type Status struct {
	State    string         `json:"status"`
	Progress int            `json:"progress"`
	Step     string         `json:"step"`
	Message  string         `json:"message,omitempty"`
	Code     string         `json:"code,omitempty"`
	Start    *time.Time     `json:"start_time,omitempty"`
	End      *time.Time     `json:"end_time,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Terminal reports whether the job has finished one way or another.
func (s Status) Terminal() bool {
	return s.State == StateSuccess || s.State == StateFailed || s.State == StateCancelled
}

// Store persists job status records with expiry.
type Store interface {
	Set(ctx context.Context, jobID string, st Status) error
	Get(ctx context.Context, jobID string) (Status, bool, error)
	Delete(ctx context.Context, jobID string) error
	Close() error
}
