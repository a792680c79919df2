package progress

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Sink forwards pipeline updates to a Store from its own goroutine.
// Report never blocks: when the buffer is full the update is dropped.
type Sink struct {
	store Store
	jobID string
	base  Status
	ch    chan Update
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewSink starts a forwarder for jobID. base supplies the fields that updates
// do not carry, such as the start time.
func NewSink(store Store, jobID string, base Status, buffer int) *Sink {
	if buffer <= 0 {
		buffer = 16
	}
	s := &Sink{store: store, jobID: jobID, base: base, ch: make(chan Update, buffer)}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Report is a Func.
func (s *Sink) Report(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- u:
	default:
		// drop if buffer full
	}
}

// Close drains pending updates and stops the forwarder.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Sink) loop() {
	defer s.wg.Done()
	for u := range s.ch {
		st := s.base
		st.State = StateProcessing
		st.Progress = u.Progress
		st.Step = u.Step
		if len(u.Metadata) > 0 {
			md := make(map[string]any, len(st.Metadata)+len(u.Metadata))
			for k, v := range s.base.Metadata {
				md[k] = v
			}
			for k, v := range u.Metadata {
				md[k] = v
			}
			st.Metadata = md
			s.base.Metadata = md
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.store.Set(ctx, s.jobID, st); err != nil {
			log.Debug().Err(err).Str("job_id", s.jobID).Msg("progress update dropped")
		}
		cancel()
	}
}
