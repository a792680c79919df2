package progress

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	st      Status
	expires time.Time
}

// MemoryStore keeps job status in process memory and forgets entries after ttl.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memEntry
	now     func() time.Time

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewMemoryStore starts a store whose janitor sweeps expired entries every ttl/2.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.janitor(ttl / 2)
	return s
}

func (s *MemoryStore) Set(_ context.Context, jobID string, st Status) error {
	s.mu.Lock()
	s.entries[jobID] = memEntry{st: st, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (Status, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[jobID]
	s.mu.RUnlock()
	if !ok || s.now().After(e.expires) {
		return Status{}, false, nil
	}
	return e.st, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	delete(s.entries, jobID)
	s.mu.Unlock()
	return nil
}

// Close stops the janitor and drops all entries.
func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		s.mu.Lock()
		s.entries = make(map[string]memEntry)
		s.mu.Unlock()
	})
	return nil
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()
}

func (s *MemoryStore) janitor(every time.Duration) {
	defer s.wg.Done()
	if every < time.Second {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.sweep()
		}
	}
}
