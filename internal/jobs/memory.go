package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nikhilbhutani/visionaid/internal/conversion"
)

// MemoryTracker keeps jobs in process memory. Finished jobs are evicted once
// they are older than the TTL.
type MemoryTracker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{
		jobs: make(map[string]*Job),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (m *MemoryTracker) Submit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; ok {
		return fmt.Errorf("submit %s: %w", id, ErrDuplicateJob)
	}
	m.jobs[id] = newJob(id, m.now())
	return nil
}

func (m *MemoryTracker) Advance(_ context.Context, id string, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("advance %s: %w", id, ErrNotFound)
	}
	return job.advance(progress, m.now())
}

func (m *MemoryTracker) Complete(_ context.Context, id string, result conversion.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("complete %s: %w", id, ErrNotFound)
	}
	return job.complete(result, m.now())
}

// Get returns a snapshot; callers may not mutate tracker state through it.
func (m *MemoryTracker) Get(_ context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	snapshot := *job
	if job.Result != nil {
		res := *job.Result
		snapshot.Result = &res
	}
	return &snapshot, nil
}

// Sweep evicts finished jobs last updated before the TTL and returns how many
// were removed.
func (m *MemoryTracker) Sweep() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, job := range m.jobs {
		if job.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done.
func (m *MemoryTracker) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Info("evicted expired jobs", "count", n)
			}
		}
	}
}
