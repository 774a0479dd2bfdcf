package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nikhilbhutani/visionaid/internal/conversion"
)

var (
	ErrDuplicateJob    = errors.New("job already exists")
	ErrNotFound        = errors.New("job not found")
	ErrInvalidState    = errors.New("job is already finished")
	ErrInvalidProgress = errors.New("invalid job progress")
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is the tracked state of one asynchronous conversion.
type Job struct {
	ID        string             `json:"task_id"`
	Status    Status             `json:"status"`
	Progress  int                `json:"progress"`
	Result    *conversion.Result `json:"result"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Tracker records job lifecycles. Jobs move from processing to completed or
// failed exactly once; progress only moves forward.
type Tracker interface {
	Submit(ctx context.Context, id string) error
	Advance(ctx context.Context, id string, progress int) error
	Complete(ctx context.Context, id string, result conversion.Result) error
	Get(ctx context.Context, id string) (*Job, error)
}

func newJob(id string, now time.Time) *Job {
	return &Job{
		ID:        id,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *Job) advance(progress int, now time.Time) error {
	if j.Terminal() {
		return fmt.Errorf("advance %s: %w", j.ID, ErrInvalidState)
	}
	if progress < 0 || progress > 100 {
		return fmt.Errorf("advance %s to %d: %w", j.ID, progress, ErrInvalidProgress)
	}
	if progress < j.Progress {
		return fmt.Errorf("advance %s from %d to %d: %w", j.ID, j.Progress, progress, ErrInvalidProgress)
	}
	j.Progress = progress
	j.UpdatedAt = now
	return nil
}

func (j *Job) complete(result conversion.Result, now time.Time) error {
	if j.Terminal() {
		return fmt.Errorf("complete %s: %w", j.ID, ErrInvalidState)
	}
	j.Status = StatusFailed
	if result.Success {
		j.Status = StatusCompleted
	}
	j.Progress = 100
	j.Result = &result
	j.UpdatedAt = now
	return nil
}
