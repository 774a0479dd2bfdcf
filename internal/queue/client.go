package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/visionaid/internal/config"
	"github.com/nikhilbhutani/visionaid/internal/conversion"
	"github.com/nikhilbhutani/visionaid/internal/jobs"
)

// Client dispatches conversion jobs to the asynq worker. It implements
// jobs.Dispatcher.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	tracker   jobs.Tracker
	budget    time.Duration
}

// NewClient builds a dispatcher over Redis. budget is the default worst-case
// poll wait; task timeouts are derived from it.
func NewClient(cfg config.RedisConfig, tracker jobs.Tracker, budget time.Duration) *Client {
	opt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		tracker:   tracker,
		budget:    budget,
	}
}

func (c *Client) Close() error {
	ierr := c.inspector.Close()
	if err := c.client.Close(); err != nil {
		return err
	}
	return ierr
}

// taskTimeout leaves room for the analysis call on top of the poll budget.
func (c *Client) taskTimeout(req conversion.Request) time.Duration {
	budget := c.budget
	if req.Tuning.WaitTime > 0 && req.Tuning.MaxRetries > 0 {
		budget = req.Tuning.WaitTime * time.Duration(req.Tuning.MaxRetries)
	}
	return budget + 5*time.Minute
}

// Dispatch enqueues the job with the job ID as task ID. Failed conversions
// are results, not task errors, so the task is never retried.
func (c *Client) Dispatch(ctx context.Context, jobID string, req conversion.Request) error {
	data, err := json.Marshal(NewConversionRunPayload(jobID, req))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(TypeConversionRun, data)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID(jobID),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.Timeout(c.taskTimeout(req)),
		asynq.Retention(time.Hour),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeConversionRun, err)
	}
	return nil
}

// Cancel signals a running task, or removes a task that has not started and
// records it as canceled.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	info, err := c.inspector.GetTaskInfo(QueueDefault, jobID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return fmt.Errorf("cancel %s: %w", jobID, jobs.ErrNotRunning)
		}
		return fmt.Errorf("inspect %s: %w", jobID, err)
	}

	switch info.State {
	case asynq.TaskStateActive:
		if err := c.inspector.CancelProcessing(jobID); err != nil {
			return fmt.Errorf("cancel %s: %w", jobID, err)
		}
		return nil
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateRetry:
		if err := c.inspector.DeleteTask(QueueDefault, jobID); err != nil {
			return fmt.Errorf("delete %s: %w", jobID, err)
		}
		res := conversion.Failed(conversion.KindCanceled, "Conversion canceled before it started")
		return c.tracker.Complete(ctx, jobID, res)
	default:
		return fmt.Errorf("cancel %s: %w", jobID, jobs.ErrNotRunning)
	}
}
