package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/visionaid/internal/jobs"
	"github.com/nikhilbhutani/visionaid/internal/queue"
)

type ConversionWorker struct {
	tracker jobs.Tracker
	conv    jobs.Converter
}

func NewConversionWorker(tracker jobs.Tracker, conv jobs.Converter) *ConversionWorker {
	return &ConversionWorker{tracker: tracker, conv: conv}
}

func (w *ConversionWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ConversionRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	slog.Info("running conversion job", "job_id", payload.JobID, "bytes", len(payload.Image), "voice", payload.Voice)

	if err := jobs.RunJob(ctx, w.tracker, w.conv, payload.JobID, payload.Request()); err != nil {
		if errors.Is(err, jobs.ErrNotFound) || errors.Is(err, jobs.ErrInvalidState) {
			return fmt.Errorf("conversion job %s: %w: %w", payload.JobID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("conversion job %s: %w", payload.JobID, err)
	}
	return nil
}
