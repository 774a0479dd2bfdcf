package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/visionaid/internal/conversion"
)

// ErrNotRunning is returned by Cancel when the job is not executing in this
// process.
var ErrNotRunning = errors.New("job is not running")

// Converter runs one conversion. *conversion.Pipeline implements it.
type Converter interface {
	Convert(ctx context.Context, req conversion.Request) conversion.Result
}

// Dispatcher hands a submitted job to something that will run it.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string, req conversion.Request) error
	Cancel(ctx context.Context, jobID string) error
}

// Start registers a new job and dispatches it. A job that could not be
// dispatched is recorded as failed.
func Start(ctx context.Context, tracker Tracker, d Dispatcher, req conversion.Request) (string, error) {
	id := uuid.NewString()
	if err := tracker.Submit(ctx, id); err != nil {
		return "", err
	}
	if err := d.Dispatch(ctx, id, req); err != nil {
		res := conversion.Failed(conversion.KindDispatch, fmt.Sprintf("Processing error: job could not be queued: %v", err))
		if cerr := tracker.Complete(context.WithoutCancel(ctx), id, res); cerr != nil {
			slog.Error("failed to record dispatch failure", "job_id", id, "error", cerr)
		}
		return "", fmt.Errorf("dispatch %s: %w", id, err)
	}
	return id, nil
}

// RunJob drives one submitted job through the converter and records its
// progress and result. Tracker writes survive cancellation of ctx so a
// canceled job still ends up failed.
func RunJob(ctx context.Context, tracker Tracker, conv Converter, jobID string, req conversion.Request) error {
	trackCtx := context.WithoutCancel(ctx)
	log := slog.With("job_id", jobID)

	for _, p := range []int{10, 30, 50} {
		if err := tracker.Advance(trackCtx, jobID, p); err != nil {
			log.Error("failed to advance job", "progress", p, "error", err)
			abandon(trackCtx, tracker, jobID, err)
			return err
		}
	}

	res := conv.Convert(ctx, req)

	if err := tracker.Advance(trackCtx, jobID, 90); err != nil {
		log.Warn("failed to advance job", "progress", 90, "error", err)
	}
	if err := tracker.Complete(trackCtx, jobID, res); err != nil {
		log.Error("failed to complete job", "error", err)
		return err
	}

	if res.Success {
		log.Info("job completed", "audio_filename", res.AudioFilename)
	} else {
		log.Warn("job failed", "error_kind", res.ErrorKind, "error", res.Error)
	}
	return nil
}

// abandon marks a job that could not be run as failed so it does not stay
// processing until it expires. Jobs that are gone or already finished are
// left alone.
func abandon(ctx context.Context, tracker Tracker, jobID string, cause error) {
	if errors.Is(cause, ErrNotFound) || errors.Is(cause, ErrInvalidState) {
		return
	}
	res := conversion.Failed(conversion.KindDispatch, fmt.Sprintf("Processing error: job progress could not be recorded: %v", cause))
	if err := tracker.Complete(ctx, jobID, res); err != nil {
		slog.Error("failed to record abandoned job", "job_id", jobID, "error", err)
	}
}

// LocalDispatcher runs each job on its own goroutine in this process.
type LocalDispatcher struct {
	tracker Tracker
	conv    Converter
	base    context.Context
	stop    context.CancelFunc

	mu      sync.Mutex
	closed  bool
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewLocalDispatcher(tracker Tracker, conv Converter) *LocalDispatcher {
	base, stop := context.WithCancel(context.Background())
	return &LocalDispatcher{
		tracker: tracker,
		conv:    conv,
		base:    base,
		stop:    stop,
		cancels: make(map[string]context.CancelFunc),
	}
}

func (d *LocalDispatcher) Dispatch(_ context.Context, jobID string, req conversion.Request) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.New("dispatcher is shutting down")
	}
	ctx, cancel := context.WithCancel(d.base)
	d.cancels[jobID] = cancel
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.cancels, jobID)
			d.mu.Unlock()
			cancel()
		}()
		_ = RunJob(ctx, d.tracker, d.conv, jobID, req)
	}()
	return nil
}

func (d *LocalDispatcher) Cancel(_ context.Context, jobID string) error {
	d.mu.Lock()
	cancel, ok := d.cancels[jobID]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("cancel %s: %w", jobID, ErrNotRunning)
	}
	cancel()
	return nil
}

// Shutdown waits for running jobs. When ctx expires first, the remaining jobs
// are canceled and awaited.
func (d *LocalDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.stop()
		return nil
	case <-ctx.Done():
		d.stop()
		<-done
		return ctx.Err()
	}
}
