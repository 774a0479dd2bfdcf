package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// HandlersRegistry maps task types to handlers. Every task is logged with
// its type, id and duration.
type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	mux := asynq.NewServeMux()
	mux.Use(logTasks)
	return &HandlersRegistry{mux: mux}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

func logTasks(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		id, _ := asynq.GetTaskID(ctx)
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		if err != nil {
			slog.Error("task failed", "type", t.Type(), "task_id", id, "duration", time.Since(start), "error", err)
			return err
		}
		slog.Info("task done", "type", t.Type(), "task_id", id, "duration", time.Since(start))
		return nil
	})
}
