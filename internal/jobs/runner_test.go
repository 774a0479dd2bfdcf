package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/visionaid/internal/conversion"
	"github.com/nikhilbhutani/visionaid/internal/jobs"
)

type funcConverter func(ctx context.Context, req conversion.Request) conversion.Result

func (f funcConverter) Convert(ctx context.Context, req conversion.Request) conversion.Result {
	return f(ctx, req)
}

// progressTracker records every progress value it accepts.
type progressTracker struct {
	*jobs.MemoryTracker
	mu   sync.Mutex
	seen []int
}

func (p *progressTracker) Advance(ctx context.Context, id string, progress int) error {
	p.mu.Lock()
	p.seen = append(p.seen, progress)
	p.mu.Unlock()
	return p.MemoryTracker.Advance(ctx, id, progress)
}

func waitTerminal(t *testing.T, tr jobs.Tracker, id string) *jobs.Job {
	t.Helper()
	var job *jobs.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = tr.Get(context.Background(), id)
		return err == nil && job.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestRunJobRecordsProgressAndResult(t *testing.T) {
	ctx := context.Background()
	tr := &progressTracker{MemoryTracker: jobs.NewMemoryTracker(time.Hour)}
	require.NoError(t, tr.Submit(ctx, "j1"))

	want := conversion.Succeeded("text", "a.mp3", "/outputs/a.mp3", "banmai")
	conv := funcConverter(func(context.Context, conversion.Request) conversion.Result { return want })

	require.NoError(t, jobs.RunJob(ctx, tr, conv, "j1", conversion.Request{Image: []byte("x")}))

	assert.Equal(t, []int{10, 30, 50, 90}, tr.seen)
	job, err := tr.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, want, *job.Result)
}

func TestRunJobUnknownJob(t *testing.T) {
	conv := funcConverter(func(context.Context, conversion.Request) conversion.Result {
		t.Fatal("converter must not run")
		return conversion.Result{}
	})
	err := jobs.RunJob(context.Background(), jobs.NewMemoryTracker(time.Hour), conv, "nope", conversion.Request{})
	require.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestStartGivesDistinctIDs(t *testing.T) {
	ctx := context.Background()
	tr := jobs.NewMemoryTracker(time.Hour)
	conv := funcConverter(func(_ context.Context, req conversion.Request) conversion.Result {
		return conversion.Succeeded("t", string(req.Image)+".mp3", "/outputs/x.mp3", "banmai")
	})
	d := jobs.NewLocalDispatcher(tr, conv)

	img := []byte("same")
	id1, err := jobs.Start(ctx, tr, d, conversion.Request{Image: img})
	require.NoError(t, err)
	id2, err := jobs.Start(ctx, tr, d, conversion.Request{Image: img})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	waitTerminal(t, tr, id1)
	waitTerminal(t, tr, id2)
	require.NoError(t, d.Shutdown(ctx))
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, string, conversion.Request) error {
	return errors.New("redis down")
}
func (failingDispatcher) Cancel(context.Context, string) error { return jobs.ErrNotRunning }

// capturingDispatcher remembers the job id it was handed before failing.
type capturingDispatcher struct {
	failingDispatcher
	id string
}

func (c *capturingDispatcher) Dispatch(ctx context.Context, id string, req conversion.Request) error {
	c.id = id
	return c.failingDispatcher.Dispatch(ctx, id, req)
}

func TestStartRecordsDispatchFailure(t *testing.T) {
	ctx := context.Background()
	tr := jobs.NewMemoryTracker(time.Hour)
	d := &capturingDispatcher{}

	_, err := jobs.Start(ctx, tr, d, conversion.Request{})
	require.Error(t, err)

	job, err := tr.Get(ctx, d.id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, conversion.KindDispatch, job.Result.ErrorKind)
	assert.Contains(t, job.Result.Error, "could not be queued")
}

// flakyTracker fails the first Advance call with a transient error.
type flakyTracker struct {
	*jobs.MemoryTracker
	failed bool
}

func (f *flakyTracker) Advance(ctx context.Context, id string, progress int) error {
	if !f.failed {
		f.failed = true
		return errors.New("connection reset")
	}
	return f.MemoryTracker.Advance(ctx, id, progress)
}

func TestRunJobFailsJobWhenProgressCannotBeRecorded(t *testing.T) {
	ctx := context.Background()
	tr := &flakyTracker{MemoryTracker: jobs.NewMemoryTracker(time.Hour)}
	require.NoError(t, tr.Submit(ctx, "j1"))

	conv := funcConverter(func(context.Context, conversion.Request) conversion.Result {
		t.Fatal("converter must not run")
		return conversion.Result{}
	})

	err := jobs.RunJob(ctx, tr, conv, "j1", conversion.Request{Image: []byte("x")})
	require.Error(t, err)

	job, err := tr.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, conversion.KindDispatch, job.Result.ErrorKind)
}

func TestLocalDispatcherCancel(t *testing.T) {
	ctx := context.Background()
	tr := jobs.NewMemoryTracker(time.Hour)
	started := make(chan struct{})
	conv := funcConverter(func(ctx context.Context, _ conversion.Request) conversion.Result {
		close(started)
		<-ctx.Done()
		return conversion.Failed(conversion.KindCanceled, "Conversion canceled: "+ctx.Err().Error())
	})
	d := jobs.NewLocalDispatcher(tr, conv)

	id, err := jobs.Start(ctx, tr, d, conversion.Request{Image: []byte("x")})
	require.NoError(t, err)
	<-started

	require.NoError(t, d.Cancel(ctx, id))
	job := waitTerminal(t, tr, id)
	assert.Equal(t, jobs.StatusFailed, job.Status)
	assert.Equal(t, conversion.KindCanceled, job.Result.ErrorKind)

	require.Eventually(t, func() bool {
		return errors.Is(d.Cancel(ctx, id), jobs.ErrNotRunning)
	}, time.Second, 5*time.Millisecond)
}

func TestLocalDispatcherShutdownCancelsStragglers(t *testing.T) {
	tr := jobs.NewMemoryTracker(time.Hour)
	conv := funcConverter(func(ctx context.Context, _ conversion.Request) conversion.Result {
		<-ctx.Done()
		return conversion.Failed(conversion.KindCanceled, "canceled")
	})
	d := jobs.NewLocalDispatcher(tr, conv)

	id, err := jobs.Start(context.Background(), tr, d, conversion.Request{Image: []byte("x")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)

	job, err := tr.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, job.Status)

	_, err = jobs.Start(context.Background(), tr, d, conversion.Request{})
	require.Error(t, err)
}
