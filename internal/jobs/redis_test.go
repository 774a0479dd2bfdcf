package jobs_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/visionaid/internal/jobs"
)

func newRedisTracker(t *testing.T) (*jobs.RedisTracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return jobs.NewRedisTracker(client, time.Hour), mr
}

func TestRedisTracker(t *testing.T) {
	trackerContract(t, func(t *testing.T) jobs.Tracker {
		tr, _ := newRedisTracker(t)
		return tr
	})
}

func TestRedisTrackerExpires(t *testing.T) {
	ctx := context.Background()
	tr, mr := newRedisTracker(t)

	require.NoError(t, tr.Submit(ctx, "a"))
	mr.FastForward(2 * time.Hour)

	_, err := tr.Get(ctx, "a")
	require.ErrorIs(t, err, jobs.ErrNotFound)
}
