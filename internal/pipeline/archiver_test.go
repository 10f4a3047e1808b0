package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

type recordingArchive struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (r *recordingArchive) ArchiveListings(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, before)
	return int64(len(r.cutoffs)), r.err
}

func (r *recordingArchive) runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cutoffs)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunUsesRetentionCutoff(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	rec := &recordingArchive{}
	a := NewArchiver(rec, 48*time.Hour, quietLogger()).
		WithClock(domain.ClockFunc(func() time.Time { return now }))

	n, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.Len(t, rec.cutoffs, 1)
	assert.Equal(t, now.Add(-48*time.Hour), rec.cutoffs[0])
}

func TestRunWrapsFailure(t *testing.T) {
	boom := errors.New("bucket gone")
	a := NewArchiver(&recordingArchive{err: boom}, time.Hour, quietLogger())
	_, err := a.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunLoopKeepsGoingAfterFailure(t *testing.T) {
	rec := &recordingArchive{err: errors.New("transient")}
	a := NewArchiver(rec, time.Hour, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunLoop(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return rec.runs() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunCronRejectsBadExpression(t *testing.T) {
	a := NewArchiver(&recordingArchive{}, time.Hour, quietLogger())
	err := a.RunCron(context.Background(), "every day")
	assert.ErrorContains(t, err, "5 fields")
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2024, 5, 10, 12, 30, 15, 0, time.UTC)

	next, err := nextCronTime("0 3 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 11, 3, 0, 0, 0, time.UTC), next)

	next, err = nextCronTime("45 12 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 10, 12, 45, 0, 0, time.UTC), next)

	next, err = nextCronTime("0 0 1 6 *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), next)

	_, err = nextCronTime("0 0 31 2 *", after)
	assert.Error(t, err)
}
