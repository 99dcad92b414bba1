package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type runnerFunc func(ctx context.Context, doc domain.Document, collection string) (Result, error)

func (f runnerFunc) Run(ctx context.Context, doc domain.Document, collection string) (Result, error) {
	return f(ctx, doc, collection)
}

func TestWorker_RunsJobsAndCleansUp(t *testing.T) {
	var ran sync.Map
	var cleaned atomic.Int32
	w := NewWorker(runnerFunc(func(_ context.Context, _ domain.Document, c string) (Result, error) {
		ran.Store(c, true)
		if c == "bad" {
			return Result{}, errors.New("fail")
		}
		return Result{}, nil
	}), WorkerOptions{Workers: 2, QueueSize: 4}, quietLogger())

	for _, c := range []string{"a", "bad", "c"} {
		require.NoError(t, w.Submit(Job{Collection: c, Cleanup: func() { cleaned.Add(1) }}))
	}
	require.NoError(t, w.Shutdown(context.Background()))

	for _, c := range []string{"a", "bad", "c"} {
		_, ok := ran.Load(c)
		assert.True(t, ok, c)
	}
	assert.Equal(t, int32(3), cleaned.Load())
	assert.ErrorIs(t, w.Submit(Job{Collection: "late"}), ErrWorkerClosed)
}

func TestWorker_QueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	w := NewWorker(runnerFunc(func(ctx context.Context, _ domain.Document, _ string) (Result, error) {
		started <- struct{}{}
		<-release
		return Result{}, nil
	}), WorkerOptions{Workers: 1, QueueSize: 1}, quietLogger())

	require.NoError(t, w.Submit(Job{Collection: "running"}))
	<-started
	require.NoError(t, w.Submit(Job{Collection: "queued"}))
	assert.ErrorIs(t, w.Submit(Job{Collection: "overflow"}), domain.ErrQueueFull)

	close(release)
	require.NoError(t, w.Shutdown(context.Background()))
}

func TestWorker_JobTimeout(t *testing.T) {
	errs := make(chan error, 1)
	w := NewWorker(runnerFunc(func(ctx context.Context, _ domain.Document, _ string) (Result, error) {
		<-ctx.Done()
		errs <- ctx.Err()
		return Result{}, ctx.Err()
	}), WorkerOptions{Workers: 1, JobTimeout: 20 * time.Millisecond}, quietLogger())

	require.NoError(t, w.Submit(Job{Collection: "slow"}))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not cancelled by its timeout")
	}
	require.NoError(t, w.Shutdown(context.Background()))
}

func TestWorker_PanicStillCleansUp(t *testing.T) {
	cleaned := make(chan struct{})
	w := NewWorker(runnerFunc(func(context.Context, domain.Document, string) (Result, error) {
		panic("unexpected")
	}), WorkerOptions{Workers: 1}, quietLogger())
	require.NoError(t, w.Submit(Job{Collection: "p", Cleanup: func() { close(cleaned) }}))
	select {
	case <-cleaned:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not run")
	}
	require.NoError(t, w.Shutdown(context.Background()))
}

func TestWorker_ShutdownDeadlineCancelsJobs(t *testing.T) {
	started := make(chan struct{})
	w := NewWorker(runnerFunc(func(ctx context.Context, _ domain.Document, _ string) (Result, error) {
		close(started)
		<-ctx.Done()
		return Result{}, ctx.Err()
	}), WorkerOptions{Workers: 1}, quietLogger())
	require.NoError(t, w.Submit(Job{Collection: "stuck"}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Shutdown(ctx), context.DeadlineExceeded)
}
