package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"docqa/internal/domain"
)

// Runner executes one ingestion run.
type Runner interface {
	Run(ctx context.Context, doc domain.Document, collection string) (Result, error)
}

// Job is one queued ingestion. Cleanup, if set, runs after the job finishes
// whatever its outcome.
type Job struct {
	Document   domain.Document
	Collection string
	Cleanup    func()
}

// WorkerOptions sizes a Worker. Zero values take defaults.
type WorkerOptions struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// Worker runs ingestion jobs in the background on a fixed pool of goroutines.
type Worker struct {
	runner  Runner
	jobs    chan Job
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewWorker starts the worker pool.
func NewWorker(runner Runner, opts WorkerOptions, logger *slog.Logger) *Worker {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		runner:  runner,
		jobs:    make(chan Job, opts.QueueSize),
		timeout: opts.JobTimeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		w.wg.Add(1)
		go w.loop()
	}
	return w
}

// Submit enqueues a job without blocking.
func (w *Worker) Submit(job Job) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWorkerClosed
	}
	select {
	case w.jobs <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. If ctx
// ends first, running jobs are cancelled and ctx's error is returned.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for job := range w.jobs {
		w.process(job)
	}
}

func (w *Worker) process(job Job) {
	log := w.logger.With("collection", job.Collection, "file", job.Document.Filename)
	defer func() {
		if r := recover(); r != nil {
			log.Error("ingestion job panicked", "panic", r)
		}
		if job.Cleanup != nil {
			job.Cleanup()
		}
	}()

	ctx := w.ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	log.Info("ingestion job started")
	if _, err := w.runner.Run(ctx, job.Document, job.Collection); err != nil {
		log.Warn("ingestion job failed", "error", err)
	}
}
