package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/koios/skylight-calendar/pkg/models"
	"go.uber.org/zap"
)

// Target is a calendar that can re-fetch its active event
type Target interface {
	UniqueID() string
	Refresh(ctx context.Context) (models.ActiveEventNotice, bool, error)
}

// Job represents a refresh request to be processed by a worker
type Job struct {
	Target Target
	Result chan *Result
}

// Result contains the result of a refresh job
type Result struct {
	Changed bool
	Notice  models.ActiveEventNotice
	Error   error
}

// WorkerPool bounds the number of concurrent calendar fetches
type WorkerPool struct {
	workers  int
	jobQueue chan *Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
	timeout  time.Duration
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int, timeout time.Duration, logger *zap.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan *Job, workers*2),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		timeout:  timeout,
	}
}

// Start launches all worker goroutines
func (wp *WorkerPool) Start() {
	wp.logger.Info("Starting refresh worker pool",
		zap.Int("workers", wp.workers),
		zap.Int("queue_size", cap(wp.jobQueue)))

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop cancels in-flight fetches and waits for the workers to exit
func (wp *WorkerPool) Stop() {
	wp.logger.Info("Stopping refresh worker pool")
	wp.cancel()
	wp.wg.Wait()
	wp.logger.Info("Refresh worker pool stopped")
}

// Submit queues a refresh and waits for its result
func (wp *WorkerPool) Submit(ctx context.Context, target Target) (*Result, error) {
	job := &Job{Target: target, Result: make(chan *Result, 1)}

	select {
	case wp.jobQueue <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wp.ctx.Done():
		return nil, fmt.Errorf("worker pool is shutting down")
	}

	select {
	case result := <-job.Result:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wp.ctx.Done():
		return nil, fmt.Errorf("worker pool is shutting down")
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.Debug("Refresh worker started", zap.Int("worker_id", id))

	for {
		select {
		case job := <-wp.jobQueue:
			wp.processJob(id, job)
		case <-wp.ctx.Done():
			wp.logger.Debug("Refresh worker stopping", zap.Int("worker_id", id))
			return
		}
	}
}

func (wp *WorkerPool) processJob(workerID int, job *Job) {
	ctx := wp.ctx
	if wp.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(wp.ctx, wp.timeout)
		defer cancel()
	}

	notice, changed, err := job.Target.Refresh(ctx)
	job.Result <- &Result{Changed: changed, Notice: notice, Error: err}
	close(job.Result)

	if err != nil {
		wp.logger.Debug("Worker completed refresh with error",
			zap.Int("worker_id", workerID),
			zap.String("unique_id", job.Target.UniqueID()),
			zap.Error(err))
		return
	}
	wp.logger.Debug("Worker completed refresh",
		zap.Int("worker_id", workerID),
		zap.String("unique_id", job.Target.UniqueID()),
		zap.Bool("changed", changed))
}
