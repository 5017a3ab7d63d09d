package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrPoolStopped is returned for jobs submitted after Stop.
var ErrPoolStopped = errors.New("worker pool stopped")

type jobResult struct {
	value interface{}
	err   error
}

type poolJob struct {
	ctx    context.Context
	name   string
	run    func(ctx context.Context) (interface{}, error)
	result chan jobResult
}

// WorkerPool executes CPU-bound pipeline jobs on a fixed set of goroutines so
// a slow clustering run for one ticker cannot monopolize the process. Each
// job carries its request context; cancelled callers stop waiting and queued
// jobs for them are skipped.
type WorkerPool struct {
	workers int
	jobs    chan *poolJob
	logger  *logrus.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewWorkerPool creates a pool with the given worker count. The queue holds
// twice the worker count before Submit blocks.
func NewWorkerPool(workers int, logger *logrus.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers: workers,
		jobs:    make(chan *poolJob, workers*2),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines. Calling Start twice is a no-op.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.WithField("workers", p.workers).Info("Pipeline worker pool started")
}

// Stop cancels all workers and waits for in-flight jobs to finish.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Pipeline worker pool stopped")
}

// Workers returns the configured worker count.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Submit runs fn on a pool worker and blocks until it finishes or ctx is
// cancelled. fn receives the caller's context so cancellation propagates into
// the pipeline stages.
func (p *WorkerPool) Submit(ctx context.Context, name string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	job := &poolJob{
		ctx:  ctx,
		name: name,
		run:  fn,
		// Buffered so a worker never blocks on a caller that gave up.
		result: make(chan jobResult, 1),
	}

	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, ErrPoolStopped
	}

	select {
	case res := <-job.result:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, ErrPoolStopped
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			p.execute(id, job)
		}
	}
}

func (p *WorkerPool) execute(id int, job *poolJob) {
	if err := job.ctx.Err(); err != nil {
		job.result <- jobResult{err: err}
		return
	}

	start := time.Now()
	value, err := job.run(job.ctx)
	fields := logrus.Fields{
		"worker":      id,
		"job":         job.name,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		p.logger.WithFields(fields).WithError(err).Warn("Pipeline job failed")
	} else {
		p.logger.WithFields(fields).Debug("Pipeline job finished")
	}
	job.result <- jobResult{value: value, err: err}
}
