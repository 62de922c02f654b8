package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"ShelfLayoutServer/logger"
	"ShelfLayoutServer/monitor"

	"go.uber.org/zap"
)

var (
	ErrPoolStopped = errors.New("worker pool stopped")
	ErrJobPanic    = errors.New("job panicked")
)

type jobPackage struct {
	ctx    context.Context
	fn     func(ctx context.Context) error
	result chan error
}

// Pool runs pipeline jobs on a fixed number of workers. Submissions beyond
// the worker count wait in a bounded queue; once the queue is full Submit
// blocks until space frees up or the caller gives up.
type Pool struct {
	jobQueue chan jobPackage
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	pending  atomic.Int64
	metrics  *monitor.Metrics
}

func NewPool(workerNum, queueSize int, metrics *monitor.Metrics) (*Pool, error) {
	if workerNum < 1 {
		return nil, fmt.Errorf("worker count must be >= 1, got %d", workerNum)
	}
	if queueSize < 0 {
		return nil, fmt.Errorf("queue size must not be negative, got %d", queueSize)
	}
	p := &Pool{
		jobQueue: make(chan jobPackage, queueSize),
		quit:     make(chan struct{}),
		metrics:  metrics,
	}
	p.StartWorker(workerNum)
	return p, nil
}

func (p *Pool) StartWorker(workerNum int) {
	for i := 0; i < workerNum; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
}

func (p *Pool) runWorker(workerID int) {
	defer p.wg.Done()
	logger.Log().Debug("worker created", zap.Int("worker", workerID))
	for {
		select {
		case <-p.quit:
			return
		case job := <-p.jobQueue:
			p.metrics.SetQueueDepth(int(p.pending.Add(-1)))
			job.result <- p.run(workerID, job)
		}
	}
}

func (p *Pool) run(workerID int, job jobPackage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log().Error(fmt.Sprintf("Worker %d panic: %v", workerID, r))
			err = fmt.Errorf("%w: %v", ErrJobPanic, r)
		}
	}()
	// the submitter may have given up while the job was queued
	if err := job.ctx.Err(); err != nil {
		return err
	}
	return job.fn(job.ctx)
}

// Submit queues fn and waits for it to finish. It returns fn's error, the
// context error if ctx ends first, or ErrPoolStopped.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	job := jobPackage{ctx: ctx, fn: fn, result: make(chan error, 1)}

	p.metrics.SetQueueDepth(int(p.pending.Add(1)))
	select {
	case p.jobQueue <- job:
	case <-ctx.Done():
		p.metrics.SetQueueDepth(int(p.pending.Add(-1)))
		return ctx.Err()
	case <-p.quit:
		p.metrics.SetQueueDepth(int(p.pending.Add(-1)))
		return ErrPoolStopped
	}

	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolStopped
	}
}

// Stop ends all workers after their current job. Queued jobs are abandoned.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
