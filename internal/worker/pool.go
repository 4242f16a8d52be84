// Package worker runs size-fit sessions on a bounded pool of goroutines so a
// burst of uploads cannot spawn an unbounded number of concurrent searches.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/iRajatDas/tinypicresizer/pkg/metrics"
	"github.com/iRajatDas/tinypicresizer/pkg/sizefit"
)

// ErrPoolBusy is returned when the worker pool is at capacity
var ErrPoolBusy = errors.New("worker pool is busy, please retry later")

// Surface is a session-scoped encoder whose resources must be released
// exactly once. The pool owns that release for every job it runs, so a
// caller abandoning a cancelled Submit cannot close a surface a worker is
// still encoding on.
type Surface interface {
	sizefit.Encoder
	Close()
}

// Job represents one size-fit session request
type Job struct {
	Ctx     context.Context
	Surface Surface
	Request sizefit.Request
	Result  chan<- Result
}

// Result represents the outcome of a size-fit job
type Result struct {
	Fit *sizefit.Result
	Err error
}

// Pool manages a pool of worker goroutines for size-fit sessions
type Pool struct {
	jobs    chan Job
	workers int
	wg      sync.WaitGroup
	once    sync.Once
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	return &Pool{
		jobs:    make(chan Job, workers*2), // Buffered channel
		workers: workers,
	}
}

// Start starts the worker pool goroutines
func (p *Pool) Start() {
	p.once.Do(func() {
		log.Printf("Starting worker pool with %d workers", p.workers)
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// worker processes jobs from the job channel
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		metrics.UpdateWorkerPoolMetrics(len(p.jobs), 1)

		var result Result
		result.Fit, result.Err = sizefit.Fit(job.Ctx, job.Surface, job.Request)
		job.Surface.Close()

		metrics.UpdateWorkerPoolMetrics(len(p.jobs), 0)

		// Send result (non-blocking in case receiver is gone)
		select {
		case job.Result <- result:
		default:
			log.Printf("Worker %d: result channel full or closed", id)
		}
	}
}

// Submit runs a size-fit session on the pool. Once the job is queued the
// pool owns the surface and a worker releases it after running the session,
// even when Submit has already returned on a cancelled context. The one
// exception is ErrPoolBusy: nothing was queued, the caller keeps the surface
// and may retry with it or release it. Returns ErrPoolBusy when the queue is
// full so callers can shed load instead of blocking.
func (p *Pool) Submit(ctx context.Context, surface Surface, req sizefit.Request) (*sizefit.Result, error) {
	// Start the pool if not already started
	p.Start()

	resultChan := make(chan Result, 1)
	job := Job{
		Ctx:     ctx,
		Surface: surface,
		Request: req,
		Result:  resultChan,
	}

	select {
	case <-ctx.Done():
		// Never queued; release here so callers treat every non-busy
		// return as pool-released.
		surface.Close()
		return nil, ctx.Err()
	case p.jobs <- job:
		// Job submitted, wait for result. On cancellation the worker still
		// runs the job to completion and releases the surface.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result := <-resultChan:
			return result.Fit, result.Err
		}
	default:
		// Queue is full, return busy error
		return nil, ErrPoolBusy
	}
}

// SubmitWithRetry submits a job to the worker pool with retry on busy. When
// every attempt returns ErrPoolBusy the caller still owns the surface.
func (p *Pool) SubmitWithRetry(ctx context.Context, surface Surface, req sizefit.Request, maxRetries int) (*sizefit.Result, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		result, err := p.Submit(ctx, surface, req)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrPoolBusy) {
			return nil, err
		}
		lastErr = err

		// Wait a bit before retry (exponential backoff)
		waitTime := time.Duration(i+1) * 10 * time.Millisecond
		select {
		case <-ctx.Done():
			// Matches Submit: non-busy returns leave the surface released.
			surface.Close()
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}
	return nil, lastErr
}

// Stop gracefully shuts down the worker pool
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	log.Printf("Worker pool stopped")
}

// Stats returns current pool statistics
func (p *Pool) Stats() (queued, capacity int) {
	return len(p.jobs), cap(p.jobs)
}

// Outcome buckets a session result for metrics.
func Outcome(res *sizefit.Result, err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case err != nil:
		return "error"
	case res.BestEffort:
		return "best_effort"
	default:
		return "fit"
	}
}
