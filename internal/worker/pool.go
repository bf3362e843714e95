package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool executes jobs with bounded parallelism. One pool is shared across
// runs; each aggregation pass submits its fetch jobs as a batch.
type Pool struct {
	workers int
}

// NewPool creates a pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run executes all jobs and returns their results in submission order.
// Jobs observe ctx cancellation through their Execute argument; Run itself
// always waits for in-flight jobs to finish.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	var wg sync.WaitGroup

	// Semaphore bounds concurrent executions
	semaphore := make(chan struct{}, p.workers)

	for i, job := range jobs {
		wg.Add(1)
		go func(idx int, j Job) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = ErrResult{Reason: ctx.Err()}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = j.Execute(ctx)
		}(i, job)
	}

	wg.Wait()
	return results
}

// ErrResult is a Result carrying only an error
type ErrResult struct {
	Reason error
}

// GetError returns the underlying error
func (r ErrResult) GetError() error { return r.Reason }
