package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockResult implements Result
type mockResult struct {
	err error
}

func (r *mockResult) GetError() error {
	return r.err
}

// mockJob implements Job
type mockJob struct {
	duration  time.Duration
	shouldErr bool
	executed  *int32 // atomic counter
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{err: errors.New("job error")}
	}
	return &mockResult{err: nil}
}

func TestNewPool(t *testing.T) {
	p1 := NewPool(5)
	if p1.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p1.workers)
	}

	p2 := NewPool(0)
	if p2.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p2.workers)
	}

	p3 := NewPool(-1)
	if p3.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p3.workers)
	}
}

func TestPool_Run(t *testing.T) {
	pool := NewPool(2)

	var executed int32
	count := 10
	jobs := make([]Job, count)
	for i := 0; i < count; i++ {
		jobs[i] = &mockJob{executed: &executed}
	}

	results := pool.Run(context.Background(), jobs)

	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}
	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, executed)
	}
	for i, res := range results {
		if res == nil {
			t.Fatalf("result %d is nil", i)
		}
		if res.GetError() != nil {
			t.Errorf("result %d: unexpected error: %v", i, res.GetError())
		}
	}
}

func TestPool_Run_PreservesOrder(t *testing.T) {
	pool := NewPool(4)

	jobs := []Job{
		&mockJob{shouldErr: true},
		&mockJob{},
		&mockJob{shouldErr: true},
	}

	results := pool.Run(context.Background(), jobs)

	if results[0].GetError() == nil {
		t.Error("expected error at index 0")
	}
	if results[1].GetError() != nil {
		t.Errorf("unexpected error at index 1: %v", results[1].GetError())
	}
	if results[2].GetError() == nil {
		t.Error("expected error at index 2")
	}
}

func TestPool_Concurrency(t *testing.T) {
	workers := 3
	pool := NewPool(workers)

	var current int32
	var maxConcurrent int32
	var mu sync.Mutex

	totalJobs := 20
	jobs := make([]Job, totalJobs)
	for i := 0; i < totalJobs; i++ {
		jobs[i] = &concurrencyJob{
			start: func() {
				curr := atomic.AddInt32(&current, 1)
				mu.Lock()
				if curr > maxConcurrent {
					maxConcurrent = curr
				}
				mu.Unlock()
			},
			end: func() {
				atomic.AddInt32(&current, -1)
			},
			duration: 10 * time.Millisecond,
		}
	}

	results := pool.Run(context.Background(), jobs)

	if len(results) != totalJobs {
		t.Errorf("expected %d results, got %d", totalJobs, len(results))
	}

	mu.Lock()
	observed := maxConcurrent
	mu.Unlock()
	if observed > int32(workers) {
		t.Errorf("expected at most %d concurrent jobs, observed %d", workers, observed)
	}
}

// concurrencyJob tracks max concurrent executions
type concurrencyJob struct {
	start    func()
	end      func()
	duration time.Duration
}

func (j *concurrencyJob) Execute(ctx context.Context) Result {
	if j.start != nil {
		j.start()
	}
	time.Sleep(j.duration)
	if j.end != nil {
		j.end()
	}
	return &mockResult{}
}

func TestPool_CancelledContext(t *testing.T) {
	pool := NewPool(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed int32
	jobs := []Job{&mockJob{executed: &executed, duration: 50 * time.Millisecond}}

	results := pool.Run(ctx, jobs)

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	// The job either never ran (ErrResult) or observed the cancellation
	if results[0].GetError() == nil {
		t.Error("expected an error from a cancelled run")
	}
}
