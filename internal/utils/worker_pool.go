package utils

import (
	"context"
	"errors"
	"sync"
)

// WorkerPool manages a pool of workers to execute tasks.
type WorkerPool struct {
	workers   int
	taskQueue chan func()
	waitGroup sync.WaitGroup
}

// NewWorkerPool creates a new WorkerPool with the specified number of workers.
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	pool := &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

// worker processes tasks from the taskQueue.
func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for task := range wp.taskQueue {
		task()
	}
}

// Submit queues task, giving up when ctx is done first.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case wp.taskQueue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown waits for all workers to finish and then closes the worker pool.
func (wp *WorkerPool) Shutdown() {
	close(wp.taskQueue)
	wp.waitGroup.Wait()
}

// Map applies fn to every item on a pool of workers. Results keep the order
// of items; a failed item leaves its zero value and its error is joined into
// the returned one.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	pool := NewWorkerPool(min(workers, max(len(items), 1)))
	for i, item := range items {
		if err := pool.Submit(ctx, func() {
			results[i], errs[i] = fn(ctx, item)
		}); err != nil {
			errs[i] = err
			break
		}
	}
	pool.Shutdown()

	return results, errors.Join(errs...)
}
