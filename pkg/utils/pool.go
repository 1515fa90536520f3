package utils

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// PanicError carries a recovered worker panic as an error so one bad
// item cannot take down a whole batch.
type PanicError struct {
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Worker processes a single item.
type Worker[T, R any] func(ctx context.Context, item T) (R, error)

// WorkerPool fans a slice of items out to a bounded set of goroutines
// and collects results positionally.
type WorkerPool[T, R any] struct {
	workers int
	fn      Worker[T, R]
}

// NewWorkerPool sizes a pool. workers <= 0 falls back to GOMAXPROCS.
func NewWorkerPool[T, R any](workers int, fn Worker[T, R]) *WorkerPool[T, R] {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &WorkerPool[T, R]{workers: workers, fn: fn}
}

// ProcessItems runs every item through the pool. Results and errors are
// indexed like items. When ctx is cancelled mid-run, items never handed
// to a worker report ctx.Err(); items already in flight finish with
// whatever their worker returns.
func (p *WorkerPool[T, R]) ProcessItems(ctx context.Context, items []T) ([]R, []error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))

	workers := p.workers
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], errs[i] = p.invoke(ctx, items[i])
			}
		}()
	}

	next := 0
feed:
	for ; next < len(items); next++ {
		select {
		case jobs <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(items); i++ {
		errs[i] = ctx.Err()
	}
	return results, errs
}

func (p *WorkerPool[T, R]) invoke(ctx context.Context, item T) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return p.fn(ctx, item)
}
