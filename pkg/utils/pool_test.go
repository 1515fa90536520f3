package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolProcessesAll(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(4, func(ctx context.Context, n int) (int, error) {
		return n * n, nil
	})

	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	results, errs := pool.ProcessItems(context.Background(), items)

	if len(results) != len(items) || len(errs) != len(items) {
		t.Fatalf("expected %d results and errors, got %d and %d", len(items), len(results), len(errs))
	}
	for i, n := range items {
		if errs[i] != nil {
			t.Errorf("item %d: unexpected error %v", i, errs[i])
		}
		if results[i] != n*n {
			t.Errorf("item %d: expected %d, got %d", i, n*n, results[i])
		}
	}
}

func TestWorkerPoolErrorsArePositional(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(2, func(ctx context.Context, id string) (string, error) {
		if strings.HasPrefix(id, "bad-") {
			return "", fmt.Errorf("no embedding for %s", id)
		}
		return "vec:" + id, nil
	})

	ids := []string{"aws-rds", "bad-one", "gcp-gcs", "bad-two"}
	results, errs := pool.ProcessItems(context.Background(), ids)

	if errs[0] != nil || errs[2] != nil {
		t.Errorf("expected items 0 and 2 to succeed, got %v and %v", errs[0], errs[2])
	}
	if errs[1] == nil || errs[3] == nil {
		t.Error("expected items 1 and 3 to fail")
	}
	if results[0] != "vec:aws-rds" || results[2] != "vec:gcp-gcs" {
		t.Errorf("results misaligned: %v", results)
	}
}

func TestWorkerPoolRecoversPanic(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(2, func(ctx context.Context, n int) (int, error) {
		if n == 3 {
			panic("bad record")
		}
		return n, nil
	})

	_, errs := pool.ProcessItems(context.Background(), []int{1, 2, 3, 4})

	if errs[0] != nil || errs[1] != nil || errs[3] != nil {
		t.Errorf("expected only item 2 to fail, got %v", errs)
	}

	var panicErr *PanicError
	if !errors.As(errs[2], &panicErr) {
		t.Fatalf("expected PanicError, got %T", errs[2])
	}
	if panicErr.Value != "bad record" {
		t.Errorf("expected panic value %q, got %v", "bad record", panicErr.Value)
	}
	if panicErr.Stack == "" {
		t.Error("expected a captured stack")
	}
	if !strings.Contains(panicErr.Error(), "panic:") {
		t.Errorf("unexpected error text %q", panicErr.Error())
	}
}

func TestWorkerPoolCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started sync.WaitGroup
	started.Add(2)
	gate := make(chan struct{})

	go func() {
		started.Wait()
		cancel()
		// Give the feeder a moment to observe cancellation while both
		// workers are still parked.
		time.Sleep(20 * time.Millisecond)
		close(gate)
	}()

	pool := NewWorkerPool(2, func(ctx context.Context, n int) (int, error) {
		started.Done()
		<-gate
		return n * 2, nil
	})

	results, errs := pool.ProcessItems(ctx, []int{1, 2, 3, 4, 5, 6})

	// The two in-flight items finish, the rest are never handed out.
	if errs[0] != nil || errs[1] != nil {
		t.Errorf("in-flight items should finish: %v %v", errs[0], errs[1])
	}
	if results[0] != 2 || results[1] != 4 {
		t.Errorf("in-flight results wrong: %v", results[:2])
	}
	for i := 2; i < 6; i++ {
		if !errors.Is(errs[i], context.Canceled) {
			t.Errorf("item %d: expected context.Canceled, got %v", i, errs[i])
		}
	}
}

func TestWorkerPoolDefaults(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	pool := NewWorkerPool(0, func(ctx context.Context, n int) (struct{}, error) {
		calls.Add(1)
		return struct{}{}, nil
	})

	_, errs := pool.ProcessItems(context.Background(), []int{1, 2, 3})
	for i, err := range errs {
		if err != nil {
			t.Errorf("item %d: unexpected error %v", i, err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestWorkerPoolEmptyInput(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(4, func(ctx context.Context, n int) (int, error) {
		return n, nil
	})

	results, errs := pool.ProcessItems(context.Background(), nil)
	if results != nil || errs != nil {
		t.Errorf("expected nil results and errors, got %v and %v", results, errs)
	}
}

func TestWorkerPoolMoreWorkersThanItems(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(16, func(ctx context.Context, n int) (int, error) {
		return n + 1, nil
	})

	results, errs := pool.ProcessItems(context.Background(), []int{10})
	if errs[0] != nil {
		t.Fatalf("unexpected error %v", errs[0])
	}
	if results[0] != 11 {
		t.Errorf("expected 11, got %d", results[0])
	}
}
