package hyperfetch

import (
	"context"
	"sync"
	"testing"
	"time"
)

// waitCond polls until cond holds or the deadline passes.
func waitCond(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(time.Millisecond)
	}

	t.Fatal(msg)
}

func TestNewSemaphore_RejectsNonPositiveCapacity(t *testing.T) {
	_, err := NewSemaphore(0)
	if err == nil {
		t.Errorf("expected error for zero capacity")
	}

	_, err = NewSemaphore(-3)
	if err == nil {
		t.Errorf("expected error for negative capacity")
	}
}

func TestSemaphore_AcquireRelease(t *testing.T) {
	sem, err := NewSemaphore(2)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	if err := sem.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	if err := sem.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	if sem.InUse() != 2 {
		t.Errorf("expected 2 permits in use, got %d", sem.InUse())
	}

	acquired := make(chan struct{})

	go func() {
		if err := sem.Acquire(ctx); err == nil {
			close(acquired)
		}
	}()

	waitCond(t, func() bool { return sem.Waiting() == 1 }, "third acquire never queued")

	select {
	case <-acquired:
		t.Fatal("third acquire should block at capacity")
	default:
	}

	sem.Release()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("release did not wake the waiter")
	}
}

func TestSemaphore_FIFOFairness(t *testing.T) {
	sem, err := NewSemaphore(1)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	if err := sem.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex

	order := []int{}

	var wg sync.WaitGroup

	// Queue three waiters one at a time so arrival order is fixed.
	for i := 1; i <= 3; i++ {
		wg.Add(1)

		id := i

		go func() {
			defer wg.Done()

			if err := sem.Acquire(ctx); err != nil {
				t.Error(err)

				return
			}

			mu.Lock()
			order = append(order, id)
			mu.Unlock()

			sem.Release()
		}()

		waitCond(t, func() bool { return sem.Waiting() == id }, "waiter never queued")
	}

	sem.Release()
	wg.Wait()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("expected waiters to complete in arrival order, got %v", order)
	}
}

func TestSemaphore_ResizeGrowWakesWaiters(t *testing.T) {
	sem, err := NewSemaphore(4)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	for range 4 {
		if err := sem.Acquire(ctx); err != nil {
			t.Fatal(err)
		}
	}

	for range 8 {
		go func() {
			_ = sem.Acquire(ctx)
		}()
	}

	waitCond(t, func() bool { return sem.Waiting() == 8 }, "waiters never queued")

	sem.Resize(8)

	waitCond(t, func() bool { return sem.InUse() == 8 }, "resize did not grant new permits")

	if sem.Waiting() != 4 {
		t.Errorf("expected 4 waiters left, got %d", sem.Waiting())
	}

	if sem.Capacity() != 8 {
		t.Errorf("expected capacity 8, got %d", sem.Capacity())
	}
}

func TestSemaphore_ResizeShrinkDoesNotPreempt(t *testing.T) {
	sem, err := NewSemaphore(4)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	for range 4 {
		if err := sem.Acquire(ctx); err != nil {
			t.Fatal(err)
		}
	}

	sem.Resize(2)

	if sem.InUse() != 4 {
		t.Errorf("shrink must not preempt holders, got in-use %d", sem.InUse())
	}

	granted := make(chan struct{})

	go func() {
		if err := sem.Acquire(ctx); err == nil {
			close(granted)
		}
	}()

	waitCond(t, func() bool { return sem.Waiting() == 1 }, "waiter never queued")

	// Two releases only bring in-use down to the new capacity.
	sem.Release()
	sem.Release()

	select {
	case <-granted:
		t.Fatal("waiter granted above shrunken capacity")
	case <-time.After(50 * time.Millisecond):
	}

	sem.Release()

	select {
	case <-granted:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not granted once capacity freed")
	}
}

func TestSemaphore_AcquireCanceledLeavesNoPermit(t *testing.T) {
	sem, err := NewSemaphore(1)
	if err != nil {
		t.Fatal(err)
	}

	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() {
		errCh <- sem.Acquire(ctx)
	}()

	waitCond(t, func() bool { return sem.Waiting() == 1 }, "waiter never queued")

	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected canceled acquire to fail")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("canceled acquire never returned")
	}

	if sem.Waiting() != 0 {
		t.Errorf("canceled waiter still queued")
	}

	sem.Release()

	if err := sem.Acquire(context.Background()); err != nil {
		t.Errorf("permit lost after canceled acquire: %v", err)
	}
}
