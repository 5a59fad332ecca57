package hyperfetch

import (
	"container/list"
	"context"
	"sync"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperfetch/internal/sentinel"
)

// Semaphore bounds concurrent origin requests. Waiters are granted permits in
// FIFO order, and the capacity can be resized while waiters are queued:
// growing wakes as many waiters as the new capacity allows, shrinking lets
// in-flight holders finish and simply delays future grants.
type Semaphore struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	waiters  *list.List // of chan struct{}
}

// NewSemaphore returns a semaphore with the given capacity.
func NewSemaphore(capacity int) (*Semaphore, error) {
	if capacity < 1 {
		return nil, ewrap.Wrap(sentinel.ErrInvalidConcurrency, "new semaphore")
	}

	return &Semaphore{
		capacity: capacity,
		waiters:  list.New(),
	}, nil
}

// Acquire blocks until a permit is available or ctx is done. A nil error means
// the caller holds a permit and must Release it exactly once.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()

	if s.waiters.Len() == 0 && s.inUse < s.capacity {
		s.inUse++
		s.mu.Unlock()

		return nil
	}

	ready := make(chan struct{})
	elem := s.waiters.PushBack(ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		select {
		case <-ready:
			// Granted while cancelling; hand the permit back.
			s.mu.Unlock()
			s.Release()
		default:
			s.waiters.Remove(elem)
			s.mu.Unlock()
		}

		return ewrap.Wrap(ctx.Err(), "semaphore acquire")
	}
}

// Release returns a permit and wakes the next waiter if capacity allows.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inUse > 0 {
		s.inUse--
	}

	s.grant()
}

// Resize changes the capacity in place. Values below one are ignored so a
// malformed config refresh cannot wedge the fetch path.
func (s *Semaphore) Resize(capacity int) {
	if capacity < 1 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.capacity = capacity
	s.grant()
}

// grant hands permits to queued waiters while capacity remains. Callers must
// hold s.mu.
func (s *Semaphore) grant() {
	for s.inUse < s.capacity && s.waiters.Len() > 0 {
		front := s.waiters.Front()
		s.waiters.Remove(front)
		s.inUse++

		ready, ok := front.Value.(chan struct{})
		if ok {
			close(ready)
		}
	}
}

// Capacity reports the current permit limit.
func (s *Semaphore) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.capacity
}

// InUse reports how many permits are currently held.
func (s *Semaphore) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inUse
}

// Waiting reports how many callers are queued for a permit.
func (s *Semaphore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.waiters.Len()
}
