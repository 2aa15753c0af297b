// Package correlation matches asynchronous replies to the requests that
// caused them. A Table holds at most one pending wait per correlation id;
// the subscription loop resolves a wait by id and anything without a matching
// wait is dropped by the caller.
package correlation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by Await when no reply arrives within the deadline.
var ErrTimeout = errors.New("correlation: wait timed out")

// Table is a concurrency-safe registry of pending waits keyed by
// correlation id. Each wait is resolved at most once.
type Table[T any] struct {
	mu      sync.Mutex
	waiters map[string]chan T
}

func NewTable[T any]() *Table[T] {
	return &Table[T]{waiters: make(map[string]chan T)}
}

// Register creates a pending wait for id. It must be called before the
// request is published so a fast responder cannot reply into the void.
// The returned cancel func deregisters the wait; it is safe to call after
// the wait resolved.
func (t *Table[T]) Register(id string) (<-chan T, func()) {
	ch := make(chan T, 1)
	t.mu.Lock()
	t.waiters[id] = ch
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		delete(t.waiters, id)
		t.mu.Unlock()
	}
	return ch, cancel
}

// Resolve delivers v to the wait registered under id and removes it.
// It reports whether a wait was found; a false return means the reply was
// late or unsolicited and the caller should drop it.
func (t *Table[T]) Resolve(id string, v T) bool {
	t.mu.Lock()
	ch, ok := t.waiters[id]
	if ok {
		delete(t.waiters, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- v // buffered, never blocks
	return true
}

// Await blocks until the wait registered under id resolves, the timeout
// elapses, or ctx is canceled. The wait is always deregistered on return,
// so a stale reply can never reach a later wait.
func (t *Table[T]) Await(ctx context.Context, id string, ch <-chan T, timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-timer.C:
		t.remove(id)
		return zero, ErrTimeout
	case <-ctx.Done():
		t.remove(id)
		return zero, ctx.Err()
	}
}

// Pending returns the number of in-flight waits.
func (t *Table[T]) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}

func (t *Table[T]) remove(id string) {
	t.mu.Lock()
	delete(t.waiters, id)
	t.mu.Unlock()
}
