// Package concurrency provides a bounded-concurrency primitive. The
// provider uses it to throttle event-subscriber dispatch and event
// replay; embedding calls do not go through it.
package concurrency

import (
	"context"
	"sync/atomic"
)

// Limiter is a counting semaphore with a FIFO wait queue. Capacity is
// fixed at construction; there is no preemption or priority.
type Limiter struct {
	tokens  chan struct{}
	active  atomic.Int64
	pending atomic.Int64
}

// NewLimiter creates a Limiter with the given capacity. A capacity <= 0
// defaults to 10, matching the provider's default.
func NewLimiter(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = 10
	}
	l := &Limiter{tokens: make(chan struct{}, capacity)}
	for i := 0; i < capacity; i++ {
		l.tokens <- struct{}{}
	}
	return l
}

// Handle is returned by Acquire and must be released exactly once.
type Handle struct {
	l *Limiter
}

// Acquire blocks until a permit is available or ctx is done. Waiters
// queue in arrival order because Go channels hand buffered tokens out
// FIFO to receivers blocked on an empty channel.
func (l *Limiter) Acquire(ctx context.Context) (*Handle, error) {
	l.pending.Add(1)
	defer l.pending.Add(-1)

	select {
	case <-l.tokens:
		l.active.Add(1)
		return &Handle{l: l}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns the permit to the pool. Safe to call once; calling it
// twice on the same handle will over-release and is a programmer error.
func (h *Handle) Release() {
	h.l.active.Add(-1)
	h.l.tokens <- struct{}{}
}

// Run acquires a permit, runs fn, and releases the permit regardless of
// outcome. If ctx is cancelled before a permit is available, fn never
// runs and the context error is returned.
func (l *Limiter) Run(ctx context.Context, fn func(context.Context) error) error {
	h, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(ctx)
}

// Map runs fn once per item, bounded by the limiter's capacity. It
// returns the first error encountered (if any) but lets all in-flight
// invocations finish before returning, since already-appended side
// effects (events already emitted) are never rolled back.
func (l *Limiter) Map(ctx context.Context, items int, fn func(ctx context.Context, i int) error) error {
	if items == 0 {
		return nil
	}
	errCh := make(chan error, items)
	for i := 0; i < items; i++ {
		i := i
		go func() {
			errCh <- l.Run(ctx, func(ctx context.Context) error {
				return fn(ctx, i)
			})
		}()
	}
	var first error
	for i := 0; i < items; i++ {
		if err := <-errCh; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stats reports current usage for introspection endpoints.
type Stats struct {
	Active   int64
	Pending  int64
	Capacity int
}

// Stats returns a snapshot of the limiter's current load.
func (l *Limiter) Stats() Stats {
	return Stats{
		Active:   l.active.Load(),
		Pending:  l.pending.Load(),
		Capacity: cap(l.tokens),
	}
}
