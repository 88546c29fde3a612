// Package bridge runs blocking store operations on a bounded worker pool.
//
// The content-store driver only exposes blocking calls; routing them through a
// fixed pool keeps the number of concurrent driver calls bounded and gives
// callers an awaitable handle on the result. Submitted work always runs to
// completion: a caller that abandons its wait does not cancel the task.
package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/mcuredefined/backend/pkg/metrics"
)

// DefaultWorkers matches the deployment's fixed pool size.
const DefaultWorkers = 8

// ErrShutdown is returned when work is submitted after Shutdown began.
var ErrShutdown = errors.New("bridge: pool is shut down")

// Pool is a fixed-size worker pool for blocking calls.
type Pool struct {
	mu      sync.RWMutex
	tasks   chan func()
	workers sync.WaitGroup
	closed  bool
}

// NewPool starts workers goroutines ready to accept tasks. A non-positive
// count falls back to DefaultWorkers.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	p := &Pool{tasks: make(chan func(), workers)}
	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.workers.Done()
	for task := range p.tasks {
		metrics.BridgeQueueDepth.Dec()
		task()
	}
}

// submit enqueues a task, blocking while all workers are busy and the queue is
// full. The read lock is held across the send so Shutdown cannot close the
// channel underneath a blocked sender.
func (p *Pool) submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrShutdown
	}

	metrics.BridgeQueueDepth.Inc()
	p.tasks <- task
	return nil
}

// Shutdown stops accepting work, then blocks until every queued and in-flight
// task has finished. It is safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
	p.workers.Wait()
}

// Future is an awaitable result of a submitted task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Wait blocks until the task finishes or ctx is cancelled. Cancellation only
// abandons the wait; the task itself still runs to completion.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit schedules fn on the pool and returns an awaitable handle.
func Submit[T any](p *Pool, fn func() (T, error)) (*Future[T], error) {
	f := &Future[T]{done: make(chan struct{})}

	err := p.submit(func() {
		f.value, f.err = fn()
		close(f.done)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Do runs fn on the pool and waits for its result. A nil pool runs fn inline,
// which keeps call sites usable in tests without a pool.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	if p == nil {
		return fn()
	}

	future, err := Submit(p, fn)
	if err != nil {
		var zero T
		return zero, err
	}
	return future.Wait(ctx)
}
