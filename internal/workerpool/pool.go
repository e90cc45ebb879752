// Package workerpool implements the process-wide shared worker pool
// (spec §4.6): a fixed-capacity pool of execution slots, sized by a
// pipeline's `execution.max_threads`, through which module hosts
// offload CPU/IO-blocking work via RunBlocking and await its
// completion cooperatively.
package workerpool

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxThreads is used when a pipeline document omits
// execution.max_threads.
const DefaultMaxThreads = 4

// Pool bounds the number of blocking functions that may run
// concurrently across every module host sharing it.
type Pool struct {
	sem *semaphore.Weighted
	cap int64
}

// New creates a Pool with the given capacity. A non-positive maxThreads
// falls back to DefaultMaxThreads.
func New(maxThreads int) *Pool {
	if maxThreads <= 0 {
		maxThreads = DefaultMaxThreads
	}
	n := int64(maxThreads)
	return &Pool{sem: semaphore.NewWeighted(n), cap: n}
}

// Capacity returns the pool's configured concurrency limit.
func (p *Pool) Capacity() int64 {
	if p == nil {
		return 0
	}
	return p.cap
}

// RunBlocking acquires a pool slot, runs fn, and releases the slot
// before returning. It blocks until a slot is available or ctx is
// cancelled, in which case ctx.Err() is returned and fn never runs.
func RunBlocking[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p == nil {
		return zero, fmt.Errorf("workerpool: nil pool")
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// TryRunBlocking acquires a slot without blocking, returning ok=false
// immediately if the pool is saturated, for a caller that must never
// stall waiting on worker-pool capacity.
func TryRunBlocking[T any](p *Pool, fn func() (T, error)) (result T, err error, ok bool) {
	var zero T
	if p == nil {
		return zero, fmt.Errorf("workerpool: nil pool"), false
	}
	if !p.sem.TryAcquire(1) {
		return zero, nil, false
	}
	defer p.sem.Release(1)
	r, e := fn()
	return r, e, true
}
