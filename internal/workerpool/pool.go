// Package workerpool schedules background tasks onto a bounded set of slots
// without ever blocking the caller.
package workerpool

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs submitted tasks with at most size of them active at once.
type Pool struct {
	sem  *semaphore.Weighted
	size int
	wg   sync.WaitGroup
}

// New creates a pool. size <= 0 uses GOMAXPROCS.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// Go schedules fn and returns immediately. fn runs once a slot is free; if ctx
// is cancelled before that, fn never runs.
func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	}()
}

// Wait blocks until every scheduled task has returned or been skipped.
func (p *Pool) Wait() {
	p.wg.Wait()
}
