// Package supervisor bounds how many folder subtrees are processed
// concurrently, replacing the original tool's fork()-per-subtree plus a
// POSIX semaphore with a goroutine pool. Grounded on readpst.c's try_fork
// (L197-236) and grim_reaper (L154-196) for the semantics being
// reimplemented — acquire a slot, run the subtree, release the slot,
// propagate the first failure — per spec.md §9's explicit instruction to
// modernize the fork/semaphore pair into "a thread pool... the semantic
// requirement is bounded concurrency, archive-reader-safe-per-worker".
package supervisor

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Outcome replaces try_fork's ambiguous int return (0 meant both "this is
// the child" and "ran inline, no fork happened") with an explicit tag, per
// spec.md §9's Open Question.
type Outcome int

const (
	// Inline means the task ran synchronously on the caller's goroutine,
	// either because the pool had no free slot or the caller chose not to
	// dispatch (e.g. the root call, which readpst.c never forks either).
	Inline Outcome = iota
	// Dispatched means the task was handed to a pooled goroutine.
	Dispatched
)

// Pool runs at most n tasks at once on pooled goroutines; a task dispatched
// while all n are busy runs on the caller's goroutine instead. It collects
// the errors the tasks return.
type Pool struct {
	sem *semaphore.Weighted
	grp *errgroup.Group
	ctx context.Context

	mu       sync.Mutex
	firstErr error
}

// New creates a Pool with maxConcurrent pooled goroutines; tasks run inline
// on a caller's goroutine are not counted against that limit.
func New(ctx context.Context, maxConcurrent int64) *Pool {
	grp, grpCtx := errgroup.WithContext(ctx)
	return &Pool{
		sem: semaphore.NewWeighted(maxConcurrent),
		grp: grp,
		ctx: grpCtx,
	}
}

// Dispatch runs task, either inline (when a slot cannot be acquired without
// blocking) or on a pooled goroutine (when one is free), and reports which.
// An error from a dispatched task cancels the context passed to every task
// and is surfaced from Wait. An error from an inline task is recorded for
// Wait but does not cancel that context.
func (p *Pool) Dispatch(task func(ctx context.Context) error) Outcome {
	if !p.sem.TryAcquire(1) {
		if err := task(p.ctx); err != nil {
			p.mu.Lock()
			if p.firstErr == nil {
				p.firstErr = err
			}
			p.mu.Unlock()
		}
		return Inline
	}
	p.grp.Go(func() error {
		defer p.sem.Release(1)
		return task(p.ctx)
	})
	return Dispatched
}

// Wait blocks until every dispatched task has completed. It returns the
// first error from a dispatched task if there was one, otherwise the first
// error from an inline task (nil if all succeeded).
func (p *Pool) Wait() error {
	err := p.grp.Wait()
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}
