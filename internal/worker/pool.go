// Package worker runs fire-and-forget background tasks on a bounded pool.
//
// Tasks never block the caller: when every slot is busy the task is dropped
// and Submit reports false, so the frame loop keeps its cadence. Tasks cannot
// be cancelled once started; their duration is bounded by the timeouts they
// apply themselves.
package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/drowsiness-alarm/internal/logger"
	"github.com/oshokin/drowsiness-alarm/internal/metrics"
)

// DefaultSize is the pool size used when a non-positive size is requested.
const DefaultSize = 4

// Task is a unit of background work.
type Task func(ctx context.Context)

// Pool limits the number of concurrently running background tasks.
type Pool struct {
	// group tracks running tasks and enforces the limit.
	group *errgroup.Group
}

// New creates a pool that runs at most size tasks at once.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}

	group := new(errgroup.Group)
	group.SetLimit(size)

	return &Pool{
		group: group,
	}
}

// Submit starts the task in the background if a slot is free.
// The task receives a context that keeps ctx values but is never canceled.
func (p *Pool) Submit(ctx context.Context, name string, task Task) bool {
	taskCtx := logger.WithKV(context.WithoutCancel(ctx), "task", name)

	accepted := p.group.TryGo(func() error {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorKV(taskCtx, "Background task panicked", "panic", fmt.Sprint(r))
			}
		}()

		task(taskCtx)

		return nil
	})

	if !accepted {
		metrics.RecordTaskDropped(name)
		logger.WarnKV(taskCtx, "Worker pool is full, task dropped")
	}

	return accepted
}

// Wait blocks until every running task has finished.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}
