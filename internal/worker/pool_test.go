package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/require"
)

// TestPool_RunsTasks verifies submitted tasks run and Wait blocks until they finish.
func TestPool_RunsTasks(t *testing.T) {
	t.Parallel()

	var (
		p   = New(2)
		ran atomic.Int32
	)

	for range 2 {
		require.True(t, p.Submit(context.Background(), "count", func(context.Context) {
			ran.Add(1)
		}))

		// Let the slot free up before the next submit.
		p.Wait()
	}

	require.Equal(t, int32(2), ran.Load())
}

// TestPool_DropsWhenFull ensures Submit never blocks and reports a full pool.
func TestPool_DropsWhenFull(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var (
			p       = New(1)
			release = make(chan struct{})
		)

		require.True(t, p.Submit(context.Background(), "blocker", func(context.Context) {
			<-release
		}))

		require.False(t, p.Submit(context.Background(), "dropped", func(context.Context) {}))

		close(release)
		p.Wait()

		require.True(t, p.Submit(context.Background(), "after", func(context.Context) {}))
		p.Wait()
	})
}

// TestPool_TaskContextOutlivesCaller checks that canceling the caller does not cancel the task.
func TestPool_TaskContextOutlivesCaller(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var taskErr error

	p := New(1)
	require.True(t, p.Submit(ctx, "detached", func(taskCtx context.Context) {
		taskErr = taskCtx.Err()
	}))
	p.Wait()

	require.NoError(t, taskErr)
}

// TestPool_RecoversPanics ensures a panicking task does not crash the process.
func TestPool_RecoversPanics(t *testing.T) {
	t.Parallel()

	p := New(0)
	require.True(t, p.Submit(context.Background(), "panics", func(context.Context) {
		panic("boom")
	}))
	require.NotPanics(t, p.Wait)
}
