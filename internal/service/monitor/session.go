package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/drowsiness-alarm/internal/logger"
	"github.com/oshokin/drowsiness-alarm/internal/vision"
)

// session is one start-to-stop run of the frame loop.
type session struct {
	// id identifies the session in logs and events.
	id string
	// source delivers the frames.
	source vision.Source
	// readCtx is passed to source reads and canceled by requestStop.
	readCtx context.Context
	// cancelRead cancels readCtx.
	cancelRead context.CancelFunc
	// stop is the cooperative stop flag polled once per frame.
	stop atomic.Bool
	// done is closed when the frame loop exits.
	done chan struct{}
	// releaseOnce closes the source exactly once.
	releaseOnce sync.Once
}

func newSession(ctx context.Context, id string, source vision.Source) *session {
	readCtx, cancel := context.WithCancel(ctx)

	return &session{
		id:         id,
		source:     source,
		readCtx:    readCtx,
		cancelRead: cancel,
		done:       make(chan struct{}),
	}
}

// requestStop sets the stop flag, interrupts a pending read and reports whether this call set it.
func (s *session) requestStop() bool {
	if !s.stop.CompareAndSwap(false, true) {
		return false
	}

	s.cancelRead()

	return true
}

// stopping reports whether a stop was requested.
func (s *session) stopping() bool {
	return s.stop.Load()
}

// finished reports whether the frame loop has exited.
func (s *session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// running reports whether the loop is active and no stop was requested.
func (s *session) running() bool {
	return !s.stopping() && !s.finished()
}

// wait blocks until the loop exits, the timeout passes or ctx is canceled.
// It reports whether the loop exited.
func (s *session) wait(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return s.finished()
	}
}

// release closes the source once. Only the frame loop calls it, after its last read.
func (s *session) release(ctx context.Context) {
	s.releaseOnce.Do(func() {
		s.cancelRead()

		if err := s.source.Close(); err != nil {
			logger.WarnKV(ctx, "Release capture failed", "error", err)
		}
	})
}
