package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-alarm/internal/events"
	"github.com/oshokin/drowsiness-alarm/internal/logger"
	"github.com/oshokin/drowsiness-alarm/internal/metrics"
	"github.com/oshokin/drowsiness-alarm/internal/repository/stats"
	"github.com/oshokin/drowsiness-alarm/internal/vision"
	"github.com/oshokin/drowsiness-alarm/internal/worker"
)

// DefaultStopGracePeriod is how long Stop waits for the frame loop before releasing the source.
const DefaultStopGracePeriod = time.Second

// eventTaskName labels alarm event publishing in logs and metrics.
const eventTaskName = "alarm_event"

var (
	// ErrSessionActive is returned by Start while a session is running.
	ErrSessionActive = errors.New("detection session is already running")

	// errMissingDependency is returned by New when a required collaborator is nil.
	errMissingDependency = errors.New("missing monitor dependency")
)

// Notifier is the one-time SOS notification gate of a session.
type Notifier interface {
	// Notify is called on every rising edge with the session event count.
	Notify(ctx context.Context, count uint64) bool
	// Reset re-arms the gate for a new session.
	Reset()
}

// FrameSink receives annotated JPEG frames.
type FrameSink interface {
	Publish(frame []byte)
	Reset()
}

// Submitter runs a task in the background without blocking.
type Submitter interface {
	Submit(ctx context.Context, name string, task worker.Task) bool
}

// Options wires the monitor to its collaborators.
type Options struct {
	// Opener opens the capture device for each session.
	Opener vision.Opener
	// Detector finds faces and eyes.
	Detector vision.Detector
	// Classifier labels eye crops.
	Classifier vision.Classifier
	// Renderer draws and encodes frames.
	Renderer vision.Renderer
	// Stats holds the session counters.
	Stats stats.Repository
	// Notifier sends the SOS notification.
	Notifier Notifier
	// Frames receives annotated frames.
	Frames FrameSink
	// Events receives alarm state changes; nil disables them.
	Events events.Publisher
	// Pool runs event publishing in the background. It must not be shared with
	// the SOS delivery, so a slow broker cannot crowd out the notification.
	Pool Submitter
	// Station is reported in alarm events.
	Station *domain.Station
	// ClosedFramesThreshold is the streak that raises the alarm.
	ClosedFramesThreshold int
	// EyeInputSize is the side of the classifier input.
	EyeInputSize int
	// StopGracePeriod is how long Stop waits for the frame loop.
	StopGracePeriod time.Duration
	// AbortOnInferenceError ends the session on detector or classifier failures.
	AbortOnInferenceError bool
	// Now returns the event timestamp.
	Now func() time.Time
}

// Monitor controls detection sessions.
type Monitor struct {
	// opts holds the collaborators and tuning.
	opts Options

	// mu guards current.
	mu sync.Mutex
	// current is the latest session, running or finished.
	current *session
}

// New validates the options and creates an idle monitor.
func New(opts *Options) (*Monitor, error) {
	if opts == nil ||
		opts.Opener == nil ||
		opts.Detector == nil ||
		opts.Classifier == nil ||
		opts.Renderer == nil ||
		opts.Stats == nil ||
		opts.Notifier == nil ||
		opts.Frames == nil ||
		opts.Pool == nil {
		return nil, errMissingDependency
	}

	m := &Monitor{
		opts: *opts,
	}

	if m.opts.Events == nil {
		m.opts.Events = events.Nop{}
	}

	if m.opts.ClosedFramesThreshold <= 0 {
		m.opts.ClosedFramesThreshold = domain.DefaultClosedFramesThreshold
	}

	if m.opts.EyeInputSize <= 0 {
		m.opts.EyeInputSize = domain.DefaultEyeInputSize
	}

	if m.opts.StopGracePeriod <= 0 {
		m.opts.StopGracePeriod = DefaultStopGracePeriod
	}

	if m.opts.Now == nil {
		m.opts.Now = time.Now
	}

	return m, nil
}

// Start resets the session state, opens the source and starts the frame loop.
// It returns the new session ID.
func (m *Monitor) Start(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev := m.current; prev != nil && !prev.finished() {
		if prev.running() {
			return "", ErrSessionActive
		}

		// A stopped loop may still be finishing its last frame; it must not
		// write into the counters of the next session.
		if !prev.wait(ctx, m.opts.StopGracePeriod) {
			return "", fmt.Errorf("%w: previous session is still finishing", ErrSessionActive)
		}
	}

	// Reset everything a new session starts from.
	m.opts.Stats.Reset()
	m.opts.Notifier.Reset()
	m.opts.Frames.Reset()

	source, err := m.opts.Opener(ctx)
	if err != nil {
		metrics.RecordFrameError(stageCapture)

		return "", fmt.Errorf("open capture: %w", err)
	}

	id := uuid.NewString()
	loopCtx := logger.WithKV(context.WithoutCancel(ctx), "session_id", id)

	s := newSession(loopCtx, id, source)
	m.current = s
	p := m.newPipeline(s.id)

	metrics.RecordSessionStarted()
	logger.InfoKV(loopCtx, "Detection session started",
		"closed_frames_threshold", m.opts.ClosedFramesThreshold,
		"abort_on_inference_error", m.opts.AbortOnInferenceError,
	)

	go m.run(loopCtx, s, p)

	return s.id, nil
}

// Stop asks the frame loop to finish and waits up to the grace period.
// The loop releases the source when it exits. Stopping an idle monitor is a no-op.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()

	if s == nil {
		return nil
	}

	ctx = logger.WithKV(ctx, "session_id", s.id)

	if !s.requestStop() {
		return nil
	}

	if !s.wait(ctx, m.opts.StopGracePeriod) {
		logger.WarnKV(ctx, "Frame loop did not finish within the grace period, capture is released when it exits",
			"grace_period", m.opts.StopGracePeriod,
		)

		return nil
	}

	logger.Info(ctx, "Detection session stopped")

	return nil
}

// Stats returns a snapshot of the session counters.
func (m *Monitor) Stats() *domain.Stats {
	return m.opts.Stats.Snapshot()
}

// Running reports whether a session is running.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current != nil && m.current.running()
}

// SessionID returns the ID of the latest session, empty before the first start.
func (m *Monitor) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ""
	}

	return m.current.id
}

// Wait blocks until the latest session's frame loop has exited or ctx is done.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()

	if s == nil {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for frame loop: %w", ctx.Err())
	}
}

// newPipeline builds the per-session pipeline with fresh alert state and residual labels.
func (m *Monitor) newPipeline(sessionID string) *pipeline {
	return &pipeline{
		detector:     m.opts.Detector,
		classifier:   m.opts.Classifier,
		renderer:     m.opts.Renderer,
		stats:        m.opts.Stats,
		machine:      NewMachine(m.opts.ClosedFramesThreshold),
		eyeSize:      m.opts.EyeInputSize,
		abortOnError: m.opts.AbortOnInferenceError,
		left:         domain.LabelUnknown,
		right:        domain.LabelUnknown,
		onRaise: func(ctx context.Context, count uint64) {
			m.alarmRaised(ctx, sessionID, count)
		},
		onClear: func(ctx context.Context) {
			m.alarmCleared(ctx, sessionID)
		},
	}
}

// run reads and processes frames until stopped or the source fails.
func (m *Monitor) run(ctx context.Context, s *session, p *pipeline) {
	defer close(s.done)
	defer s.release(ctx)

	for !s.stopping() {
		frame, err := s.source.Read(s.readCtx)
		if err != nil {
			if s.stopping() {
				return
			}

			metrics.RecordFrameError(stageCapture)
			logger.ErrorKV(ctx, "Read frame failed, ending session", "error", err)

			return
		}

		result, err := p.process(ctx, frame)
		if err != nil {
			logger.ErrorKV(ctx, "Process frame failed, ending session", "error", err)

			return
		}

		if result.jpeg != nil {
			m.opts.Frames.Publish(result.jpeg)
		}
	}
}

// alarmRaised handles a rising edge.
func (m *Monitor) alarmRaised(ctx context.Context, sessionID string, count uint64) {
	metrics.RecordAlarm(true)
	logger.WarnKV(ctx, "Drowsiness alert raised", "drowsiness_events", count)

	m.opts.Notifier.Notify(ctx, count)
	m.publishEvent(ctx, events.TypeAlarmRaised, sessionID)
}

// alarmCleared handles the end of an active alarm.
func (m *Monitor) alarmCleared(ctx context.Context, sessionID string) {
	metrics.RecordAlarm(false)
	logger.Info(ctx, "Drowsiness alert cleared")

	m.publishEvent(ctx, events.TypeAlarmCleared, sessionID)
}

// publishEvent snapshots the stats now and publishes in the background.
func (m *Monitor) publishEvent(ctx context.Context, eventType, sessionID string) {
	event := events.NewEvent(eventType, sessionID, m.opts.Station, m.opts.Stats.Snapshot(), m.opts.Now())
	publisher := m.opts.Events

	m.opts.Pool.Submit(ctx, eventTaskName, func(taskCtx context.Context) {
		if err := publisher.Publish(taskCtx, event); err != nil {
			logger.WarnKV(taskCtx, "Publish alarm event failed", "type", eventType, "error", err)
		}
	})
}
