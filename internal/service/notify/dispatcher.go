package notify

import (
	"context"
	"sync"
	"time"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-alarm/internal/logger"
	"github.com/oshokin/drowsiness-alarm/internal/metrics"
	"github.com/oshokin/drowsiness-alarm/internal/worker"
)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 15 * time.Second

// taskName labels the delivery in logs and metrics.
const taskName = "sos_notification"

// Sender delivers an SOS message to the outside world.
type Sender interface {
	Send(ctx context.Context, msg *domain.SOSMessage) error
}

// Submitter runs a task in the background without blocking.
type Submitter interface {
	Submit(ctx context.Context, name string, task worker.Task) bool
}

// StatsSource provides the snapshot embedded in the message.
type StatsSource interface {
	Snapshot() *domain.Stats
}

// Dispatcher sends the one-time SOS notification of a session.
type Dispatcher struct {
	// sender performs the delivery.
	sender Sender
	// pool runs deliveries off the frame loop.
	pool Submitter
	// stats is read when the message is built.
	stats StatsSource
	// station is reported in the message body.
	station *domain.Station
	// threshold is the minimum event count that opens the gate.
	threshold uint64
	// timeout bounds a single delivery.
	timeout time.Duration
	// now returns the message timestamp.
	now func() time.Time

	// mu guards the fields below.
	mu sync.Mutex
	// recipient is the configured address, empty when unset.
	recipient string
	// sent is set when a delivery is claimed and cleared when it fails.
	sent bool
	// generation increases on every session reset.
	generation uint64
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithThreshold sets the event count that opens the gate.
func WithThreshold(threshold int) Option {
	return func(d *Dispatcher) {
		if threshold > 0 {
			d.threshold = uint64(threshold)
		}
	}
}

// WithTimeout sets the delivery timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithStation sets the station reported in messages.
func WithStation(station *domain.Station) Option {
	return func(d *Dispatcher) {
		d.station = station.Clone()
	}
}

// WithRecipient seeds the recipient address.
func WithRecipient(recipient string) Option {
	return func(d *Dispatcher) {
		d.recipient = recipient
	}
}

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDispatcher creates a dispatcher delivering through sender on pool.
func NewDispatcher(sender Sender, pool Submitter, stats StatsSource, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:    sender,
		pool:      pool,
		stats:     stats,
		threshold: domain.DefaultSOSEventThreshold,
		timeout:   DefaultTimeout,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// SetRecipient replaces the recipient address; an empty value disables sending.
func (d *Dispatcher) SetRecipient(recipient string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.recipient = recipient
}

// Recipient returns the configured address, empty when unset.
func (d *Dispatcher) Recipient() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.recipient
}

// Sent reports whether the session's notification is claimed or delivered.
func (d *Dispatcher) Sent() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.sent
}

// Reset re-arms the gate for a new session.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sent = false
	d.generation++
}

// Notify schedules the SOS delivery when the gate is open and reports whether it did.
// The gate opens when a recipient is set, events reach the threshold and nothing
// has been sent in this session; claiming it is a single compare-and-set.
func (d *Dispatcher) Notify(ctx context.Context, events uint64) bool {
	recipient, generation, ok := d.claim(events)
	if !ok {
		logger.DebugKV(ctx, "SOS gate closed", "events", events)
		return false
	}

	logger.WarnKV(ctx, "SOS threshold reached, sending notification", "events", events, "recipient", recipient)

	accepted := d.pool.Submit(ctx, taskName, func(taskCtx context.Context) {
		d.deliver(taskCtx, recipient, generation)
	})
	if !accepted {
		d.release(generation)
		metrics.RecordNotification(metrics.NotificationRejected)

		return false
	}

	return true
}

// claim atomically checks the gate and marks the notification as sent.
func (d *Dispatcher) claim(events uint64) (string, uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.recipient == "" || events < d.threshold || d.sent {
		return "", 0, false
	}

	d.sent = true

	return d.recipient, d.generation, true
}

// release re-opens the gate unless a new session already reset it.
func (d *Dispatcher) release(generation uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.generation == generation {
		d.sent = false
	}
}

// deliver builds the message and sends it within the timeout.
func (d *Dispatcher) deliver(ctx context.Context, recipient string, generation uint64) {
	msg := domain.NewSOSMessage(recipient, d.stats.Snapshot(), d.station, d.now())

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sender.Send(sendCtx, msg); err != nil {
		d.release(generation)
		metrics.RecordNotification(metrics.NotificationFailed)
		logger.ErrorKV(ctx, "SOS notification failed", "recipient", recipient, "error", err)

		return
	}

	metrics.RecordNotification(metrics.NotificationSent)
	logger.InfoKV(ctx, "SOS notification sent",
		"recipient", recipient,
		"events", msg.Stats.DrowsinessEvents,
		"eyes_closed_count", msg.Stats.EyesClosedFrames,
		"total_frames", msg.Stats.FramesProcessed,
	)
}
