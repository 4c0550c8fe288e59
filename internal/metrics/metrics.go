package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Notification results recorded by RecordNotification.
const (
	NotificationSent     = "sent"
	NotificationFailed   = "failed"
	NotificationRejected = "rejected"
)

var (
	// FramesProcessed counts frames read from the capture device.
	FramesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drowsiness_frames_processed_total",
			Help: "Total number of frames processed by the detection loop",
		},
	)

	// EyesClosedFrames counts frames where both eyes were classified closed.
	EyesClosedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drowsiness_eyes_closed_frames_total",
			Help: "Total number of frames with both eyes closed",
		},
	)

	// DrowsinessEvents counts alarm rising edges.
	DrowsinessEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drowsiness_events_total",
			Help: "Total number of drowsiness alarms raised",
		},
	)

	// AlarmActive is 1 while the alarm is raised.
	AlarmActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drowsiness_alarm_active",
			Help: "Whether the drowsiness alarm is currently raised (1) or not (0)",
		},
	)

	// FrameDuration observes the time spent processing one frame.
	FrameDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drowsiness_frame_duration_seconds",
			Help:    "Duration of detection and classification for one frame",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// FrameErrors counts per-frame failures by pipeline stage.
	FrameErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drowsiness_frame_errors_total",
			Help: "Total number of frame processing errors",
		},
		[]string{"stage"}, // "capture", "face_detection", "eye_detection", "classification", "render"
	)

	// Notifications counts SOS notification attempts by result.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drowsiness_sos_notifications_total",
			Help: "Total number of SOS notification attempts",
		},
		[]string{"result"},
	)

	// SessionsStarted counts detection sessions.
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drowsiness_sessions_started_total",
			Help: "Total number of detection sessions started",
		},
	)

	// TasksDropped counts background tasks rejected by a full worker pool.
	TasksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drowsiness_background_tasks_dropped_total",
			Help: "Total number of background tasks dropped because the pool was full",
		},
		[]string{"task"},
	)

	// EventsPublished counts alarm events sent to the message broker by result.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drowsiness_alarm_events_published_total",
			Help: "Total number of alarm events published to the broker",
		},
		[]string{"type", "result"},
	)
)

// RecordFrame records one processed frame.
func RecordFrame(closed bool, duration time.Duration) {
	FramesProcessed.Inc()

	if closed {
		EyesClosedFrames.Inc()
	}

	FrameDuration.Observe(duration.Seconds())
}

// RecordFrameError records a failure at the given pipeline stage.
func RecordFrameError(stage string) {
	FrameErrors.WithLabelValues(stage).Inc()
}

// RecordAlarm records a rising (raised=true) or falling edge of the alarm.
func RecordAlarm(raised bool) {
	if raised {
		DrowsinessEvents.Inc()
		AlarmActive.Set(1)

		return
	}

	AlarmActive.Set(0)
}

// RecordNotification records the result of an SOS notification attempt.
func RecordNotification(result string) {
	Notifications.WithLabelValues(result).Inc()
}

// RecordSessionStarted records a new detection session.
func RecordSessionStarted() {
	SessionsStarted.Inc()
	AlarmActive.Set(0)
}

// RecordTaskDropped records a background task rejected by the pool.
func RecordTaskDropped(task string) {
	TasksDropped.WithLabelValues(task).Inc()
}

// RecordEventPublished records the result of publishing an alarm event.
func RecordEventPublished(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	EventsPublished.WithLabelValues(eventType, result).Inc()
}
