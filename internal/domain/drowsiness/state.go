package drowsiness

import "os"

const (
	// DefaultClosedFramesThreshold is the streak length T that raises the alarm.
	DefaultClosedFramesThreshold = 5

	// DefaultSOSEventThreshold is the number of drowsiness events that opens the SOS gate.
	DefaultSOSEventThreshold = 3

	// DefaultEyeInputSize is the side of the square image fed to the classifier.
	DefaultEyeInputSize = 145
)

// AlertState is the state of the alarm state machine.
type AlertState int

const (
	// AlertIdle means no closed-eye streak is in progress.
	AlertIdle AlertState = iota
	// AlertClosing means a closed-eye streak is shorter than the threshold.
	AlertClosing
	// AlertActive means the streak reached the threshold and the alarm is on.
	AlertActive
)

// String implements fmt.Stringer.
func (s AlertState) String() string {
	switch s {
	case AlertIdle:
		return "idle"
	case AlertClosing:
		return "closing"
	case AlertActive:
		return "alarm_active"
	default:
		return "unknown"
	}
}

// Stats holds the counters of a single detection session.
type Stats struct {
	// FramesProcessed is the number of frames read from the capture device.
	FramesProcessed uint64
	// EyesClosedFrames is the number of frames where both eyes were closed.
	EyesClosedFrames uint64
	// DrowsinessEvents is the number of alarm rising edges.
	DrowsinessEvents uint64
	// AlarmActive reports whether the alarm is currently raised.
	AlarmActive bool
}

// Clone returns a copy of the stats to avoid leaking internal references.
func (s *Stats) Clone() *Stats {
	if s == nil {
		return new(Stats)
	}

	cloned := *s

	return &cloned
}

// Station identifies the machine that runs the monitor.
type Station struct {
	// Hostname is the machine name of the monitoring station.
	Hostname string
}

// Clone returns a copy of the station.
func (s *Station) Clone() *Station {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// DetectStation gathers the host information reported in alerts.
func DetectStation() (*Station, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}

	return &Station{
		Hostname: hostname,
	}, nil
}
