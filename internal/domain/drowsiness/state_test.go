package drowsiness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLabelFromIndex verifies argmax indices map to labels and out-of-range values are rejected.
func TestLabelFromIndex(t *testing.T) {
	t.Parallel()

	cases := map[int]Label{
		0: LabelOpenA,
		1: LabelOpenB,
		2: LabelClosed,
	}
	for index, want := range cases {
		got, err := LabelFromIndex(index)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	got, err := LabelFromIndex(3)
	require.ErrorIs(t, err, ErrUnknownLabel)
	require.Equal(t, LabelUnknown, got)

	_, err = LabelFromIndex(-1)
	require.ErrorIs(t, err, ErrUnknownLabel)
}

// TestLabelClosed checks that only the closed class counts as closed.
func TestLabelClosed(t *testing.T) {
	t.Parallel()

	require.True(t, LabelClosed.Closed())
	require.False(t, LabelOpenA.Closed())
	require.False(t, LabelOpenB.Closed())
	require.False(t, LabelUnknown.Closed())
	require.Equal(t, "closed", LabelClosed.String())
	require.Equal(t, "unknown", LabelUnknown.String())
}

// TestStatsClone verifies Clone copies values and handles nil safely.
func TestStatsClone(t *testing.T) {
	t.Parallel()

	s := &Stats{
		FramesProcessed:  10,
		EyesClosedFrames: 4,
		DrowsinessEvents: 1,
		AlarmActive:      true,
	}

	c := s.Clone()
	require.Equal(t, s, c)
	require.NotSame(t, s, c)

	require.Equal(t, new(Stats), (*Stats)(nil).Clone())
}

// TestStationClone verifies Clone returns a copy and handles nil safely.
func TestStationClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Station)(nil).Clone())

	s := &Station{Hostname: "cab-7"}
	c := s.Clone()

	require.Equal(t, s, c)
	require.NotSame(t, s, c)
}

// TestDetectStation ensures the hostname is detected.
func TestDetectStation(t *testing.T) {
	t.Parallel()

	s, err := DetectStation()
	require.NoError(t, err)
	require.NotEmpty(t, s.Hostname)
}

// TestAlertStateString checks the textual names used in logs and events.
func TestAlertStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "idle", AlertIdle.String())
	require.Equal(t, "closing", AlertClosing.String())
	require.Equal(t, "alarm_active", AlertActive.String())
}

// TestSOSMessage verifies the message is an independent snapshot and the body carries the counters.
func TestSOSMessage(t *testing.T) {
	t.Parallel()

	stats := &Stats{
		FramesProcessed:  120,
		EyesClosedFrames: 17,
		DrowsinessEvents: 3,
		AlarmActive:      true,
	}
	station := &Station{Hostname: "cab-7"}
	now := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

	msg := NewSOSMessage("ops@example.com", stats, station, now)

	// Mutating the sources must not leak into the message.
	stats.DrowsinessEvents = 99
	station.Hostname = "other"

	require.Equal(t, uint64(3), msg.Stats.DrowsinessEvents)
	require.Equal(t, "cab-7", msg.Station.Hostname)
	require.Equal(t, SOSSubject, msg.Subject())

	body := msg.Body()
	require.Contains(t, body, "Time: 2026-10-19 08:30:00")
	require.Contains(t, body, "Station: cab-7")
	require.Contains(t, body, "Drowsiness Events: 3")
	require.Contains(t, body, "Eyes Closed Count: 17")
	require.Contains(t, body, "Total Frames: 120")
}
