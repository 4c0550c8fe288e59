package drowsiness

import (
	"fmt"
	"strings"
	"time"
)

// SOSSubject is the subject line of every SOS notification.
const SOSSubject = "DROWSINESS ALERT - IMMEDIATE ATTENTION REQUIRED"

// timestampLayout formats the event time in the message body.
const timestampLayout = "2006-01-02 15:04:05"

// SOSMessage is an immutable snapshot sent to the configured recipient.
type SOSMessage struct {
	// Recipient is the address that receives the notification.
	Recipient string
	// Stats is the session statistics at dispatch time.
	Stats Stats
	// Station is the monitoring station that raised the alert, if known.
	Station *Station
	// Timestamp is the moment the message was built.
	Timestamp time.Time
}

// NewSOSMessage builds a message from copies of the provided values.
func NewSOSMessage(recipient string, stats *Stats, station *Station, now time.Time) *SOSMessage {
	return &SOSMessage{
		Recipient: recipient,
		Stats:     *stats.Clone(),
		Station:   station.Clone(),
		Timestamp: now,
	}
}

// Subject returns the subject line.
func (m *SOSMessage) Subject() string {
	return SOSSubject
}

// Body renders the free-text body with the timestamp and the three counters.
func (m *SOSMessage) Body() string {
	var b strings.Builder

	b.WriteString("DROWSINESS ALERT - IMMEDIATE ATTENTION REQUIRED!\n\n")
	b.WriteString("The drowsiness detection system has detected critical drowsiness levels.\n\n")
	b.WriteString("EVENT DETAILS:\n")
	fmt.Fprintf(&b, "Time: %s\n", m.Timestamp.Format(timestampLayout))

	if m.Station != nil && m.Station.Hostname != "" {
		fmt.Fprintf(&b, "Station: %s\n", m.Station.Hostname)
	}

	fmt.Fprintf(&b, "Drowsiness Events: %d\n", m.Stats.DrowsinessEvents)
	fmt.Fprintf(&b, "Eyes Closed Count: %d\n", m.Stats.EyesClosedFrames)
	fmt.Fprintf(&b, "Total Frames: %d\n\n", m.Stats.FramesProcessed)
	b.WriteString("RECOMMENDED ACTIONS:\n")
	b.WriteString("1. Contact the driver immediately\n")
	b.WriteString("2. Ensure driver takes a break\n")
	b.WriteString("3. Check driver's location and status\n")
	b.WriteString("4. Do not ignore - drowsy driving is dangerous!\n\n")
	b.WriteString("This is an automated alert from the Drowsiness Detection System.\n")

	return b.String()
}
