// Package events publishes alarm state changes to a message broker.
//
// Every rising edge of the alarm produces an alarm_raised event and every
// clear produces alarm_cleared. Events are JSON documents published to
// <topic>/<type>. Publishing is best effort: failures are logged and counted
// but never affect detection.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-alarm/internal/logger"
	"github.com/oshokin/drowsiness-alarm/internal/metrics"
)

// Event types.
const (
	TypeAlarmRaised  = "alarm_raised"
	TypeAlarmCleared = "alarm_cleared"
)

const (
	// DefaultConnectTimeout bounds the initial broker connection.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultPublishTimeout bounds a single publish when ctx has no deadline.
	DefaultPublishTimeout = 2 * time.Second

	// disconnectQuiesce is the grace period in milliseconds given to in-flight messages.
	disconnectQuiesce = 250

	// eventQoS delivers each event at least once.
	eventQoS byte = 1
)

var (
	// errBrokerRequired is returned when no broker address is configured.
	errBrokerRequired = errors.New("mqtt broker must be provided")
	// errConnectTimeout is returned when the broker does not answer in time.
	errConnectTimeout = errors.New("mqtt connection timeout")
	// errEventRequired is returned when a nil event is published.
	errEventRequired = errors.New("event must be provided")
)

// Publisher sends alarm events.
type Publisher interface {
	// Publish sends the event and waits for the broker acknowledgement.
	Publish(ctx context.Context, event *Event) error
	// Close releases the connection.
	Close()
}

// Event describes an alarm state change.
type Event struct {
	// Type is TypeAlarmRaised or TypeAlarmCleared.
	Type string `json:"type"`
	// SessionID identifies the detection session.
	SessionID string `json:"session_id"`
	// Station is the hostname of the monitoring station.
	Station string `json:"station,omitempty"`
	// DrowsinessEvents is the session event count at the time of the change.
	DrowsinessEvents uint64 `json:"drowsiness_events"`
	// EyesClosedCount is the session closed-frame count.
	EyesClosedCount uint64 `json:"eyes_closed_count"`
	// TotalFrames is the session frame count.
	TotalFrames uint64 `json:"total_frames"`
	// Timestamp is when the change happened.
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event from a stats snapshot.
func NewEvent(eventType, sessionID string, station *domain.Station, stats *domain.Stats, now time.Time) *Event {
	stats = stats.Clone()

	event := &Event{
		Type:             eventType,
		SessionID:        sessionID,
		DrowsinessEvents: stats.DrowsinessEvents,
		EyesClosedCount:  stats.EyesClosedFrames,
		TotalFrames:      stats.FramesProcessed,
		Timestamp:        now.UTC(),
	}

	if station != nil {
		event.Station = station.Hostname
	}

	return event
}

// MQTTPublisher publishes events through a paho client.
type MQTTPublisher struct {
	// client is the connected broker client.
	client mqtt.Client
	// topic is the prefix events are published under.
	topic string
}

// NewMQTTPublisher wraps an already connected client.
func NewMQTTPublisher(client mqtt.Client, topic string) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		topic:  topic,
	}
}

// Connect dials the broker and returns a publisher using it.
func Connect(ctx context.Context, broker, topic, clientID string) (*MQTTPublisher, error) {
	if broker == "" {
		return nil, errBrokerRequired
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL(broker)).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(DefaultConnectTimeout).
		SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		logger.InfoKV(ctx, "MQTT connection established", "broker", broker)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.WarnKV(ctx, "MQTT connection lost, reconnecting", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(DefaultConnectTimeout) {
		return nil, errConnectTimeout
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", err)
	}

	return NewMQTTPublisher(client, topic), nil
}

// Publish sends the event to <topic>/<type>.
func (p *MQTTPublisher) Publish(ctx context.Context, event *Event) error {
	if event == nil {
		return errEventRequired
	}

	err := p.publish(ctx, event)
	metrics.RecordEventPublished(event.Type, err)

	return err
}

func (p *MQTTPublisher) publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, DefaultPublishTimeout)
		defer cancel()
	}

	topic := p.topic + "/" + event.Type
	token := p.client.Publish(topic, eventQoS, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	logger.DebugKV(ctx, "Alarm event published", "topic", topic, "size", len(payload))

	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesce)
	}
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, *Event) error {
	return nil
}

// Close implements Publisher.
func (Nop) Close() {}

// brokerURL adds the tcp scheme to a bare host:port.
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}

	return "tcp://" + broker
}
