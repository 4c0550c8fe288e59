package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	api "github.com/oshokin/drowsiness-alarm/internal/api/http/monitor"
	"github.com/oshokin/drowsiness-alarm/internal/client/relay"
	"github.com/oshokin/drowsiness-alarm/internal/config"
	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-alarm/internal/events"
	"github.com/oshokin/drowsiness-alarm/internal/logger"
	"github.com/oshokin/drowsiness-alarm/internal/repository/stats"
	"github.com/oshokin/drowsiness-alarm/internal/service/monitor"
	"github.com/oshokin/drowsiness-alarm/internal/service/notify"
	"github.com/oshokin/drowsiness-alarm/internal/stream"
	"github.com/oshokin/drowsiness-alarm/internal/vision"
	"github.com/oshokin/drowsiness-alarm/internal/worker"
)

// loopExitTimeout bounds how long shutdown waits for the frame loop to exit.
const loopExitTimeout = 5 * time.Second

// EventsConnector dials the alarm event broker.
type EventsConnector func(ctx context.Context, broker, topic, clientID string) (events.Publisher, error)

// application holds the wired components of a running server.
type application struct {
	// backend owns the native vision resources.
	backend *vision.Backend
	// monitor runs detection sessions.
	monitor *monitor.Monitor
	// dispatcher sends the SOS notification.
	dispatcher *notify.Dispatcher
	// frames fans frames out to viewers.
	frames *stream.Broadcaster
	// notifyPool runs SOS deliveries.
	notifyPool *worker.Pool
	// eventPool runs alarm event publishing.
	eventPool *worker.Pool
	// publisher sends alarm events.
	publisher events.Publisher
	// handler serves the HTTP API.
	handler http.Handler
}

// newApplication wires every component around the loaded vision backend.
func newApplication(ctx context.Context, cfg *config.Config, backend *vision.Backend, connect EventsConnector) (*application, error) {
	station, err := domain.DetectStation()
	if err != nil {
		logger.WarnKV(ctx, "Station hostname is unavailable", "error", err)
	}

	relayClient, err := relay.New(cfg.RelayURL, relay.WithCallTimeout(cfg.RelayTimeout))
	if err != nil {
		return nil, fmt.Errorf("create relay client: %w", err)
	}

	var (
		store       = stats.NewStore()
		notifyPool  = worker.New(cfg.NotifyWorkers)
		eventPool   = worker.New(cfg.EventWorkers)
		broadcaster = stream.NewBroadcaster()
		publisher   = connectEvents(ctx, cfg, station, connect)
	)

	dispatcher := notify.NewDispatcher(relayClient, notifyPool, store,
		notify.WithThreshold(cfg.SOSEventThreshold),
		notify.WithTimeout(cfg.RelayTimeout),
		notify.WithStation(station),
		notify.WithRecipient(cfg.SOSRecipient),
	)

	mon, err := monitor.New(&monitor.Options{
		Opener:                backend.Opener,
		Detector:              backend.Detector,
		Classifier:            backend.Classifier,
		Renderer:              backend.Renderer,
		Stats:                 store,
		Notifier:              dispatcher,
		Frames:                broadcaster,
		Events:                publisher,
		Pool:                  eventPool,
		Station:               station,
		ClosedFramesThreshold: cfg.ClosedFramesThreshold,
		EyeInputSize:          cfg.EyeInputSize,
		StopGracePeriod:       cfg.StopGracePeriod,
		AbortOnInferenceError: cfg.AbortOnInferenceError,
	})
	if err != nil {
		publisher.Close()

		return nil, fmt.Errorf("create monitor: %w", err)
	}

	handler := api.NewServer(mon, dispatcher, broadcaster, &api.Options{
		StaticDir:   cfg.StaticDir,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     promhttp.Handler(),
	}).Routes()

	return &application{
		backend:    backend,
		monitor:    mon,
		dispatcher: dispatcher,
		frames:     broadcaster,
		notifyPool: notifyPool,
		eventPool:  eventPool,
		publisher:  publisher,
		handler:    handler,
	}, nil
}

// connectEvents returns the MQTT publisher or a no-op one when disabled or unreachable.
func connectEvents(ctx context.Context, cfg *config.Config, station *domain.Station, connect EventsConnector) events.Publisher {
	if cfg.MQTTBroker == "" || connect == nil {
		return events.Nop{}
	}

	clientID := "drowsiness-monitor"
	if station != nil && station.Hostname != "" {
		clientID += "-" + station.Hostname
	}

	publisher, err := connect(ctx, cfg.MQTTBroker, cfg.MQTTTopic, clientID)
	if err != nil {
		logger.WarnKV(ctx, "Alarm events disabled, broker is unreachable", "broker", cfg.MQTTBroker, "error", err)

		return events.Nop{}
	}

	logger.InfoKV(ctx, "Publishing alarm events", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic)

	return publisher
}

// close stops the session, drains background work and releases resources.
// Native resources are kept when the frame loop is still using them after the timeout.
func (a *application) close(ctx context.Context) error {
	stopErr := a.monitor.Stop(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, loopExitTimeout)
	defer cancel()

	waitErr := a.monitor.Wait(waitCtx)

	a.notifyPool.Wait()
	a.eventPool.Wait()
	a.publisher.Close()

	if waitErr != nil {
		return errors.Join(stopErr, fmt.Errorf("keep vision backend: %w", waitErr))
	}

	return errors.Join(stopErr, a.backend.Close())
}

// mqttConnector adapts events.Connect to EventsConnector.
func mqttConnector(ctx context.Context, broker, topic, clientID string) (events.Publisher, error) {
	return events.Connect(ctx, broker, topic, clientID)
}
