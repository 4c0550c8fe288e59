package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/oshokin/drowsiness-alarm/internal/config"
	"github.com/oshokin/drowsiness-alarm/internal/logger"
	"github.com/oshokin/drowsiness-alarm/internal/vision"
)

// BackendLoader loads the vision models named in the configuration.
type BackendLoader func(cfg *config.Config) (*vision.Backend, error)

// Options controls the drowsiness-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the HTTP server.
	ListenAddress string
	// LogLevel overrides the level from the settings file.
	LogLevel string
	// LoadBackend loads the cascades and the eye model.
	LoadBackend BackendLoader
	// ConnectEvents dials the alarm event broker; nil uses MQTT.
	ConnectEvents EventsConnector
	// ApplyLogFormat rebuilds the global logger in the configured format.
	ApplyLogFormat bool
}

const (
	// readHeaderTimeout bounds reading request headers.
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout bounds the graceful shutdown; video streams are cut after it.
	shutdownTimeout = 5 * time.Second
)

var (
	// ErrNoBackendLoader indicates the vision backend cannot be loaded.
	ErrNoBackendLoader = errors.New("no vision backend loader configured")
	// errInvalidLogLevel indicates an unknown log level override.
	errInvalidLogLevel = errors.New("invalid log level")
)

// Run loads models, starts the HTTP server and blocks until context is canceled.
// Model loading failures are returned before anything is served.
func Run(ctx context.Context, opts *Options) error {
	// Load configuration first to get server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// Command line log level overrides the settings file.
	if err = applyLogLevel(settings.LogLevel, opts.LogLevel); err != nil {
		return err
	}

	// Format is applied before any logger is derived from the global one.
	if opts.ApplyLogFormat {
		format, _ := logger.ParseFormat(settings.LogFormat)
		logger.SetFormat(format)
	}

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "drowsiness-server")

	listenAddress, err := resolveListenAddress(settings.ListenAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	if opts.LoadBackend == nil {
		return ErrNoBackendLoader
	}

	// Models and cascades are boot-fatal.
	backend, err := opts.LoadBackend(settings)
	if err != nil {
		return fmt.Errorf("load vision backend: %w", err)
	}

	logger.InfoKV(ctx, "Vision models loaded",
		"face_cascade", settings.FaceCascade,
		"eye_model", settings.EyeModel,
		"eye_input_size", settings.EyeInputSize,
	)

	connect := opts.ConnectEvents
	if connect == nil {
		connect = mqttConnector
	}

	app, err := newApplication(ctx, settings, backend, connect)
	if err != nil {
		_ = backend.Close()

		return fmt.Errorf("initialise application: %w", err)
	}

	defer func() {
		if closeErr := app.close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.WarnKV(ctx, "Release resources failed", "error", closeErr)
		}
	}()

	// Setup TCP listener for the HTTP server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	httpServer := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	logger.InfoKV(ctx, "Drowsiness server listening",
		"listen_address", lis.Addr().String(),
		"closed_frames_threshold", settings.ClosedFramesThreshold,
		"sos_event_threshold", settings.SOSEventThreshold,
		"sos_recipient", app.dispatcher.Recipient(),
	)

	// Done channel is closed after Shutdown finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			// Open video streams never become idle.
			_ = httpServer.Close()
		}
	}()

	if err := httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}

// applyLogLevel sets the global level from the override or the settings file.
func applyLogLevel(configured, override string) error {
	level := configured
	if override != "" {
		level = override
	}

	if level == "" {
		return nil
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, level)
	}

	logger.SetLevel(parsed)

	return nil
}

// resolveListenAddress determines the listen address for the HTTP server.
// The override wins; otherwise the configured address is used as is.
func resolveListenAddress(configAddr, override string) (string, error) {
	address := configAddr
	if override != "" {
		address = override
	}

	if address == "" {
		address = config.DefaultListenAddress
	}

	// Validate the address format before binding.
	if _, _, err := net.SplitHostPort(address); err != nil {
		return "", fmt.Errorf("invalid listen address format %q: %w", address, err)
	}

	return address, nil
}
