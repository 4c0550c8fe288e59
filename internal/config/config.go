package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-alarm/internal/logger"
)

// Config holds the settings of the drowsiness monitor.
type Config struct {
	// ListenAddress is the HTTP address for the control and streaming endpoints.
	ListenAddress string `yaml:"listen_addr"`
	// LogLevel is the minimum level of emitted log lines.
	LogLevel string `yaml:"log_level"`
	// LogFormat is either console or json.
	LogFormat string `yaml:"log_format"`
	// CameraDevice is the index of the capture device.
	CameraDevice int `yaml:"camera_device"`
	// FaceCascade is the path to the Haar cascade for faces.
	FaceCascade string `yaml:"face_cascade"`
	// LeftEyeCascade is the path to the Haar cascade for left eyes.
	LeftEyeCascade string `yaml:"left_eye_cascade"`
	// RightEyeCascade is the path to the Haar cascade for right eyes.
	RightEyeCascade string `yaml:"right_eye_cascade"`
	// EyeModel is the path to the eye-state classifier network.
	EyeModel string `yaml:"eye_model"`
	// EyeModelConfig is an optional network description file for EyeModel.
	EyeModelConfig string `yaml:"eye_model_config"`
	// EyeInputSize is the side of the square classifier input.
	EyeInputSize int `yaml:"eye_input_size"`
	// ClosedFramesThreshold is the closed-eye streak that raises the alarm.
	ClosedFramesThreshold int `yaml:"closed_frames_threshold"`
	// SOSEventThreshold is the number of drowsiness events that opens the SOS gate.
	SOSEventThreshold int `yaml:"sos_event_threshold"`
	// StopGracePeriod is how long stop waits for the frame loop before releasing the camera.
	StopGracePeriod time.Duration `yaml:"stop_grace_period"`
	// AbortOnInferenceError ends the session when the detector or classifier fails.
	AbortOnInferenceError bool `yaml:"abort_on_inference_error"`
	// RelayURL is the email-relay endpoint receiving SOS notifications.
	RelayURL string `yaml:"relay_url"`
	// RelayTimeout bounds a single SOS delivery.
	RelayTimeout time.Duration `yaml:"relay_timeout"`
	// SOSRecipient seeds the SOS recipient at boot.
	SOSRecipient string `yaml:"sos_recipient"`
	// NotifyWorkers is the number of SOS deliveries that may run at once.
	NotifyWorkers int `yaml:"notify_workers"`
	// EventWorkers is the number of alarm event publishes that may run at once.
	EventWorkers int `yaml:"event_workers"`
	// MQTTBroker enables alarm events when set (host:port).
	MQTTBroker string `yaml:"mqtt_broker"`
	// MQTTTopic is the topic prefix for alarm events.
	MQTTTopic string `yaml:"mqtt_topic"`
	// CORSOrigins lists the origins allowed to call the HTTP API.
	CORSOrigins []string `yaml:"cors_origins"`
	// StaticDir holds index.html and the alarm sound.
	StaticDir string `yaml:"static_dir"`
}

const (
	// DefaultConfigFilename is the default filename for monitor settings.
	DefaultConfigFilename = "drowsiness-settings.yaml"

	// DefaultListenAddress is the HTTP address used when none is configured.
	DefaultListenAddress = ":5000"

	// DefaultRelayURL is the form endpoint that forwards SOS emails.
	DefaultRelayURL = "https://formspree.io/f/mjkjzeza"

	// DefaultRelayTimeout bounds a single SOS delivery.
	DefaultRelayTimeout = 15 * time.Second

	// DefaultStopGracePeriod is how long stop waits for the frame loop.
	DefaultStopGracePeriod = time.Second

	// DefaultNotifyWorkers is the size of the SOS delivery pool.
	DefaultNotifyWorkers = 2

	// DefaultEventWorkers is the size of the alarm event pool.
	DefaultEventWorkers = 4

	// DefaultMQTTTopic is the topic prefix for alarm events.
	DefaultMQTTTopic = "drowsiness/alarms"

	// DefaultStaticDir holds the web page and the alarm sound.
	DefaultStaticDir = "static"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errModelsRequired is returned when a cascade or the classifier path is missing.
	errModelsRequired = errors.New("face_cascade, left_eye_cascade, right_eye_cascade and eye_model must be provided")
	// errInvalidThreshold is returned for non-positive thresholds.
	errInvalidThreshold = errors.New("thresholds must be positive")
	// errInvalidLogFormat is returned for an unknown log format.
	errInvalidLogFormat = errors.New("invalid log format")
	// errInvalidLogLevel is returned for an unknown log level.
	errInvalidLogLevel = errors.New("invalid log level")
	// errNegativeDevice is returned for a negative camera index.
	errNegativeDevice = errors.New("camera_device must not be negative")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes Config to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
//
//nolint:cyclop // A flat list of field checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.FaceCascade == "" || cfg.LeftEyeCascade == "" || cfg.RightEyeCascade == "" || cfg.EyeModel == "" {
		return errModelsRequired
	}

	if cfg.CameraDevice < 0 {
		return errNegativeDevice
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
			return fmt.Errorf("%w: %q", errInvalidLogLevel, cfg.LogLevel)
		}
	}

	if _, ok := logger.ParseFormat(cfg.LogFormat); !ok {
		return fmt.Errorf("%w: %q", errInvalidLogFormat, cfg.LogFormat)
	}

	if cfg.EyeInputSize == 0 {
		cfg.EyeInputSize = domain.DefaultEyeInputSize
	}

	if cfg.ClosedFramesThreshold == 0 {
		cfg.ClosedFramesThreshold = domain.DefaultClosedFramesThreshold
	}

	if cfg.SOSEventThreshold == 0 {
		cfg.SOSEventThreshold = domain.DefaultSOSEventThreshold
	}

	if cfg.EyeInputSize < 0 || cfg.ClosedFramesThreshold < 0 || cfg.SOSEventThreshold < 0 {
		return errInvalidThreshold
	}

	if cfg.StopGracePeriod <= 0 {
		cfg.StopGracePeriod = DefaultStopGracePeriod
	}

	if cfg.RelayTimeout <= 0 {
		cfg.RelayTimeout = DefaultRelayTimeout
	}

	if cfg.NotifyWorkers <= 0 {
		cfg.NotifyWorkers = DefaultNotifyWorkers
	}

	if cfg.EventWorkers <= 0 {
		cfg.EventWorkers = DefaultEventWorkers
	}

	if cfg.RelayURL == "" {
		cfg.RelayURL = DefaultRelayURL
	}

	if _, err := url.ParseRequestURI(cfg.RelayURL); err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}

	if cfg.MQTTTopic == "" {
		cfg.MQTTTopic = DefaultMQTTTopic
	}

	if cfg.MQTTBroker != "" {
		if _, _, err := net.SplitHostPort(cfg.MQTTBroker); err != nil {
			return fmt.Errorf("invalid MQTT broker address: %w", err)
		}
	}

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	if cfg.StaticDir == "" {
		cfg.StaticDir = DefaultStaticDir
	}

	return nil
}
