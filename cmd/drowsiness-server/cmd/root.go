package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/drowsiness-alarm/internal/config"
	"github.com/oshokin/drowsiness-alarm/internal/logger"
	"github.com/oshokin/drowsiness-alarm/internal/service/server"
	"github.com/oshokin/drowsiness-alarm/internal/version"
	"github.com/oshokin/drowsiness-alarm/internal/vision/opencv"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the level from the configuration file.
	logLevel string

	// rootCmd represents the base command for running the monitor.
	rootCmd = &cobra.Command{
		Use:   "drowsiness-server [listen-address]",
		Short: "Run the driver drowsiness monitor and its HTTP API.",
		Long: `Loads the face and eye cascades and the eye-state model, then serves the HTTP API
that starts and stops detection sessions on the configured camera.

While a session runs, every frame is classified, annotated and streamed as MJPEG.
A drowsiness alarm is raised after a run of frames with both eyes closed, and an
SOS email is sent through the relay once enough alarms have been raised.
Listen address can be provided as argument to override config (e.g., :5000, 127.0.0.1:8080).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:     configPath,
				ListenAddress:  listenAddress,
				LogLevel:       logLevel,
				LoadBackend:    opencv.LoadBackend,
				ApplyLogFormat: true,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the drowsiness-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level override (debug, info, warn, error)")
}
