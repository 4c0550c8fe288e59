package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects how log entries are encoded.
type Format string

const (
	// FormatConsole writes colored, comma-separated lines for a terminal.
	FormatConsole Format = "console"
	// FormatJSON writes one JSON object per entry for log collectors.
	FormatJSON Format = "json"
)

var (
	// global is the shared logger instance used by every package.
	//nolint:gochecknoglobals // The monitor logs from the frame loop, handlers and workers alike.
	global *zap.SugaredLogger
	// sharedLevel is the minimum level, adjustable at runtime.
	//nolint:gochecknoglobals // Without a level the process would start silent.
	sharedLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() { //nolint:gochecknoinits // Packages log before the settings are loaded.
	SetLogger(New(sharedLevel, FormatConsole))
}

// New creates a logger writing to stdout in the given format.
// A nil level uses the shared atomic level; an unknown format falls back to console.
func New(level zapcore.LevelEnabler, format Format, options ...zap.Option) *zap.SugaredLogger {
	if level == nil {
		level = sharedLevel
	}

	//nolint:exhaustruct // Remaining encoder fields keep their zero values.
	config := zapcore.EncoderConfig{
		TimeKey:        "time",
		MessageKey:     "message",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	var encoder zapcore.Encoder

	switch format {
	case FormatJSON:
		config.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(config)
	default:
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.ConsoleSeparator = ", "
		encoder = zapcore.NewConsoleEncoder(config)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)

	return zap.New(core, options...).Sugar()
}

// ParseLogLevel converts string input to zap log level.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel, false
	}

	return level, true
}

// ParseFormat converts string input to a Format; empty means console.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatConsole:
		return FormatConsole, true
	case FormatJSON:
		return FormatJSON, true
	default:
		return FormatConsole, false
	}
}

// Level returns the current level of the shared logger.
func Level() zapcore.Level {
	return sharedLevel.Level()
}

// Logger returns the global logger.
func Logger() *zap.SugaredLogger {
	return global
}

// SetLogger replaces the global logger. Not safe for concurrent use.
func SetLogger(l *zap.SugaredLogger) {
	global = l
}

// SetLevel changes the level of every logger built on the shared level.
func SetLevel(level zapcore.Level) {
	sharedLevel.SetLevel(level)
}

// SetFormat rebuilds the global logger in the given format, keeping the shared level.
// Call it once at startup, before any goroutine logs.
func SetFormat(format Format) {
	Sync()
	SetLogger(New(sharedLevel, format))
}

// Sync flushes buffered entries of the global logger.
func Sync() {
	_ = global.Sync()
}

// Leveled helpers. Each writes through the logger stored in ctx, or the global one.

func Debug(ctx context.Context, args ...any) {
	FromContext(ctx).Debug(args...)
}

func DebugKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Debugw(message, kvs...)
}

func Info(ctx context.Context, args ...any) {
	FromContext(ctx).Info(args...)
}

func Infof(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Infof(format, args...)
}

func InfoKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Infow(message, kvs...)
}

func Warn(ctx context.Context, args ...any) {
	FromContext(ctx).Warn(args...)
}

func WarnKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Warnw(message, kvs...)
}

func Error(ctx context.Context, args ...any) {
	FromContext(ctx).Error(args...)
}

func ErrorKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Errorw(message, kvs...)
}

// FatalKV logs at fatal level and exits the process.
func FatalKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Fatalw(message, kvs...)
}
