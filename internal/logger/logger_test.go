package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		"info":   zapcore.InfoLevel,
		" WARN ": zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"panic":  zapcore.PanicLevel,
		"fatal":  zapcore.FatalLevel,
		"dpanic": zapcore.DPanicLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestFromContext_FallsBackToGlobal ensures a bare context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestContextHelpers checks that WithName and WithKV decorate the stored logger.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())

	ctx = WithName(ctx, "monitor")
	ctx = WithKV(ctx, "session_id", "abc")

	InfoKV(ctx, "Detection started", "recipient", "ops@example.com")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "monitor", entries[0].LoggerName)
	require.Equal(t, "Detection started", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "abc", fields["session_id"])
	require.Equal(t, "ops@example.com", fields["recipient"])
}

// TestParseFormat accepts console and json in any case.
func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{in: "", want: FormatConsole, ok: true},
		{in: "console", want: FormatConsole, ok: true},
		{in: " JSON ", want: FormatJSON, ok: true},
		{in: "logfmt", want: FormatConsole, ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseFormat(tt.in)
		require.Equal(t, tt.ok, ok, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

// TestNew_RespectsLevel builds loggers in both formats on an explicit level.
func TestNew_RespectsLevel(t *testing.T) {
	t.Parallel()

	for _, format := range []Format{FormatConsole, FormatJSON} {
		l := New(zapcore.WarnLevel, format)
		require.NotNil(t, l)
		require.False(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
		require.True(t, l.Desugar().Core().Enabled(zapcore.ErrorLevel))
	}
}
