package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/miquelpairo/predictionsreport/internal/config"
)

func TestInitializeLogger_File(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(previous)
		CloseLogFile()
	})

	logFile := filepath.Join(t.TempDir(), "logs", "test.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, slog.Default())

	logger.Info("test message", "key", "value")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(content, &entry))
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestInitializeLogger_BadPath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := InitializeLogger(config.LoggingConfig{Output: "file", FilePath: filepath.Join(blocker, "x.log")})
	assert.Error(t, err)
}

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.LoggingConfig
		check func(t *testing.T, out string)
	}{
		{
			name: "json",
			cfg:  config.LoggingConfig{Level: "info", Format: "json"},
			check: func(t *testing.T, out string) {
				assert.True(t, strings.HasPrefix(out, "{"))
				assert.Contains(t, out, `"msg":"hello"`)
			},
		},
		{
			name: "text",
			cfg:  config.LoggingConfig{Level: "info", Format: "text"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "level=INFO msg=hello")
			},
		},
		{
			name: "level filters",
			cfg:  config.LoggingConfig{Level: "error", Format: "json"},
			check: func(t *testing.T, out string) {
				assert.Empty(t, out)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewLogger(&buf, tt.cfg).Info("hello")
			tt.check(t, buf.String())
		})
	}
}

func TestTraceIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, config.LoggingConfig{Level: "info", Format: "json"})

	ctx := WithTraceID(context.Background(), "trace-123")
	logger.With(slog.String("component", "test")).InfoContext(ctx, "with trace")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace-123", entry["trace_id"])
	assert.Equal(t, "test", entry["component"])

	buf.Reset()
	logger.InfoContext(context.Background(), "without trace")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestGetTraceID_FromSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
	assert.Equal(t, "explicit", GetTraceID(WithTraceID(ctx, "explicit")))
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.Len(t, id, 36)
	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)), "existing IDs are kept")

	var buf bytes.Buffer
	base := NewLogger(&buf, config.LoggingConfig{Level: "info", Format: "json"})

	WithError(WithComponent(LoggerWithContext(ctx, base), "parser"), assert.AnError).Info("x")
	out := buf.String()
	assert.Contains(t, out, `"component":"parser"`)
	assert.Contains(t, out, `"error":"`+assert.AnError.Error()+`"`)
	assert.Equal(t, 1, strings.Count(out, `"trace_id"`), "trace id is not duplicated")

	assert.Same(t, base, WithError(base, nil))
}
