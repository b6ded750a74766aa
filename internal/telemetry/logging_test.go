package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newHandler(&buf, LogOptions{Format: "json"})).Info("hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "v", rec["k"])

	buf.Reset()
	slog.New(newHandler(&buf, LogOptions{Format: "TEXT"})).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNewHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, LogOptions{Level: "WARN"}))

	logger.Info("skipped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestSetupLogger_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "worker.log")
	logger, closeFn := SetupLogger(LogOptions{File: path, Component: "tracking-worker"})

	logger.Info("started")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"tracking-worker"`)
	assert.Contains(t, string(data), `"msg":"started"`)
	assert.Same(t, logger, slog.Default())
}

func TestFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background(), nil))

	fallback := slog.New(newHandler(&bytes.Buffer{}, LogOptions{}))
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	logger := slog.New(newHandler(&bytes.Buffer{}, LogOptions{}))
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx, fallback))
}
