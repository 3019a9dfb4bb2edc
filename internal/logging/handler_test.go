package logging

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerOutput(t *testing.T) {
	var buf strings.Builder
	h := NewHandler(&buf, &Options{Level: slog.LevelInfo})
	logger := slog.New(h)

	logger.Info("queue opened", "path", "/tmp/queue.db")

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "queue opened")
	assert.Contains(t, out, "path=/tmp/queue.db")
	assert.NotContains(t, out, "\033[", "color disabled by default")
}

func TestHandlerLevelFilter(t *testing.T) {
	var buf strings.Builder
	h := NewHandler(&buf, &Options{Level: slog.LevelWarn})

	require.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestHandlerWithAttrs(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(NewHandler(&buf, nil)).With("component", "orchestrator")

	logger.Info("started")
	assert.Contains(t, buf.String(), "component=orchestrator")
}
