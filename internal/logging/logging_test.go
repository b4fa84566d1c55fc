package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", slog.String("entity_id", "ACC_0001"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "ACC_0001", entry["entity_id"])
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "text")

	logger.Info("cache miss", slog.String("cache_key", "patterns:max_depth=4"))

	assert.Contains(t, buf.String(), "cache miss")
	assert.Contains(t, buf.String(), "patterns:max_depth=4")
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")

	ctx := WithRequestID(WithLogger(context.Background(), logger), "req-1")
	L(ctx).Info("hello")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}
