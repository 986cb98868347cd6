package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_FieldsAndLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput(LevelInfo, FormatJSON, &buf)

	logger.Debug("hidden")
	assert.Zero(t, buf.Len(), "debug should be filtered at info level")

	logger.WithFields(map[string]interface{}{"slug": "abcd1234", "owner": "u1"}).
		WithError(errors.New("boom")).
		Warn("event append failed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "event append failed", entry["message"])
	assert.Equal(t, "abcd1234", entry["slug"])
	assert.Equal(t, "u1", entry["owner"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_WithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithOutput(LevelDebug, FormatJSON, &buf)
	_ = parent.WithField("child", true)

	parent.Info("plain")
	entry := decodeLine(t, &buf)
	_, ok := entry["child"]
	assert.False(t, ok)
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput(LevelInfo, FormatJSON, &buf).WithField("request_id", "r-1")
	ctx := WithLogger(context.Background(), logger)

	FromContext(ctx).Info("hello")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "r-1", entry["request_id"])

	assert.NotNil(t, FromContext(context.Background()))
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
	assert.Equal(t, FormatText, ParseLogFormat("text"))
	assert.Equal(t, FormatJSON, ParseLogFormat("anything"))
}
