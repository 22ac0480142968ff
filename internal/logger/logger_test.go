package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })
	return &buf
}

func TestCtxLoggingCarriesTraceID(t *testing.T) {
	buf := captureOutput(t)
	ctx := WithTraceID(context.Background(), "trace-123")

	tests := []struct {
		name  string
		log   func()
		level string
	}{
		{"info", func() { InfoCtxf(ctx, "user %s logged in", "admin") }, "info"},
		{"warn", func() { WarnCtxf(ctx, "buffer full, dropped %d", 4) }, "warning"},
		{"error", func() { ErrorCtxf(ctx, "lookup failed: %v", "timeout") }, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log()

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, "trace-123", entry["trace_id"])
			assert.Equal(t, tt.level, entry["level"])
		})
	}
}

func TestCtxLoggingWithoutTraceID(t *testing.T) {
	buf := captureOutput(t)

	InfoCtxf(context.Background(), "no trace")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "trace_id")
	assert.Equal(t, "no trace", entry["msg"])
}

func TestTraceIDFromContext(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
	assert.Equal(t, "abc", TraceIDFromContext(WithTraceID(context.Background(), "abc")))
}

func TestWithRule(t *testing.T) {
	buf := captureOutput(t)

	WithRule("imagizer", "cpu-utilization").Info("fired")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "imagizer", entry["cluster_id"])
	assert.Equal(t, "cpu-utilization", entry["rule"])
}
