package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestWithContextAddsUserAndRequest(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelInfo, "json")

	ctx := WithRequestID(WithUser(context.Background(), "u-1"), "req-9")
	InfoContext(ctx, "contract accepted", "job_id", "j-1")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "u-1", line["user_id"])
	assert.Equal(t, "req-9", line["request_id"])
	assert.Equal(t, "j-1", line["job_id"])
	assert.Equal(t, "contract accepted", line["msg"])
}
