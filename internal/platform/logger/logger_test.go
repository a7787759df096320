package logger_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/phrazzld/taskboard-scheduler/internal/config"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"Warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := logger.ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestSetupSetsDefault(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	l, err := logger.Setup(config.ServerConfig{LogLevel: "warn"})
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Same(t, l, slog.Default())
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, l.Enabled(context.Background(), slog.LevelWarn))

	l, err = logger.Setup(config.ServerConfig{LogLevel: "nonsense"})
	require.NoError(t, err)
	assert.True(t, l.Enabled(context.Background(), slog.LevelInfo))
}

func TestNewWritesJSON(t *testing.T) {
	buf, l := logger.NewTestLogger(t)
	l.Info("batch assigned", "subscriber_id", "s-1", "count", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &entry))
	assert.Equal(t, "batch assigned", entry["msg"])
	assert.Equal(t, "s-1", entry["subscriber_id"])
	assert.EqualValues(t, 3, entry["count"])
	logger.AssertLogContains(t, buf, "batch assigned")
}

func TestContextLogger(t *testing.T) {
	_, l := logger.NewTestLogger(t)
	fallback := slog.New(slog.DiscardHandler)

	ctx := logger.WithLogger(context.Background(), l)
	assert.Same(t, l, logger.FromContext(ctx))
	assert.Same(t, l, logger.FromContextOrDefault(ctx, fallback))

	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	assert.Same(t, slog.Default(), logger.FromContext(context.Background()))
}
