package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevels(t *testing.T) {
	cases := []struct {
		level   string
		debugOn bool
		warnOn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, true},
		{"error", false, false},
		{"bogus", false, true},
	}

	for _, tc := range cases {
		logger := NewLogger(Config{Level: tc.level})
		assert.Equal(t, tc.debugOn, logger.Enabled(context.Background(), slog.LevelDebug), "level %q debug", tc.level)
		assert.Equal(t, tc.warnOn, logger.Enabled(context.Background(), slog.LevelWarn), "level %q warn", tc.level)
	}
}

func TestNewLoggerFormats(t *testing.T) {
	assert.NotNil(t, NewLogger(Config{Format: "text"}))
	assert.NotNil(t, NewLogger(Config{Format: "json"}))
	assert.NotNil(t, NewLogger(Config{}))
}
