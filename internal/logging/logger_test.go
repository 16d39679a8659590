package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	testCases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for raw, want := range testCases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestNewLoggerHonorsLevel(t *testing.T) {
	for _, development := range []bool{false, true} {
		logger, err := NewLogger("warn", development)
		if err != nil {
			t.Fatalf("failed to build logger: %v", err)
		}
		if logger.Core().Enabled(zapcore.InfoLevel) {
			t.Fatalf("info should be disabled at warn level (development=%v)", development)
		}
		if !logger.Core().Enabled(zapcore.WarnLevel) {
			t.Fatalf("warn should be enabled (development=%v)", development)
		}
		_ = logger.Sync()
	}
}
