package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"already e164", "+15551234567", "+15551234567", false},
		{"formatted nanp", "(555) 123-4567", "+15551234567", false},
		{"dotted nanp", "555.123.4567", "+15551234567", false},
		{"nanp with country code", "1 555 123 4567", "+15551234567", false},
		{"international with plus", "+44 20 7946 0958", "+442079460958", false},
		{"too short", "12345", "", true},
		{"letters only", "call me", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidatePhone(t *testing.T) {
	assert.NoError(t, ValidatePhone("+15551234567"))
	assert.Error(t, ValidatePhone("5551234567"))
	assert.Error(t, ValidatePhone("+1 555 123 4567"))
	assert.Error(t, ValidatePhone(""))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("tutor@example.com"))
	assert.Error(t, ValidateEmail("tutor@"))
	assert.Error(t, ValidateEmail(""))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "line one\nline two", SanitizeString("line\x00 one\nline\x7f two\x1b"))
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")

	logger, err := NewLogger(LoggerConfig{Level: "info", OutputPath: path, Format: "json"})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("run generated", zap.String("run_id", "r1"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"run_id":"r1"`)
	assert.Contains(t, out, `"timestamp"`)
	assert.NotContains(t, out, "hidden")
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "chatty", OutputPath: "stderr", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	kv := NewKVLogger(zap.New(core))

	kv.Info("sent", "batch_id", "b1", "count", 3)
	kv.Warn("slow", "ms", 1200)
	kv.Error("failed", "error", errors.New("boom"), 42, "dropped", "dangling")

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "sent", entries[0].Message)
	sentCtx := entries[0].ContextMap()
	assert.Equal(t, "b1", sentCtx["batch_id"])
	assert.EqualValues(t, 3, sentCtx["count"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)

	errCtx := entries[2].ContextMap()
	assert.Equal(t, "boom", errCtx["error"])
	assert.Len(t, errCtx, 1)
}

func TestNewKVLogger_NilIsSafe(t *testing.T) {
	kv := NewKVLogger(nil)
	assert.NotPanics(t, func() { kv.Error("ignored", "k", strings.Repeat("v", 3)) })
}
