package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, err := NewLogger(LoggerConfig{Level: "debug", OutputPath: path, Format: "json", Service: "sales-reports"})
	require.NoError(t, err)
	logger.Info("Report created", zap.Int64("report_id", 7))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Report created"`)
	assert.Contains(t, string(data), `"report_id":7`)
	assert.Contains(t, string(data), `"timestamp"`)
	assert.Contains(t, string(data), `"service":"sales-reports"`)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(LoggerConfig{Level: "loud", OutputPath: "stdout"})
	assert.Error(t, err)
}

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	kv := NewKVLogger(zap.New(core))

	kv.Info("Report approved", "report_id", int64(3), "actor_id", int64(20))
	kv.Error("Failed to send notification", "error", errors.New("boom"), 42, "ignored", "dangling")

	entries := logs.All()
	require.Len(t, entries, 2)

	info := entries[0].ContextMap()
	assert.Equal(t, int64(3), info["report_id"])
	assert.Equal(t, int64(20), info["actor_id"])

	failure := entries[1].ContextMap()
	assert.Equal(t, "boom", failure["error"])
	assert.Len(t, failure, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}
