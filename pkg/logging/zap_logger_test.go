package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewZapLogger_ValidConfig_WritesToProcessLogFile(t *testing.T) {
	tests := []struct {
		name   string
		env    LogLevel
		colors bool
	}{
		{name: "development with colors", env: Development, colors: true},
		{name: "development without colors", env: Development, colors: false},
		{name: "production", env: Production, colors: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := NewDefaultConfig(OperatorProcess)
			cfg.LogDir = dir
			cfg.Environment = tt.env
			cfg.UseColors = tt.colors

			logger, err := NewZapLogger(cfg)
			require.NoError(t, err)

			logger.Info("task submitted", "task_index", 7)
			require.NoError(t, logger.Sync())

			logFile := filepath.Join(dir, LogsDir, string(OperatorProcess), time.Now().UTC().Format(LogFileFormat))
			content, err := os.ReadFile(logFile)
			require.NoError(t, err)
			assert.Contains(t, string(content), "task submitted")
			assert.Contains(t, string(content), `"task_index":7`)
		})
	}
}

func TestNewZapLogger_MissingProcessName_ReturnsError(t *testing.T) {
	_, err := NewZapLogger(LoggerConfig{LogDir: t.TempDir()})
	assert.Error(t, err)
}

func TestZapLogger_ProductionLevel_DropsDebug(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig(OperatorProcess)
	cfg.LogDir = dir
	cfg.Environment = Production

	logger, err := NewZapLogger(cfg)
	require.NoError(t, err)

	logger.Debug("hidden debug line")
	logger.Warn("visible warn line")
	require.NoError(t, logger.Sync())

	content, err := os.ReadFile(filepath.Join(dir, LogsDir, string(OperatorProcess), time.Now().UTC().Format(LogFileFormat)))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "hidden debug line")
	assert.Contains(t, string(content), "visible warn line")
}

func TestZapLogger_WithTraceID_AddsField(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig(OperatorProcess)
	cfg.LogDir = dir

	logger, err := NewZapLogger(cfg)
	require.NoError(t, err)

	logger.WithTraceID("abc-123").Info("traced")
	require.NoError(t, logger.Sync())

	content, err := os.ReadFile(filepath.Join(dir, LogsDir, string(OperatorProcess), time.Now().UTC().Format(LogFileFormat)))
	require.NoError(t, err)

	var traced string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.Contains(line, "traced") {
			traced = line
		}
	}
	assert.Contains(t, traced, `"trace_id":"abc-123"`)
}

func TestNoOpLogger_With_ReturnsItself(t *testing.T) {
	logger := NewNoOpLogger()
	assert.Same(t, logger, logger.With("k", "v"))
	assert.Same(t, logger, logger.WithTraceID("id"))
}

func TestMockLogger_DefaultExpectations_AcceptAnyCall(t *testing.T) {
	m := &MockLogger{}
	m.SetupDefaultExpectations()

	m.Info("hello", "k", "v")
	m.Errorf("failed: %v", "boom")
	assert.Equal(t, m, m.With("k", "v"))
}
