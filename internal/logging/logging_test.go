package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input  string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warn", LevelWarn, true},
		{"warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"", LevelInfo, false},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		assert.Less(t, levels[i], levels[i+1])
	}
}

func TestConfigureFiltersByLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEBUG", "")

	var buf bytes.Buffer
	closer := Configure(Options{Level: "warn", Output: &buf})
	defer closer.Close()
	defer Configure(Options{Level: "info"})

	Info("hidden %d", 1)
	Warn("shown %s", "warning")
	Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown warning")
	assert.Contains(t, out, "shown error")
	assert.Equal(t, LevelWarn, GetLevel())
	assert.False(t, IsDebugEnabled())
}

func TestPrintfIgnoresLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEBUG", "")

	var buf bytes.Buffer
	Configure(Options{Level: "error", Output: &buf})
	defer Configure(Options{Level: "info"})

	Info("filtered")
	Printf("Finished in %v", "1.5s")

	assert.NotContains(t, buf.String(), "filtered")
	assert.Contains(t, buf.String(), "Finished in 1.5s")
}

func TestEnvironmentOverridesConfiguredLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEBUG", "true")

	var buf bytes.Buffer
	Configure(Options{Level: "error", Output: &buf})
	defer Configure(Options{Level: "info"})

	Debug("debug line")
	assert.True(t, IsDebugEnabled())
	assert.Contains(t, buf.String(), "debug line")
}

func TestConfigureWritesLogFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEBUG", "")

	logPath := filepath.Join(t.TempDir(), "index.log")
	var console bytes.Buffer
	closer := Configure(Options{Level: "info", FilePath: logPath, MaxSizeMB: 1, Output: &console})

	Info("written to file")
	require.NoError(t, closer.Close())
	Configure(Options{Level: "info"})

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}
