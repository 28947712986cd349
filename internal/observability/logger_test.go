package observability

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flakeload/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "DEBUG", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "WARNING", want: slog.LevelWarn},
		{in: "ERROR", want: slog.LevelError},
		{in: "TRACE", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := NewLogger(config.LogSettings{Level: "WARN"}, LoggerOptions{Console: &buf})
	require.NoError(t, err)
	defer closeFn()

	logger.Info("hidden")
	logger.Warn("Stage left behind", slog.String("stage", "TEMP_STAGE_x"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "Stage left behind")
	assert.Contains(t, out, "stage=TEMP_STAGE_x")
	assert.NotContains(t, out, "\x1b[", "no colour when not a terminal")
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flakeload.log")
	var console bytes.Buffer

	logger, closeFn, err := NewLogger(config.LogSettings{Level: "INFO", File: path}, LoggerOptions{Console: &console})
	require.NoError(t, err)

	logger.Info("Loaded rows", slog.Int64("rows", 3))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{"))
	assert.Contains(t, string(data), `"msg":"Loaded rows"`)
	assert.Contains(t, string(data), `"rows":3`)
	assert.Contains(t, console.String(), "Loaded rows")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestNewLoggerRejectsTraversal(t *testing.T) {
	_, _, err := NewLogger(config.LogSettings{File: "../../etc/flakeload.log"}, LoggerOptions{Console: &bytes.Buffer{}})
	assert.Error(t, err)
}
