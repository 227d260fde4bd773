package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kasuganosora/battleevent/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battle.log")
	logger, err := New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("troop page started", zap.Int("page_id", 3))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"troop page started"`)
	assert.Contains(t, out, `"page_id":3`)
	assert.False(t, strings.Contains(out, "hidden"), "debug suppressed at info level")
}

func TestNew_DebugLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	logger, err := New(config.LogConfig{File: path, Debug: true})
	require.NoError(t, err)
	logger.Debug("branch terminator not found")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "branch terminator not found")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestFileWriter(t *testing.T) {
	w := FileWriter(config.LogConfig{File: "x.log", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 7})
	assert.Equal(t, "x.log", w.Filename)
	assert.Equal(t, 10, w.MaxSize)
	assert.Equal(t, 3, w.MaxBackups)
	assert.Equal(t, 7, w.MaxAge)
}
