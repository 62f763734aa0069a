package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cortex.log")
	logger, err := New(true, path)
	require.NoError(t, err)

	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel), "debug enabled")
	logger.Debug("stage finished")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"stage finished"`)
}

func TestNewProductionLevel(t *testing.T) {
	logger, err := New(false, filepath.Join(t.TempDir(), "x.log"))
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}
