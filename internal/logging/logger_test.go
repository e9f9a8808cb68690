package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	logger, err := New("info", "json", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNewVerboseForcesDebug(t *testing.T) {
	logger, err := New("error", "json", true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewTextEncoding(t *testing.T) {
	logger, err := New("debug", "text", false)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New("loud", "json", false)
	require.Error(t, err)
}
