package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ssargent/freyjabench/pkg/config"
)

func TestNew(t *testing.T) {
	t.Run("console at debug", func(t *testing.T) {
		logger, err := New(config.Logging{Level: "debug", Format: "console"})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("json at warn", func(t *testing.T) {
		logger, err := New(config.Logging{Level: "WARN", Format: "json"})
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := New(config.Logging{Level: "loud", Format: "console"})
		assert.Error(t, err)
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := New(config.Logging{Level: "info", Format: "xml"})
		assert.Error(t, err)
	})
}
