package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_LocalIsDebug(t *testing.T) {
	l, err := New("bet-client", "local", "")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_ProdIsInfo(t *testing.T) {
	l, err := New("bet-client", "prod", "")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_LevelOverride(t *testing.T) {
	l, err := New("bet-client", "local", "warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New("bet-client", "local", "loud")
	assert.Error(t, err)
}
