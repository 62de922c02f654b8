package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNeverNil(t *testing.T) {
	assert.NotNil(t, Log())
	assert.NotNil(t, S())
}

func TestUseReplacesGlobals(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Use(zap.New(core))
	t.Cleanup(func() { Use(zap.NewNop()) })

	Log().Info("analysis finished", zap.Int("rows", 2))
	zap.L().Info("via global")

	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "analysis finished", entry.Message)
	assert.Equal(t, int64(2), entry.ContextMap()["rows"])
}

func TestInitModes(t *testing.T) {
	t.Cleanup(func() { Use(zap.NewNop()) })
	require.NoError(t, Init("release"))
	assert.NotNil(t, Log())
	require.NoError(t, Init("debug"))
	assert.NotNil(t, S())
}

func TestNamedTagsComponent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Use(zap.New(core))
	t.Cleanup(func() { Use(zap.NewNop()) })

	Named("gateway").Warn("answer attempt failed")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "gateway", logs.All()[0].LoggerName)
}

func TestInitTestModeKeepsWarnings(t *testing.T) {
	t.Cleanup(func() { Use(zap.NewNop()) })
	require.NoError(t, Init("test"))
	assert.False(t, Log().Core().Enabled(zap.InfoLevel))
	assert.True(t, Log().Core().Enabled(zap.WarnLevel))

	require.NoError(t, InitDevelopment())
	assert.True(t, Log().Core().Enabled(zap.DebugLevel))
	require.NoError(t, InitProduction())
	assert.False(t, Log().Core().Enabled(zap.DebugLevel))
}
