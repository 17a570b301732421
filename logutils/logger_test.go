package logutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestOverrideRootLogWithConfigWritesToFile(t *testing.T) {
	prev := ZapLogger()
	defer OverrideRootLogger(prev)

	file := filepath.Join(t.TempDir(), "nodes.log")
	require.NoError(t, OverrideRootLogWithConfig(LogSettings{
		Enabled:    true,
		Level:      "debug",
		File:       file,
		MaxSize:    1,
		MaxBackups: 1,
	}))

	ZapLogger().Named("test").Debug("switching node", zap.String("url", "wss://a"))
	require.NoError(t, ZapLogger().Sync())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), "switching node")
	require.Contains(t, string(data), "wss://a")
}

func TestOverrideRootLogWithConfigDisabled(t *testing.T) {
	prev := ZapLogger()
	defer OverrideRootLogger(prev)

	require.NoError(t, OverrideRootLogWithConfig(LogSettings{Enabled: false}))
	require.False(t, ZapLogger().Core().Enabled(zapcore.ErrorLevel))
}

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel("WARN")
	require.NoError(t, err)
	require.Equal(t, zapcore.WarnLevel, lvl)

	lvl, err = parseLevel("")
	require.NoError(t, err)
	require.Equal(t, zapcore.InfoLevel, lvl)

	_, err = parseLevel("verbose")
	require.Error(t, err)
}
