package logutils

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSettings configures the root logger.
type LogSettings struct {
	Enabled         bool   `json:"enabled"`
	Level           string `json:"level"`
	File            string `json:"file"`
	MaxSize         int    `json:"maxSize"`
	MaxBackups      int    `json:"maxBackups"`
	CompressRotated bool   `json:"compressRotated"`
}

var (
	rootMu sync.RWMutex
	root   = zap.NewNop()
)

// ZapLogger returns the root logger. It is a no-op logger until
// OverrideRootLogWithConfig or OverrideRootLogger is called.
func ZapLogger() *zap.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// OverrideRootLogger replaces the root logger.
func OverrideRootLogger(logger *zap.Logger) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root = logger
}

// OverrideRootLogWithConfig builds a logger out of settings and installs it as root.
// Output goes to the rotated file when File is set, stderr otherwise.
func OverrideRootLogWithConfig(settings LogSettings) error {
	if !settings.Enabled {
		OverrideRootLogger(zap.NewNop())
		return nil
	}

	level, err := parseLevel(settings.Level)
	if err != nil {
		return err
	}

	var syncer zapcore.WriteSyncer
	var encoder zapcore.Encoder
	if settings.File != "" {
		syncer = ZapSyncerWithRotation(FileOptions{
			Filename:   settings.File,
			MaxSize:    settings.MaxSize,
			MaxBackups: settings.MaxBackups,
			Compress:   settings.CompressRotated,
		})
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		syncer = zapcore.Lock(os.Stderr)
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	core := zapcore.NewCore(encoder, syncer, zap.NewAtomicLevelAt(level))
	OverrideRootLogger(zap.New(core, zap.AddCaller()))
	return nil
}

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	switch strings.ToUpper(level) {
	case "TRACE", "DEBUG":
		return zapcore.DebugLevel, nil
	case "INFO":
		return zapcore.InfoLevel, nil
	case "WARN":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	case "CRIT", "FATAL":
		return zapcore.FatalLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", level)
}
