package common

import (
	"go.uber.org/zap"

	"github.com/status-im/nodemanager/logutils"
)

// LogOnPanic logs a recovered panic with its stack trace and panics again.
// It is meant to be deferred at the top of every goroutine.
func LogOnPanic() {
	if err := recover(); err != nil {
		logutils.ZapLogger().Error("panic in goroutine", zap.Any("error", err), zap.Stack("stacktrace"))
		panic(err)
	}
}
