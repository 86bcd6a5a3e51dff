package monitoring

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// L returns the process logger. It defaults to a development logger until
// the CLI installs its own with SetLogger.
func L() *zap.Logger {
	return logger.Load()
}

// SetLogger replaces the process logger. Passing nil installs a no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// Logf is the printf-style diagnostic logger used where structured fields add
// nothing. It routes through the process logger at info level.
func Logf(format string, v ...interface{}) {
	L().Sugar().Infof(format, v...)
}

// Debugf logs at debug level.
func Debugf(format string, v ...interface{}) {
	L().Sugar().Debugf(format, v...)
}
