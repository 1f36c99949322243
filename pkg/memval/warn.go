package memval

import (
	"log/slog"
	"sync/atomic"
)

const warnPrefix = "[memval] "

var (
	warningsDisabled atomic.Bool
	warnLogger       atomic.Pointer[slog.Logger]
)

// DisableWarnings silences the warning channel for the whole process.
func DisableWarnings() {
	warningsDisabled.Store(true)
}

// EnableWarnings turns the warning channel back on. Warnings are enabled by default.
func EnableWarnings() {
	warningsDisabled.Store(false)
}

// WarningsEnabled reports whether warnings are currently emitted.
func WarningsEnabled() bool {
	return !warningsDisabled.Load()
}

// SetLogger routes warnings to l. A nil logger restores slog.Default().
func SetLogger(l *slog.Logger) {
	warnLogger.Store(l)
}

func logger() *slog.Logger {
	if l := warnLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// warn reports a locally absorbed failure.
func warn(msg string, args ...any) {
	if warningsDisabled.Load() {
		return
	}
	logger().Warn(warnPrefix+msg, args...)
}
