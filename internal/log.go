// Package internal holds the small cross-cutting helpers shared by every
// engine package: nil-safe logging. Adapted from the
// teacher's internal/debug.go logging conventions (slog-based, nil-safe,
// with a trace level below Debug) and simplified since this engine has no
// TinyGo/embedded target to special-case for.
package internal

import (
	"context"
	"log/slog"
)

var bgCtx = context.Background()

// LevelTrace is a verbosity level below slog.LevelDebug, used for the
// per-frame delivery tracing the simulator emits.
const LevelTrace slog.Level = slog.LevelDebug - 4

// Debug, Info, Warn and Error log at the given level through log, doing
// nothing if log is nil. Every engine component accepts a *slog.Logger that
// may be nil (matching the teacher's "logger embed" pattern in
// soypat-lneto/internet/basicstack.go) so unit tests don't need to wire one
// up.
func Debug(log *slog.Logger, msg string, attrs ...slog.Attr) {
	logAttrs(log, slog.LevelDebug, msg, attrs...)
}

func Trace(log *slog.Logger, msg string, attrs ...slog.Attr) {
	logAttrs(log, LevelTrace, msg, attrs...)
}

func Info(log *slog.Logger, msg string, attrs ...slog.Attr) {
	logAttrs(log, slog.LevelInfo, msg, attrs...)
}

func Warn(log *slog.Logger, msg string, attrs ...slog.Attr) {
	logAttrs(log, slog.LevelWarn, msg, attrs...)
}

func Error(log *slog.Logger, msg string, attrs ...slog.Attr) {
	logAttrs(log, slog.LevelError, msg, attrs...)
}

func logAttrs(log *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if log == nil || !log.Enabled(bgCtx, level) {
		return
	}
	log.LogAttrs(bgCtx, level, msg, attrs...)
}
