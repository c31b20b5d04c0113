package logging

import (
	"github.com/go-logr/logr"
)

// Verbosity levels the engine logs at. INFO is the logr default; DEBUG
// narrates phase-level work (descriptor parses, mutations, mastering);
// TRACE is the level for per-record detail; no engine call site logs at it.
const (
	LEVEL_INFO  = 0
	LEVEL_DEBUG = 1
	LEVEL_TRACE = 2
)

// Logger is the shim the engine logs through. It pins the verbosity levels
// above onto a caller-provided logr.Logger so call sites never touch
// V-levels directly, and it costs nothing when the caller did not install a
// sink.
type Logger struct {
	sink logr.Logger
}

// Wrap adapts a caller-provided logr.Logger. A logger with no sink degrades
// to a discard logger, so the shim is always safe to call.
func Wrap(log logr.Logger) *Logger {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Logger{sink: log}
}

// Discard returns a logger that drops everything. The engine stays silent
// unless the caller opted in.
func Discard() *Logger {
	return &Logger{sink: logr.Discard()}
}

// Info reports image-level events.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sink.Info(msg, keysAndValues...)
}

// Debug reports per-phase work.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sink.V(LEVEL_DEBUG).Info(msg, keysAndValues...)
}

// Trace reports per-record detail; expect a lot of it.
func (l *Logger) Trace(msg string, keysAndValues ...interface{}) {
	l.sink.V(LEVEL_TRACE).Info(msg, keysAndValues...)
}

// Error reports a failure with its cause.
func (l *Logger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sink.Error(err, msg, keysAndValues...)
}
