// Package monitoring holds the diagnostic logging hook shared by the
// analysis, playback and HTTP packages.
package monitoring

import (
	"log"
	"sync"
)

var (
	mu   sync.RWMutex
	logf = log.Printf
)

// Logf writes a diagnostic line through the current logger. It defaults to
// log.Printf; SetLogger redirects or mutes it.
func Logf(format string, v ...interface{}) {
	mu.RLock()
	f := logf
	mu.RUnlock()
	f(format, v...)
}

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	mu.Lock()
	defer mu.Unlock()
	if f == nil {
		logf = func(string, ...interface{}) {}
		return
	}
	logf = f
}

// Logger is a component-scoped logger. Every line is prefixed with
// "[component] " so interleaved playback and API output stays readable.
type Logger struct {
	prefix string
}

// Component returns a Logger for the named component.
func Component(name string) Logger {
	return Logger{prefix: "[" + name + "] "}
}

// Printf logs a formatted line with the component prefix.
func (l Logger) Printf(format string, v ...interface{}) {
	Logf(l.prefix+format, v...)
}
