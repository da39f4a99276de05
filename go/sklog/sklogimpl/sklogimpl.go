// Package sklogimpl defines the interface for the logging implementation used
// by sklog. Applications should not use this package directly, the functions
// in sklog delegate here.
package sklogimpl

import (
	"os"
	"sync"
)

// Severity identifies the sort of log: info, warning etc.
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
	Fatal
)

// Logger is implemented by anything that can sink log lines.
type Logger interface {
	// Log records one log line. If format is the empty string the args are
	// formatted as fmt.Sprint would, otherwise as fmt.Sprintf would. The
	// depth is the number of stack frames to skip when attributing the log
	// line to a source location, with 0 meaning the caller of Log.
	Log(depth int, severity Severity, format string, args ...interface{})

	// Flush writes any buffered log lines.
	Flush()
}

var (
	logger Logger
	mtx    sync.Mutex
)

// SetLogger changes the package to use the given Logger.
func SetLogger(l Logger) {
	mtx.Lock()
	defer mtx.Unlock()
	logger = l
}

// Log records one log line via the registered Logger. Fatal severity exits
// the program after flushing.
func Log(depth int, severity Severity, format string, args ...interface{}) {
	mtx.Lock()
	l := logger
	mtx.Unlock()
	if l == nil {
		return
	}
	l.Log(depth+1, severity, format, args...)
	if severity == Fatal {
		l.Flush()
		os.Exit(255)
	}
}

// Flush flushes the registered Logger.
func Flush() {
	mtx.Lock()
	l := logger
	mtx.Unlock()
	if l != nil {
		l.Flush()
	}
}
