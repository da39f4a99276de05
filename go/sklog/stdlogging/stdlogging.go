// Package stdlogging sinks sklog lines into a jcgregorio/logger writing to
// stdout or stderr.
package stdlogging

import (
	logger "github.com/jcgregorio/logger"
	"github.com/witto13/BESS-Crawler/go/sklog/sklogimpl"
)

type stdlog struct {
	logger *logger.Logger
}

// New returns a sklogimpl.Logger that writes to a SyncWriter, such as
// os.Stdout or os.Stderr.
func New(dst logger.SyncWriter) sklogimpl.Logger {
	return &stdlog{logger: logger.NewFromOptions(&logger.Options{
		SyncWriter:   dst,
		DepthDelta:   3,
		IncludeDebug: true,
	})}
}

// Log implements sklogimpl.Logger. An empty format means the args are
// logged as fmt.Sprint would format them.
func (s stdlog) Log(_ int, severity sklogimpl.Severity, format string, args ...interface{}) {
	if format == "" {
		switch severity {
		case sklogimpl.Debug:
			s.logger.Debug(args...)
		case sklogimpl.Info:
			s.logger.Info(args...)
		case sklogimpl.Warning:
			s.logger.Warning(args...)
		case sklogimpl.Fatal:
			s.logger.Fatal(args...)
		default:
			s.logger.Error(args...)
		}
		return
	}
	switch severity {
	case sklogimpl.Debug:
		s.logger.Debugf(format, args...)
	case sklogimpl.Info:
		s.logger.Infof(format, args...)
	case sklogimpl.Warning:
		s.logger.Warningf(format, args...)
	case sklogimpl.Fatal:
		s.logger.Fatalf(format, args...)
	default:
		s.logger.Errorf(format, args...)
	}
}

// Flush implements sklogimpl.Logger. The underlying logger writes
// synchronously, so there is nothing to flush.
func (s stdlog) Flush() {}
