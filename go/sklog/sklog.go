// Package sklog is the logging facade used throughout this repo. The
// f-suffixed functions format their arguments as fmt.Sprintf would; Fatal
// formats as fmt.Sprint would and exits the program after logging.
package sklog

import (
	"os"

	"github.com/witto13/BESS-Crawler/go/sklog/sklogimpl"
	"github.com/witto13/BESS-Crawler/go/sklog/stdlogging"
)

// A logger must be registered before the first log call; the binaries swap
// in their own writer in main.
func init() {
	sklogimpl.SetLogger(stdlogging.New(os.Stderr))
}

func Debugf(format string, v ...interface{}) {
	sklogimpl.Log(1, sklogimpl.Debug, format, v...)
}

func Infof(format string, v ...interface{}) {
	sklogimpl.Log(1, sklogimpl.Info, format, v...)
}

func Warningf(format string, v ...interface{}) {
	sklogimpl.Log(1, sklogimpl.Warning, format, v...)
}

func Errorf(format string, v ...interface{}) {
	sklogimpl.Log(1, sklogimpl.Error, format, v...)
}

// ErrorfWithDepth logs an error attributed to a source location depth
// frames above the caller.
func ErrorfWithDepth(depth int, format string, v ...interface{}) {
	sklogimpl.Log(1+depth, sklogimpl.Error, format, v...)
}

// Fatal logs the args and exits the program.
func Fatal(msg ...interface{}) {
	sklogimpl.Log(1, sklogimpl.Fatal, "", msg...)
}
