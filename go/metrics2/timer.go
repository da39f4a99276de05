package metrics2

import (
	"runtime"
	"strings"
)

const (
	nameFuncTimer = "func_timer"
)

// FuncTimer is specifically intended for measuring the duration of functions.
// It uses the default client.
//
// The standard way to use FuncTimer is at the top of the func you
// want to measure:
//
//	func myfunc() {
//	   defer metrics2.FuncTimer().Stop()
//	   ...
//	}
func FuncTimer() Timer {
	pc, _, _, _ := runtime.Caller(1)
	f := runtime.FuncForPC(pc)
	split := strings.Split(f.Name(), ".")
	fn := "unknown"
	pkg := "unknown"
	if len(split) >= 2 {
		fn = split[len(split)-1]
		pkg = strings.Join(split[:len(split)-1], ".")
	}
	return NewTimer(nameFuncTimer, map[string]string{"package": pkg, "func": fn})
}
