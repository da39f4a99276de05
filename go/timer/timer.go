// Package timer logs how long an operation took.
package timer

import (
	"time"

	"github.com/witto13/BESS-Crawler/go/sklog"
)

// Timer logs the elapsed time since its creation when stopped. Use it at
// the top of the func being measured:
//
//	defer timer.New("orchestrator cycle").Stop()
type Timer struct {
	name  string
	begin time.Time
}

// New returns a started Timer.
func New(name string) *Timer {
	return &Timer{
		name:  name,
		begin: time.Now(),
	}
}

// Stop logs the duration since New.
func (t *Timer) Stop() {
	sklog.Infof("%s %v", t.name, time.Since(t.begin))
}
