// Package cleanup provides a mechanism for running cleanup work on program
// shutdown and for running periodic background work that stops cleanly.
package cleanup

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/witto13/BESS-Crawler/go/sklog"
	"github.com/witto13/BESS-Crawler/go/util"
)

var (
	cancel context.CancelFunc
	ctx    context.Context
	wg     sync.WaitGroup
)

// Initialize the package.
func init() {
	resetContext()
}

// Reset the context. This is in a non-init function for testing purposes.
func resetContext() {
	// The below should be unnecessary but makes "go vet" happy.
	newContext, newCancel := context.WithCancel(context.Background())
	ctx = newContext
	cancel = newCancel
}

// Repeat runs the tick function immediately and on the given timer. When
// Cancel() is called, the optional cleanup function is run after waiting for
// the tick function to finish.
func Repeat(tickFrequency time.Duration, tick, cleanup func()) {
	wg.Add(1)
	go func() {
		// Returns after ctx is canceled AND tick is finished.
		util.RepeatCtx(tickFrequency, ctx, tick)
		if cleanup != nil {
			cleanup()
		}
		wg.Done()
	}()
}

// Cleanup cancels all tick functions registered via Repeat(), then waits for
// them to fully stop running and for their cleanup functions to run.
func Cleanup() {
	sklog.Warningf("Shutdown request received")
	cancel()
	wg.Wait()
	sklog.Warningf("Finished clean shutdown procedure.")
}

// WaitForInterrupt blocks until SIGINT or SIGTERM is received, then runs all
// registered cleanup work.
func WaitForInterrupt() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	sklog.Warningf("Caught signal %s", sig)
	Cleanup()
}
