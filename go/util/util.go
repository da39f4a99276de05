package util

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/witto13/BESS-Crawler/go/sklog"
)

// In returns true if |s| is *in* |a| slice.
func In(s string, a []string) bool {
	for _, x := range a {
		if x == s {
			return true
		}
	}
	return false
}

// ContainsAny returns true if |s| contains any element of |a|.
func ContainsAny(s string, a []string) bool {
	for _, x := range a {
		if strings.Contains(s, x) {
			return true
		}
	}
	return false
}

// Trunc returns s truncated to n chars with "..." added if needed.
func Trunc(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// AtMost returns a subslice of at most the first n members of a.
func AtMost(a []string, n int) []string {
	if n > len(a) {
		n = len(a)
	}
	return a[:n]
}

// MinInt returns the smaller of the two given ints.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// MaxInt returns the larger of the two given ints.
func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// MaxInt64 returns the larger of the two given int64s.
func MaxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Close wraps an io.Closer and logs an error if one is returned.
func Close(c io.Closer) {
	if err := c.Close(); err != nil {
		sklog.Errorf("Failed to Close(): %v", err)
	}
}

// LogErr logs err if it's not nil. This is intended to be used
// for calls where generally a returned error is unlikely.
func LogErr(err error) {
	if err != nil {
		sklog.ErrorfWithDepth(1, "Unexpected error: %s", err)
	}
}

// RepeatCtx calls the provided function immediately and then in intervals
// defined by 'interval'. It stops when the given context is canceled.
func RepeatCtx(interval time.Duration, ctx context.Context, fn func()) {
	ticker := time.NewTicker(interval)
	done := ctx.Done()
	defer ticker.Stop()
	fn()
MainLoop:
	for {
		select {
		case <-done:
			break MainLoop
		case <-ticker.C:
			fn()
		}
	}
}

// CopyStringSlice copies the given []string such that reflect.DeepEqual
// returns true for the given and resulting slices.
func CopyStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	rv := make([]string, len(s))
	copy(rv, s)
	return rv
}
