// Package metrics2 provides gauges, counters, timers, and liveness metrics,
// backed by Prometheus. Metrics are identified by a measurement name plus a
// set of key/value tags.
package metrics2

import (
	"time"
)

// Int64Metric is a metric which reports an int64 value.
type Int64Metric interface {
	// Get returns the current value of the metric.
	Get() int64

	// Update sets the current value of the metric.
	Update(v int64)

	// Delete removes the metric from its clients.
	Delete() error
}

// Float64Metric is a metric which reports a float64 value.
type Float64Metric interface {
	Get() float64
	Update(v float64)
	Delete() error
}

// Float64SummaryMetric is a metric which reports a summary of many float64
// values, e.g. a latency distribution.
type Float64SummaryMetric interface {
	// Observe adds a data point to the summary.
	Observe(v float64)
}

// Counter is a metric which can be incremented and decremented.
type Counter interface {
	// Get returns the current value of the counter.
	Get() int64

	// Inc increments the counter by the given quantity.
	Inc(i int64)

	// Dec decrements the counter by the given quantity.
	Dec(i int64)

	// Reset sets the counter to zero.
	Reset()

	// Delete removes the counter from its clients.
	Delete() error
}

// Liveness keeps a time-since-last-successful-update metric, in seconds. It
// is used to track periodic processes; every liveness metric should have an
// alert on the value getting too large.
type Liveness interface {
	// Get returns the current value of the liveness in seconds.
	Get() int64

	// Reset should be called when some work has been successfully completed.
	Reset()

	// ManualReset sets the last-successful-update time to a specific value,
	// for testing.
	ManualReset(lastSuccessfulUpdate time.Time)
}

// Timer measures the duration of an operation and reports it to a
// Float64SummaryMetric when stopped.
type Timer interface {
	// Start (re)starts the timer.
	Start()

	// Stop stops the timer, reports the elapsed time, and returns it.
	Stop() time.Duration
}

// Client represents a set of metrics.
type Client interface {
	// GetCounter creates or retrieves a Counter with the given name and tags.
	GetCounter(name string, tags ...map[string]string) Counter

	// GetInt64Metric creates or retrieves an Int64Metric.
	GetInt64Metric(measurement string, tags ...map[string]string) Int64Metric

	// GetFloat64Metric creates or retrieves a Float64Metric.
	GetFloat64Metric(measurement string, tags ...map[string]string) Float64Metric

	// GetFloat64SummaryMetric creates or retrieves a Float64SummaryMetric.
	GetFloat64SummaryMetric(measurement string, tags ...map[string]string) Float64SummaryMetric

	// NewLiveness creates a new Liveness automatically reported on update.
	NewLiveness(name string, tags ...map[string]string) Liveness

	// NewTimer creates and starts a new Timer.
	NewTimer(name string, tags ...map[string]string) Timer

	// Flush pushes any queued data immediately. Long running apps should
	// call this before exiting.
	Flush() error
}

var defaultClient Client = NewPromClient()

// GetDefaultClient returns the default Client.
func GetDefaultClient() Client {
	return defaultClient
}

// InitForTesting swaps the default client for a given one; tests use this
// with a fresh client so that metric state does not leak between tests.
func InitForTesting(c Client) {
	defaultClient = c
}

// GetCounter creates or retrieves a Counter using the default client.
func GetCounter(name string, tags ...map[string]string) Counter {
	return defaultClient.GetCounter(name, tags...)
}

// GetInt64Metric creates or retrieves an Int64Metric using the default client.
func GetInt64Metric(measurement string, tags ...map[string]string) Int64Metric {
	return defaultClient.GetInt64Metric(measurement, tags...)
}

// GetFloat64Metric creates or retrieves a Float64Metric using the default
// client.
func GetFloat64Metric(measurement string, tags ...map[string]string) Float64Metric {
	return defaultClient.GetFloat64Metric(measurement, tags...)
}

// GetFloat64SummaryMetric creates or retrieves a Float64SummaryMetric using
// the default client.
func GetFloat64SummaryMetric(measurement string, tags ...map[string]string) Float64SummaryMetric {
	return defaultClient.GetFloat64SummaryMetric(measurement, tags...)
}

// NewLiveness creates a new Liveness using the default client.
func NewLiveness(name string, tags ...map[string]string) Liveness {
	return defaultClient.NewLiveness(name, tags...)
}

// NewTimer creates and starts a new Timer using the default client.
func NewTimer(name string, tags ...map[string]string) Timer {
	return defaultClient.NewTimer(name, tags...)
}

// Flush pushes any queued data from the default client immediately.
func Flush() error {
	return defaultClient.Flush()
}
