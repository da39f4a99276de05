package metrics2

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// livenessReportFrequency is how often liveness metrics re-report their
	// current value even when it hasn't been reset.
	livenessReportFrequency = 15 * time.Second
)

var (
	// invalidChar is used to force metric and tag names to conform to
	// Prometheus's restrictions.
	invalidChar = regexp.MustCompile("([^a-zA-Z0-9_:])")
)

func clean(s string) string {
	return invalidChar.ReplaceAllLiteralString(s, "_")
}

// mergeTags flattens a list of tag maps into one map. Later maps win on key
// collisions.
func mergeTags(tags []map[string]string) map[string]string {
	rv := map[string]string{}
	for _, t := range tags {
		for k, v := range t {
			rv[k] = v
		}
	}
	return rv
}

// tagKey builds a canonical key from a measurement and tags so that repeated
// lookups return the same metric instance.
func tagKey(measurement string, tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{measurement}
	for _, k := range keys {
		parts = append(parts, k+"="+tags[k])
	}
	return strings.Join(parts, "|")
}

// promInt64 implements the Int64Metric interface.
type promInt64 struct {
	// i tracks the value of the gauge, because the prometheus client lib
	// doesn't support get on Gauge values.
	i     int64
	gauge prometheus.Gauge
}

func (m *promInt64) Get() int64 {
	return atomic.LoadInt64(&m.i)
}

func (m *promInt64) Update(v int64) {
	atomic.StoreInt64(&m.i, v)
	m.gauge.Set(float64(v))
}

func (m *promInt64) Delete() error {
	// The delete is a lie.
	return nil
}

// promFloat64 implements the Float64Metric interface.
type promFloat64 struct {
	mutex sync.Mutex
	i     float64
	gauge prometheus.Gauge
}

func (m *promFloat64) Get() float64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.i
}

func (m *promFloat64) Update(v float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.i = v
	m.gauge.Set(v)
}

func (m *promFloat64) Delete() error {
	// The delete is a lie.
	return nil
}

// promFloat64Summary implements the Float64SummaryMetric interface.
type promFloat64Summary struct {
	summary prometheus.Observer
}

func (m *promFloat64Summary) Observe(v float64) {
	m.summary.Observe(v)
}

// promCounter implements the Counter interface.
type promCounter struct {
	*promInt64
}

func (pc *promCounter) Inc(i int64) {
	pc.Update(pc.Get() + i)
}

func (pc *promCounter) Dec(i int64) {
	pc.Update(pc.Get() - i)
}

func (pc *promCounter) Reset() {
	pc.Update(0)
}

// promLiveness implements the Liveness interface.
type promLiveness struct {
	lastSuccessfulUpdate time.Time
	m                    Int64Metric
	mtx                  sync.Mutex
}

func (l *promLiveness) Get() int64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.m.Get()
}

func (l *promLiveness) updateLocked() {
	l.m.Update(int64(time.Since(l.lastSuccessfulUpdate).Seconds()))
}

func (l *promLiveness) update() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.updateLocked()
}

func (l *promLiveness) Reset() {
	l.ManualReset(time.Now())
}

func (l *promLiveness) ManualReset(lastSuccessfulUpdate time.Time) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.lastSuccessfulUpdate = lastSuccessfulUpdate
	l.updateLocked()
}

// promTimer implements the Timer interface.
type promTimer struct {
	begin   time.Time
	summary Float64SummaryMetric
}

func (t *promTimer) Start() {
	t.begin = time.Now()
}

func (t *promTimer) Stop() time.Duration {
	elapsed := time.Since(t.begin)
	t.summary.Observe(elapsed.Seconds())
	return elapsed
}

// promClient implements the Client interface using Prometheus.
type promClient struct {
	reg prometheus.Registerer

	gaugeVecs   map[string]*prometheus.GaugeVec
	summaryVecs map[string]*prometheus.SummaryVec
	int64s      map[string]*promInt64
	float64s    map[string]*promFloat64
	mtx         sync.Mutex
}

// NewPromClient returns a Client backed by the default Prometheus registerer.
// Served via promhttp at /metrics.
func NewPromClient() Client {
	return NewPromClientWithRegisterer(prometheus.DefaultRegisterer)
}

// NewPromClientWithRegisterer returns a Client backed by the given registerer.
// Tests pass a fresh prometheus.NewRegistry() so metrics don't collide.
func NewPromClientWithRegisterer(reg prometheus.Registerer) Client {
	return &promClient{
		reg:         reg,
		gaugeVecs:   map[string]*prometheus.GaugeVec{},
		summaryVecs: map[string]*prometheus.SummaryVec{},
		int64s:      map[string]*promInt64{},
		float64s:    map[string]*promFloat64{},
	}
}

// gauge returns the raw prometheus gauge for the given measurement and tags,
// creating and registering the GaugeVec on first use. The caller must hold
// c.mtx.
func (c *promClient) gauge(measurement string, tags map[string]string) prometheus.Gauge {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, clean(k))
	}
	sort.Strings(keys)
	vecKey := clean(measurement) + "|" + strings.Join(keys, ",")
	vec, ok := c.gaugeVecs[vecKey]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: clean(measurement),
		}, keys)
		if err := c.reg.Register(vec); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				vec = are.ExistingCollector.(*prometheus.GaugeVec)
			} else {
				panic(err)
			}
		}
		c.gaugeVecs[vecKey] = vec
	}
	labels := prometheus.Labels{}
	for k, v := range tags {
		labels[clean(k)] = v
	}
	return vec.With(labels)
}

// GetInt64Metric implements the Client interface.
func (c *promClient) GetInt64Metric(measurement string, tags ...map[string]string) Int64Metric {
	merged := mergeTags(tags)
	key := tagKey(measurement, merged)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if m, ok := c.int64s[key]; ok {
		return m
	}
	m := &promInt64{
		gauge: c.gauge(measurement, merged),
	}
	c.int64s[key] = m
	return m
}

// GetFloat64Metric implements the Client interface.
func (c *promClient) GetFloat64Metric(measurement string, tags ...map[string]string) Float64Metric {
	merged := mergeTags(tags)
	key := tagKey(measurement, merged)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if m, ok := c.float64s[key]; ok {
		return m
	}
	m := &promFloat64{
		gauge: c.gauge(measurement, merged),
	}
	c.float64s[key] = m
	return m
}

// GetFloat64SummaryMetric implements the Client interface.
func (c *promClient) GetFloat64SummaryMetric(measurement string, tags ...map[string]string) Float64SummaryMetric {
	merged := mergeTags(tags)
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, clean(k))
	}
	sort.Strings(keys)
	vecKey := clean(measurement) + "|" + strings.Join(keys, ",")
	c.mtx.Lock()
	defer c.mtx.Unlock()
	vec, ok := c.summaryVecs[vecKey]
	if !ok {
		vec = prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       clean(measurement),
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, keys)
		if err := c.reg.Register(vec); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				vec = are.ExistingCollector.(*prometheus.SummaryVec)
			} else {
				panic(err)
			}
		}
		c.summaryVecs[vecKey] = vec
	}
	labels := prometheus.Labels{}
	for k, v := range merged {
		labels[clean(k)] = v
	}
	return &promFloat64Summary{
		summary: vec.With(labels),
	}
}

// GetCounter implements the Client interface.
func (c *promClient) GetCounter(name string, tags ...map[string]string) Counter {
	return &promCounter{
		promInt64: c.GetInt64Metric(name, tags...).(*promInt64),
	}
}

// NewLiveness implements the Client interface.
func (c *promClient) NewLiveness(name string, tags ...map[string]string) Liveness {
	l := &promLiveness{
		lastSuccessfulUpdate: time.Now(),
		m:                    c.GetInt64Metric("liveness_"+name+"_s", tags...),
	}
	go func() {
		for range time.Tick(livenessReportFrequency) {
			l.update()
		}
	}()
	return l
}

// NewTimer implements the Client interface.
func (c *promClient) NewTimer(name string, tags ...map[string]string) Timer {
	t := &promTimer{
		summary: c.GetFloat64SummaryMetric("timer_"+name+"_s", tags...),
	}
	t.Start()
	return t
}

// Flush implements the Client interface. Prometheus metrics are pull-based,
// so there is nothing to push.
func (c *promClient) Flush() error {
	return nil
}
