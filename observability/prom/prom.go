// Package prom backs observability.MetricFactory with Prometheus collectors.
package prom

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/tuition/observability"
)

var _ observability.MetricFactory = (*Factory)(nil)

// Factory creates Prometheus counters and histograms on demand and registers
// them once. Dotted metric names become underscore separated; counters get
// the conventional _total suffix.
type Factory struct {
	reg     prometheus.Registerer
	buckets []float64

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// Option configures a Factory.
type Option func(*Factory)

// WithBuckets sets the histogram buckets (default: prometheus.DefBuckets).
func WithBuckets(b []float64) Option {
	return func(f *Factory) { f.buckets = b }
}

// New creates a factory registering into reg. A nil reg uses the default
// registerer, which is what promhttp.Handler serves.
func New(reg prometheus.Registerer, opts ...Option) *Factory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := &Factory{
		reg:        reg,
		buckets:    prometheus.DefBuckets,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Counter implements observability.MetricFactory.
func (f *Factory) Counter(name string) observability.Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricName(name) + "_total",
		Help: "Count of " + name + " events.",
	})
	f.counters[name] = register(f.reg, c).(prometheus.Counter)
	return f.counters[name]
}

// Histogram implements observability.MetricFactory.
func (f *Factory) Histogram(name string) observability.Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricName(name),
		Help:    "Distribution of " + name + ".",
		Buckets: f.buckets,
	})
	f.histograms[name] = register(f.reg, h).(prometheus.Histogram)
	return f.histograms[name]
}

// register adds c to reg, reusing the collector already registered under
// the same descriptor.
func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
