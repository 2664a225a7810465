// Package metrics exposes the operator's prometheus registry.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

type collectorConfig struct {
	namespace string
	process   bool
	refresh   time.Duration
}

type Option func(*collectorConfig)

// WithNamespace prefixes every metric name, "pumpkit" by default
func WithNamespace(namespace string) Option {
	return func(c *collectorConfig) { c.namespace = namespace }
}

func WithoutProcessMetrics() Option {
	return func(c *collectorConfig) { c.process = false }
}

// WithRefreshInterval sets how often process metrics are sampled
func WithRefreshInterval(d time.Duration) Option {
	return func(c *collectorConfig) { c.refresh = d }
}

// Collector owns the registry. Process metrics are sampled by a cron job
// between Start and Stop.
type Collector struct {
	cfg      collectorConfig
	registry *prometheus.Registry
	process  *ProcessMetrics
	cron     *cron.Cron

	mu      sync.Mutex
	started bool
}

func NewCollector(service string, opts ...Option) *Collector {
	cfg := collectorConfig{namespace: "pumpkit", process: true, refresh: 15 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Collector{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		cron:     cron.New(),
	}
	if cfg.process {
		c.process = newProcessMetrics(c.subsystem(service))
	}
	return c
}

func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	if c.process != nil {
		c.process.Refresh()
		if _, err := c.cron.AddFunc(fmt.Sprintf("@every %s", c.cfg.refresh), c.process.Refresh); err != nil {
			return fmt.Errorf("failed to schedule process metrics: %w", err)
		}
	}
	c.cron.Start()
	c.started = true
	return nil
}

// Stop blocks until a running refresh returns
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	<-c.cron.Stop().Done()
	c.started = false
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry is handed to collectors built elsewhere, such as the RPC call metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Process() *ProcessMetrics {
	return c.process
}

// subsystem registers metrics named namespace_sub_*
type subsystem struct {
	namespace, name string
	registry        *prometheus.Registry
}

func (c *Collector) subsystem(name string) subsystem {
	return subsystem{namespace: c.cfg.namespace, name: name, registry: c.registry}
}

func (s subsystem) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: s.namespace, Subsystem: s.name, Name: name, Help: help}, labels)
	s.registry.MustRegister(v)
	return v
}

func (s subsystem) gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: s.namespace, Subsystem: s.name, Name: name, Help: help})
	s.registry.MustRegister(g)
	return g
}

func (s subsystem) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	v := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: s.namespace, Subsystem: s.name, Name: name, Help: help, Buckets: buckets}, labels)
	s.registry.MustRegister(v)
	return v
}
