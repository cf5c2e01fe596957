// Package metrics exposes command processing counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

type Collector struct {
	registry           *prometheus.Registry
	commands           *prometheus.CounterVec
	retries            *prometheus.CounterVec
	projectionFailures *prometheus.CounterVec
	duration           *prometheus.HistogramVec
	pendingCatchUps    prometheus.GaugeFunc
}

// New registers the ledger metrics on a private registry. pending may be nil.
func New(pending func() int) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_commands_total",
			Help: "Processed account commands by outcome.",
		}, []string{"command", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_concurrency_retries_total",
			Help: "Optimistic concurrency conflicts that triggered a retry.",
		}, []string{"command"}),
		projectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_projection_failures_total",
			Help: "Synchronous projection failures after a committed write.",
		}, []string{"projection"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_command_duration_seconds",
			Help:    "Command handling latency including retries and projection.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
	}

	c.registry.MustRegister(
		c.commands,
		c.retries,
		c.projectionFailures,
		c.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if pending != nil {
		c.pendingCatchUps = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ledger_pending_catch_ups",
			Help: "Accounts waiting for a projection catch-up.",
		}, func() float64 { return float64(pending()) })
		c.registry.MustRegister(c.pendingCatchUps)
	}
	return c
}

func (c *Collector) RecordCommand(command, outcome string, duration time.Duration) {
	c.commands.WithLabelValues(command, outcome).Inc()
	c.duration.WithLabelValues(command).Observe(duration.Seconds())
}

func (c *Collector) RecordRetry(command string) {
	c.retries.WithLabelValues(command).Inc()
}

func (c *Collector) RecordProjectionFailure(projection string) {
	c.projectionFailures.WithLabelValues(projection).Inc()
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}
