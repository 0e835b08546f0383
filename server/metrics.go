package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	lottery "github.com/kydenul/lotterysim"
)

const metricsNamespace = "lotterysim"

// Metrics holds the Prometheus collectors of one server instance
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics registers HTTP collectors plus gauges reading the settlement monitor and breaker state
func NewMetrics(monitor *lottery.SettlementMonitor, breaker *lottery.BreakerBalanceStore) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"method", "path"}),
	}

	m.registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	if monitor != nil {
		m.registerMonitor(monitor)
	}
	if breaker != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "circuit_breaker_state",
			Help:      "Balance store circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, func() float64 {
			return lottery.BreakerStateValue(breaker.GetCircuitBreakerState())
		}))
	}

	return m
}

func (m *Metrics) registerMonitor(monitor *lottery.SettlementMonitor) {
	counter := func(name, help string, read func(lottery.SettlementMetrics) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "settlement",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(read(monitor.GetMetrics()))
		})
	}

	m.registry.MustRegister(
		counter("slips_total", "Settlement attempts.",
			func(s lottery.SettlementMetrics) int64 { return s.TotalSettlements }),
		counter("settled_total", "Slips settled against a balance.",
			func(s lottery.SettlementMetrics) int64 { return s.SettledSlips }),
		counter("rejected_total", "Slips rejected by validation.",
			func(s lottery.SettlementMetrics) int64 { return s.RejectedSlips }),
		counter("failed_total", "Slips failed by infrastructure errors.",
			func(s lottery.SettlementMetrics) int64 { return s.FailedSlips }),
		counter("insufficient_funds_total", "Slips refused for insufficient balance.",
			func(s lottery.SettlementMetrics) int64 { return s.InsufficientFunds }),
		counter("practice_total", "Practice plays.",
			func(s lottery.SettlementMetrics) int64 { return s.PracticePlays }),
		counter("cost_cents_total", "Cost charged by settled slips, in cents.",
			func(s lottery.SettlementMetrics) int64 { return s.CostCents }),
		counter("payout_cents_total", "Payout credited by settled slips, in cents.",
			func(s lottery.SettlementMetrics) int64 { return s.PayoutCents }),
		counter("lock_failures_total", "Per-user lock acquisitions that failed.",
			func(s lottery.SettlementMetrics) int64 { return s.LockFailures }),
		counter("store_errors_total", "Balance store errors.",
			func(s lottery.SettlementMetrics) int64 { return s.StoreErrors }),
	)
}

// Handler exposes the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count, latency and in-flight requests by route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "/metrics" {
			c.Next()
			return
		}
		if path == "" {
			path = "unmatched"
		}

		m.httpInFlight.Inc()
		start := time.Now()

		c.Next()

		m.httpInFlight.Dec()
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequests.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
