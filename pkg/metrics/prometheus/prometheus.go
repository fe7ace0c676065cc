// Package prometheus is the Prometheus-backed implementation of
// pkg/metrics.Metrics, grounded on the teacher's pkg/metrics/prometheus
// collectors (promauto registration against a dedicated registry, counter
// and histogram vectors keyed by the same dimension names the RecordX
// methods take).
package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PSPReverse/libpspproxy/pkg/metrics"
)

// Collector is the Prometheus implementation of metrics.Metrics.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	chunkBytes       *prometheus.HistogramVec
	notifications    *prometheus.CounterVec
	irqChanges       *prometheus.CounterVec
	connected        prometheus.Gauge
}

// New builds a Collector registered against its own registry, so embedding
// callers never collide with a process-wide default registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	return &Collector{
		registry: reg,
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pspproxy_requests_total",
				Help: "Total number of request/response round trips by RRN and outcome.",
			},
			[]string{"rrn", "outcome"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "pspproxy_request_duration_milliseconds",
				Help: "Request/response round trip duration in milliseconds.",
				Buckets: []float64{
					0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000,
				},
			},
			[]string{"rrn"},
		),
		chunkBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "pspproxy_transfer_chunk_bytes",
				Help: "Distribution of chunk sizes moved by a generic Transfer.",
				Buckets: []float64{
					32, 64, 128, 196, 512, 1024, 4096,
				},
			},
			[]string{"direction"},
		),
		notifications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pspproxy_notifications_total",
				Help: "Total number of inbound notifications by kind.",
			},
			[]string{"kind"},
		),
		irqChanges: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pspproxy_irq_changes_total",
				Help: "Total number of IrqChange notifications by CCD.",
			},
			[]string{"ccd"},
		),
		connected: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "pspproxy_connected",
				Help: "1 if the engine is currently connected to the stub, 0 otherwise.",
			},
		),
	}
}

// Handler returns the HTTP handler to mount the metrics endpoint on.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordRequest(rrn string, duration time.Duration, stubRC uint32) {
	outcome := "ok"
	if stubRC != 0 {
		outcome = "rejected"
	}
	c.requestsTotal.WithLabelValues(rrn, outcome).Inc()
	c.requestDuration.WithLabelValues(rrn).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (c *Collector) RecordChunk(direction string, bytes int) {
	c.chunkBytes.WithLabelValues(direction).Observe(float64(bytes))
}

func (c *Collector) RecordNotification(kind string) {
	c.notifications.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordIRQChange(ccd uint32) {
	c.irqChanges.WithLabelValues(strconv.FormatUint(uint64(ccd), 10)).Inc()
}

func (c *Collector) SetConnected(connected bool) {
	if connected {
		c.connected.Set(1)
		return
	}
	c.connected.Set(0)
}

var _ metrics.Metrics = (*Collector)(nil)
