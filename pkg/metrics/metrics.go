package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amoylab/oscbridge/internal/common/config"
)

// Metrics holds the bridge collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec

	requestsSent  *prometheus.CounterVec
	responses     prometheus.Counter
	cancelled     prometheus.Counter
	malformed     prometheus.Counter
	pending       prometheus.Gauge
	epochs        prometheus.Counter
	disconnects   prometheus.Counter
	connected     prometheus.Gauge
	triggers      *prometheus.CounterVec
	catalogSize   prometheus.Gauge
	catalogLoads  *prometheus.CounterVec
	droppedEvents prometheus.Counter
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry:  r,
		namespace: ns,

		httpReqCnt: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"}),
		httpDur:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets}, []string{"method", "route", "status"}),

		requestsSent:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "mailbox_requests_total"}, []string{"mailbox", "expect_response"}),
		responses:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "mailbox_responses_total"}),
		cancelled:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "mailbox_requests_cancelled_total"}),
		malformed:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "mailbox_malformed_messages_total"}),
		pending:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "mailbox_pending_requests"}),
		epochs:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "mailbox_epochs_total"}),
		disconnects:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "mailbox_disconnects_total"}),
		connected:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "mailbox_connected"}),
		triggers:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "osc_triggers_total"}, []string{"outcome"}),
		catalogSize:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "catalog_commands"}),
		catalogLoads:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "catalog_loads_total"}, []string{"status"}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "osc_events_dropped_total"}),
	}
	r.MustRegister(m.httpReqCnt, m.httpDur)
	r.MustRegister(m.requestsSent, m.responses, m.cancelled, m.malformed, m.pending,
		m.epochs, m.disconnects, m.connected)
	r.MustRegister(m.triggers, m.catalogSize, m.catalogLoads, m.droppedEvents)
	return m
}

// RequestSent counts one outbound mailbox_send frame
func (m *Metrics) RequestSent(mailbox string, expectResponse bool) {
	if m == nil {
		return
	}
	m.requestsSent.WithLabelValues(mailbox, strconv.FormatBool(expectResponse)).Inc()
}

// ResponseMatched counts a response delivered to a pending request
func (m *Metrics) ResponseMatched() {
	if m == nil {
		return
	}
	m.responses.Inc()
}

// RequestsCancelled counts pending requests cancelled by an epoch transition
func (m *Metrics) RequestsCancelled(n int) {
	if m == nil {
		return
	}
	m.cancelled.Add(float64(n))
}

// MalformedMessage counts an inbound frame that failed to parse
func (m *Metrics) MalformedMessage() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

// SetPending records the size of the pending request table
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// EpochStarted marks a successful channel open
func (m *Metrics) EpochStarted() {
	if m == nil {
		return
	}
	m.epochs.Inc()
	m.connected.Set(1)
}

// EpochEnded marks the end of a connection epoch
func (m *Metrics) EpochEnded() {
	if m == nil {
		return
	}
	m.disconnects.Inc()
	m.connected.Set(0)
}

// Trigger counts one handled OSC event by outcome
func (m *Metrics) Trigger(outcome string) {
	if m == nil {
		return
	}
	m.triggers.WithLabelValues(outcome).Inc()
}

// CatalogLoaded records the result of one catalog population
func (m *Metrics) CatalogLoaded(size int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.catalogLoads.WithLabelValues("error").Inc()
		return
	}
	m.catalogLoads.WithLabelValues("ok").Inc()
	m.catalogSize.Set(float64(size))
}

// EventDropped counts an OSC event dropped because the router queue was full
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.droppedEvents.Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
