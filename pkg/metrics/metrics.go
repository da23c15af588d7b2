package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/amoylab/boom/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Report results
const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	registry    *prometheus.Registry
	httpReqCnt  *prometheus.CounterVec
	httpDur     *prometheus.HistogramVec
	httpInfl    *prometheus.GaugeVec
	connections *prometheus.GaugeVec
	reportCnt   *prometheus.CounterVec
	reportDur   *prometheus.HistogramVec
	storeErrCnt *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	connections := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "socket_connections"}, []string{"namespace"})
	reportCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "app_reports_total"}, []string{"kind", "result"})
	reportDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "app_report_duration_seconds", Buckets: cfg.Buckets}, []string{"kind"})
	storeErrCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "session_store_errors_total"}, []string{"operation"})
	r.MustRegister(connections, reportCnt, reportDur, storeErrCnt)

	return &Metrics{
		registry:    r,
		httpReqCnt:  httpReqCnt,
		httpDur:     httpDur,
		httpInfl:    httpInfl,
		connections: connections,
		reportCnt:   reportCnt,
		reportDur:   reportDur,
		storeErrCnt: storeErrCnt,
	}
}

// SocketConnected and SocketDisconnected track live sockets per namespace.
// All recording methods are safe on a nil receiver.
func (m *Metrics) SocketConnected(nsp string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(nsp).Inc()
}

func (m *Metrics) SocketDisconnected(nsp string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(nsp).Dec()
}

// ReportDone records one outbound call to the application
func (m *Metrics) ReportDone(kind string, since time.Time, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.reportCnt.WithLabelValues(kind, result).Inc()
	m.reportDur.WithLabelValues(kind).Observe(time.Since(since).Seconds())
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrCnt.WithLabelValues(op).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
