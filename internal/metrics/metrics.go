// Package metrics Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"wisefido-iv/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wisefido_iv"

// Metrics 输液监测指标（独立 registry）
type Metrics struct {
	registry *prometheus.Registry

	evaluations    *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	sinkFailures   *prometheus.CounterVec
	activeSessions prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewMetrics 创建并注册指标
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Bed evaluations run, by trigger (tick, sweep, manual).",
		}, []string{"trigger"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert records dispatched, by category and severity.",
		}, []string{"category", "severity"}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Delivery failures, by channel.",
		}, []string{"channel"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Beds with an active monitoring session.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed, by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.evaluations,
		m.alerts,
		m.sinkFailures,
		m.activeSessions,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// EvaluationRan 一次床位评估
func (m *Metrics) EvaluationRan(trigger string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(trigger).Inc()
}

// ActiveSessions 活动会话数
func (m *Metrics) ActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// AlertDispatched 一条报警记录已投递
func (m *Metrics) AlertDispatched(category models.Category, severity models.Severity) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(string(category), string(severity)).Inc()
}

// SinkFailed 通道投递失败
func (m *Metrics) SinkFailed(channel string) {
	if m == nil {
		return
	}
	m.sinkFailures.WithLabelValues(channel).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler 记录请求数与耗时
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}
