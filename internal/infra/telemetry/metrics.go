package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"toolgate/internal/domain"
)

// PrometheusMetrics implements domain.Metrics.
type PrometheusMetrics struct {
	routeDuration    *prometheus.HistogramVec
	toolCallDuration *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	offloads         *prometheus.CounterVec
	indexRebuilds    *prometheus.CounterVec
	indexedTools     prometheus.Gauge
	auditQueueDepth  prometheus.Gauge
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		routeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_route_duration_seconds",
				Help:    "Duration of semantic routing per turn in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"status"},
		),
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_tool_call_duration_seconds",
				Help:    "Duration of governed tool calls in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"tool", "outcome"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_cache_hits_total",
				Help: "Total tool calls served from the result cache",
			},
			[]string{"tool"},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_rate_limited_total",
				Help: "Total tool calls rejected by the sliding-window rate limit",
			},
			[]string{"tool"},
		),
		offloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_offloads_total",
				Help: "Total oversized tool results externalized to storage",
			},
			[]string{"format"},
		),
		indexRebuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_index_rebuilds_total",
				Help: "Total capability index rebuild attempts",
			},
			[]string{"status"},
		),
		indexedTools: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_indexed_tools",
				Help: "Number of tools in the active index snapshot",
			},
		),
		auditQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_audit_queue_depth",
				Help: "Completion writes waiting in the audit queue",
			},
		),
	}
}

func (p *PrometheusMetrics) ObserveRoute(status domain.RouteStatus, duration time.Duration) {
	p.routeDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveToolCall(tool string, outcome domain.CallOutcome, duration time.Duration) {
	p.toolCallDuration.WithLabelValues(tool, string(outcome)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) RecordCacheHit(tool string) {
	p.cacheHits.WithLabelValues(tool).Inc()
}

func (p *PrometheusMetrics) RecordRateLimited(tool string) {
	p.rateLimited.WithLabelValues(tool).Inc()
}

func (p *PrometheusMetrics) RecordOffload(format string) {
	p.offloads.WithLabelValues(format).Inc()
}

func (p *PrometheusMetrics) RecordIndexRebuild(success bool, tools int) {
	status := "success"
	if !success {
		status = "error"
	}
	p.indexRebuilds.WithLabelValues(status).Inc()
	if success {
		p.indexedTools.Set(float64(tools))
	}
}

func (p *PrometheusMetrics) SetAuditQueueDepth(depth int) {
	p.auditQueueDepth.Set(float64(depth))
}
