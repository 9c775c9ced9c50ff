package observability

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

const namespace = "agentorg"

// Metrics holds the Prometheus collectors fed by the lifecycle hooks.
type Metrics struct {
	registry *prometheus.Registry

	Turns           *prometheus.CounterVec
	TurnDuration    prometheus.Histogram
	NodeVisits      *prometheus.CounterVec
	HandlerCalls    *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec
	Classifications *prometheus.CounterVec
}

// NewMetrics creates the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Turns processed, by outcome.",
		}, []string{"outcome"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of turns, committed or not.",
			Buckets:   prometheus.DefBuckets,
		}),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Number of times a node was entered.",
		}, []string{"node_id"}),
		HandlerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_calls_total",
			Help:      "Handler executions, by handler, delegation depth and outcome.",
		}, []string{"handler", "depth", "outcome"}),
		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Duration of handler executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classifier selections, by purpose and whether the fallback was used.",
		}, []string{"purpose", "fallback"}),
	}
	m.registry.MustRegister(m.Turns, m.TurnDuration, m.NodeVisits, m.HandlerCalls, m.HandlerDuration, m.Classifications)
	return m
}

// Registry exposes the underlying registry, e.g. to add process collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns the lifecycle hooks that record the metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.NodeID).Inc()
		},
		OnHandlerReturn: func(ctx context.Context, e *domain.HandlerEvent) {
			m.HandlerCalls.WithLabelValues(e.Handler, strconv.Itoa(e.Depth), outcome(e.IsError)).Inc()
			m.HandlerDuration.WithLabelValues(e.Handler).Observe(e.Duration.Seconds())
		},
		OnClassification: func(ctx context.Context, e *domain.ClassificationEvent) {
			m.Classifications.WithLabelValues(e.Purpose, strconv.FormatBool(e.Fallback)).Inc()
		},
		OnTurn: func(ctx context.Context, e *domain.TurnEvent) {
			m.Turns.WithLabelValues(outcome(e.Err != nil)).Inc()
			m.TurnDuration.Observe(e.Duration.Seconds())
		},
	}
}

func outcome(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}
