package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwery_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qwery_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// Agent metrics
	AgentRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwery_agent_runs_total",
			Help: "Agent runs by outcome",
		},
		[]string{"outcome"}, // "answered", "step_limit", "failed"
	)

	AgentToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwery_agent_tool_calls_total",
			Help: "Agent tool invocations",
		},
		[]string{"tool", "outcome"},
	)

	TitleFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qwery_title_fallbacks_total",
			Help: "Conversation titles that fell back to the default",
		},
	)

	// Datasource metrics
	DatasourceQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwery_datasource_queries_total",
			Help: "Queries executed against datasources",
		},
		[]string{"provider", "outcome"},
	)

	DatasourceQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qwery_datasource_query_duration_seconds",
			Help:    "Datasource query duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// Message persistence
	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwery_messages_persisted_total",
			Help: "Messages written to the store",
		},
		[]string{"path"}, // "sync" or "queue"
	)
)

// Outcome maps an error onto a metric label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
