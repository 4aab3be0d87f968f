package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Path is where HTTP functions serve their metrics.
const Path = "/metrics"

var (
	AuditCyclesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_cycles_completed_total",
			Help: "Total number of extraction-audit cycles that reached a verdict",
		},
		[]string{"schema", "valid"},
	)

	AuditCyclesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_cycles_failed_total",
			Help: "Total number of extraction-audit cycles aborted by an extractor error",
		},
		[]string{"schema"},
	)

	ExtractionAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_cycle_extraction_attempts",
			Help:    "Number of extractor invocations per audit cycle",
			Buckets: []float64{1, 2},
		},
		[]string{"schema"},
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "extraction_duration_seconds",
			Help: "Latency of a single extractor invocation",
		},
		[]string{"provider"},
	)

	StageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_stage_transitions_total",
			Help: "Total number of reviewer actions applied to requests",
		},
		[]string{"stage", "action"},
	)

	StageActionsDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_stage_actions_denied_total",
			Help: "Total number of reviewer actions refused by a guard",
		},
		[]string{"reason"},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Push sends the default registry to a Pushgateway under job. Event-driven
// functions have no scrape endpoint, so they push after each event.
func Push(ctx context.Context, gatewayURL, job string) error {
	return push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx)
}
