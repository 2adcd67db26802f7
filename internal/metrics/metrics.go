// Package metrics exposes Prometheus counters for alert delivery and the
// per-seller update feed.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DispatchesTotal counts Dispatch calls by result: "delivered", "empty" or "error".
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_dispatches_total",
			Help: "Total number of alert dispatches",
		},
		[]string{"result"},
	)

	// PushesTotal counts individual push attempts by outcome.
	PushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_pushes_total",
			Help: "Total number of web push attempts",
		},
		[]string{"outcome"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hermes_dispatch_duration_seconds",
			Help:    "Duration of a full dispatch fan-out in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	UpdatesEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hermes_updates_enqueued_total",
			Help: "Total number of pack updates enqueued",
		},
	)

	// PollsTotal counts dashboard polls; "served" polls armed a grace clear.
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_update_polls_total",
			Help: "Total number of update polls",
		},
		[]string{"result"},
	)

	// ClearsTotal counts grace clears by drain mode and outcome.
	ClearsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_update_clears_total",
			Help: "Total number of grace-delayed queue clears",
		},
		[]string{"mode", "outcome"},
	)
)

// Push outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeExpired = "expired"
)

func RecordDispatch(result string, started time.Time) {
	DispatchesTotal.WithLabelValues(result).Inc()
	DispatchDuration.Observe(time.Since(started).Seconds())
}

func RecordPush(outcome string) {
	PushesTotal.WithLabelValues(outcome).Inc()
}

func RecordEnqueue() {
	UpdatesEnqueuedTotal.Inc()
}

func RecordPoll(served bool) {
	if served {
		PollsTotal.WithLabelValues("served").Inc()
		return
	}
	PollsTotal.WithLabelValues("empty").Inc()
}

func RecordClear(mode string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ClearsTotal.WithLabelValues(mode, outcome).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
