// Package metrics exposes Prometheus counters for the conversation endpoint and the widget bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat outcomes, used as the "outcome" label of ChatRequestsTotal.
const (
	OutcomeOK          = "ok"
	OutcomeBadRequest  = "bad_request"
	OutcomeAIError     = "ai_error"
	OutcomeUnavailable = "unavailable"
	OutcomeServerError = "server_error"
)

var (
	// ChatRequestsTotal counts /chat requests by outcome.
	ChatRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careline_chat_requests_total",
		Help: "Total number of chat requests, by outcome.",
	}, []string{"outcome"})

	// CrisisDetectionsTotal counts user messages flagged as crisis.
	CrisisDetectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "careline_crisis_detections_total",
		Help: "Total number of user messages flagged with crisis indicators.",
	})

	// ResetsTotal counts conversation resets.
	ResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "careline_resets_total",
		Help: "Total number of conversation resets.",
	})

	// WidgetConnections tracks open widget websocket connections.
	WidgetConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "careline_widget_connections",
		Help: "Number of open widget websocket connections.",
	})
)

// ObserveChat records one /chat outcome.
func ObserveChat(outcome string) {
	ChatRequestsTotal.WithLabelValues(outcome).Inc()
}
