package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "duel"

var (
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "Connections currently registered.",
	})

	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms",
		Help:      "Rooms currently alive in the store.",
	})

	RoundsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_resolved_total",
		Help:      "Resolved rounds by ruleset and outcome (win|draw).",
	}, []string{"ruleset", "outcome"})

	MatchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_finished_total",
		Help:      "Matches that reached a terminal condition.",
	}, []string{"ruleset"})

	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejected_requests_total",
		Help:      "Client requests rejected, by error code.",
	}, []string{"code"})

	DroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_messages_total",
		Help:      "Outbound messages dropped because the connection was gone or saturated.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
