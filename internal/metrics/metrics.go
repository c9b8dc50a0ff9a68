// Package metrics provides Prometheus instrumentation for the chat server.
// It exposes gauges for connection and presence counts, counters for message
// throughput, and histograms for fan-out and poll latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatserver_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// OnlineUsers tracks the current presence registry size, labeled by
	// channel kind ("push" or "poll").
	OnlineUsers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chatserver_online_users",
		Help: "Current number of online users in the presence registry",
	}, []string{"kind"})

	// MessagesTotal counts processed messages, labeled by type: "room",
	// "private", "typing", or "rejected".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatserver_messages_total",
		Help: "Total number of messages processed",
	}, []string{"type"})

	// BroadcastRecipients records how many push channels each room broadcast
	// reached.
	BroadcastRecipients = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatserver_broadcast_recipients",
		Help:    "Number of push recipients per room broadcast",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	})

	// PollDuration records poll request handling latency in seconds.
	PollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatserver_poll_duration_seconds",
		Help:    "Poll request handling latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		OnlineUsers,
		MessagesTotal,
		BroadcastRecipients,
		PollDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
