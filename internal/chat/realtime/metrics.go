package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "whisper",
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Number of active websocket connections.",
	})

	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whisper",
		Subsystem: "ws",
		Name:      "events_total",
		Help:      "Websocket events processed, by event name.",
	}, []string{"event"})

	metricMessagesRouted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whisper",
		Subsystem: "chat",
		Name:      "messages_routed_total",
		Help:      "Messages persisted and routed through the engine.",
	})

	metricEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whisper",
		Subsystem: "ws",
		Name:      "events_dropped_total",
		Help:      "Outbound events dropped due to backpressure.",
	})
)
