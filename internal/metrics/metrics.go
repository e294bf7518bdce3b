package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kutable"

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "messaging",
		Name:      "messages_sent_total",
		Help:      "Messages persisted through the send path.",
	})

	ConversationListFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "messaging",
		Name:      "conversation_list_failures_total",
		Help:      "Conversation listings that degraded to an empty result.",
	})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "deliveries_total",
		Help:      "Cross-channel notification attempts by channel and outcome.",
	}, []string{"channel", "outcome"})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "dropped_total",
		Help:      "Notification jobs dropped because the hand-off was full or unavailable.",
	})

	RealtimeSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "subscriptions",
		Help:      "Active per-booking realtime subscriptions.",
	})

	RealtimeEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "evictions_total",
		Help:      "Subscriptions evicted for falling behind the feed.",
	})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
