package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connected_clients",
		Help: "Number of currently registered clients",
	})

	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total commands processed by type",
	}, []string{"type"})

	EventProcessingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_event_processing_seconds",
		Help:    "Time to route each command type",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	RegistrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_registrations_total",
		Help: "Registration attempts by result",
	}, []string{"result"})

	BlockedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_blocked_messages_total",
		Help: "Messages rejected by the content filter",
	})

	RateLimitedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_rate_limited_messages_total",
		Help: "Commands dropped by the per-session rate limiter",
	})

	OutboundDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_outbound_dropped_total",
		Help: "Lines dropped because a recipient's outbound queue was full",
	})
)

func init() {
	prometheus.MustRegister(ConnectedClients)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(EventProcessingDuration)
	prometheus.MustRegister(RegistrationsTotal)
	prometheus.MustRegister(BlockedMessages)
	prometheus.MustRegister(RateLimitedMessages)
	prometheus.MustRegister(OutboundDropped)
}
