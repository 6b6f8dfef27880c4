package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connected_clients",
		Help: "Number of currently registered users",
	})

	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total messages processed by type",
	}, []string{"type"})

	EventProcessingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_event_processing_seconds",
		Help:    "Time to process each event type",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	SendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_send_failures_total",
		Help: "Lines that could not be queued for a recipient",
	})

	RegistrationRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_registration_rejections_total",
		Help: "Rejected username attempts by reason",
	}, []string{"reason"})

	AcceptedConnections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_accepted_connections_total",
		Help: "Accepted connections by transport",
	}, []string{"transport"})
)

func init() {
	prometheus.MustRegister(ConnectedClients)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(EventProcessingDuration)
	prometheus.MustRegister(SendFailures)
	prometheus.MustRegister(RegistrationRejections)
	prometheus.MustRegister(AcceptedConnections)
}
