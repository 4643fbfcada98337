package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jetsflare",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	usersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jetsflare",
			Name:      "users_created_total",
			Help:      "Registered users.",
		},
	)

	paymentsConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jetsflare",
			Name:      "payments_confirmed_total",
			Help:      "Payments settled through webhook or invoice lookup.",
		},
	)

	webhooksRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jetsflare",
			Name:      "webhooks_rejected_total",
			Help:      "Payment webhooks rejected for a bad signature.",
		},
	)

	trafficBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jetsflare",
			Name:      "traffic_bytes_total",
			Help:      "Traffic bytes ingested from nodes by direction.",
		},
		[]string{"direction"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, usersCreated, paymentsConfirmed, webhooksRejected, trafficBytes)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncUserCreated() {
	usersCreated.Inc()
}

func IncPaymentConfirmed() {
	paymentsConfirmed.Inc()
}

func IncWebhookRejected() {
	webhooksRejected.Inc()
}

func AddTraffic(uplink, downlink int64) {
	trafficBytes.WithLabelValues("uplink").Add(float64(uplink))
	trafficBytes.WithLabelValues("downlink").Add(float64(downlink))
}
