package web

import (
	"strconv"
	"time"

	"github.com/picklepals/picklepals/internal/auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the request counters exported on /metrics.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the request metrics and the active session gauge on reg.
func NewMetrics(reg prometheus.Registerer, sessions *auth.SessionRegistry) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "picklepals",
			Name:      "requests_total",
			Help:      "API requests by endpoint and response status.",
		}, []string{"endpoint", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "picklepals",
			Name:      "request_duration_seconds",
			Help:      "API request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "picklepals",
		Name:      "active_sessions",
		Help:      "Access tokens currently held in memory, expired ones included.",
	}, func() float64 {
		return float64(sessions.Len())
	})
	return m
}

func (m *Metrics) observe(endpoint string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
