package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	RateLimitHits    *prometheus.CounterVec

	// Challenge metrics
	ChallengeSubmissions *prometheus.CounterVec
	ChallengeStakes      prometheus.Histogram
	NotificationFailures prometheus.Counter
	PaymentClaims        *prometheus.CounterVec

	// WebSocket metrics
	WebSocketConnections prometheus.Gauge
	NotificationsPushed  prometheus.Counter
}

// NewMetrics creates a new metrics instance on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new metrics instance with custom registry
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challenge_engine_requests_total",
				Help: "Total number of RPC requests",
			},
			[]string{"method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "challenge_engine_request_duration_seconds",
				Help:    "RPC duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "challenge_engine_requests_in_flight",
				Help: "Number of requests currently being processed",
			},
		),
		RateLimitHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challenge_engine_rate_limit_hits_total",
				Help: "Total number of rejected rate limited requests",
			},
			[]string{"method"},
		),
		ChallengeSubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challenge_engine_submissions_total",
				Help: "Challenge submissions by outcome",
			},
			[]string{"result"},
		),
		ChallengeStakes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "challenge_engine_stake_sats",
				Help:    "Stake per participant of created challenges",
				Buckets: []float64{0, 100, 500, 1000, 5000, 10000, 50000, 100000},
			},
		),
		NotificationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "challenge_engine_notification_failures_total",
				Help: "Notifications that could not be stored",
			},
		),
		PaymentClaims: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challenge_engine_payment_claims_total",
				Help: "Payment claims by outcome",
			},
			[]string{"result"},
		),
		WebSocketConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "challenge_engine_websocket_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		NotificationsPushed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "challenge_engine_notifications_pushed_total",
				Help: "Notifications delivered to live WebSocket clients",
			},
		),
	}

	registry.MustRegister(
		metrics.RequestsTotal,
		metrics.RequestDuration,
		metrics.RequestsInFlight,
		metrics.RateLimitHits,
		metrics.ChallengeSubmissions,
		metrics.ChallengeStakes,
		metrics.NotificationFailures,
		metrics.PaymentClaims,
		metrics.WebSocketConnections,
		metrics.NotificationsPushed,
	)

	return metrics
}

// RecordRequest records a request metric
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) RecordRateLimitHit(method string) {
	m.RateLimitHits.WithLabelValues(method).Inc()
}

// ChallengeSubmitted records a workflow outcome
func (m *Metrics) ChallengeSubmitted(result string, stakeSats int64) {
	m.ChallengeSubmissions.WithLabelValues(result).Inc()
	if result == "created" {
		m.ChallengeStakes.Observe(float64(stakeSats))
	}
}

func (m *Metrics) NotificationFailed() {
	m.NotificationFailures.Inc()
}

func (m *Metrics) PaymentClaimed(result string) {
	m.PaymentClaims.WithLabelValues(result).Inc()
}

func (m *Metrics) SetWebSocketConnections(count int) {
	m.WebSocketConnections.Set(float64(count))
}

func (m *Metrics) RecordNotificationsPushed(count int) {
	m.NotificationsPushed.Add(float64(count))
}
