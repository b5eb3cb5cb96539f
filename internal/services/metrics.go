package services

import (
	"campusbot/internal/providers"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Chat metrics
	ChatRequests       prometheus.Counter
	ChatRequestLatency prometheus.Histogram
	ChatErrors         *prometheus.CounterVec

	// Provider metrics
	ProviderAttempts *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	// Knowledge base
	KnowledgeDocuments prometheus.Gauge
}

// NewMetrics registers the application metrics with reg. Pass
// prometheus.DefaultRegisterer in the server and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChatRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "campusbot_chat_requests_total",
			Help: "Total number of chat requests processed",
		}),

		// up to 2 minutes for LLM responses
		ChatRequestLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "campusbot_chat_request_duration_seconds",
			Help:    "Chat request latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		ChatErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campusbot_chat_errors_total",
			Help: "Total number of chat errors by type",
		}, []string{"error_type"}),

		ProviderAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campusbot_provider_attempts_total",
			Help: "Provider attempts by provider and outcome",
		}, []string{"provider", "outcome"}),

		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusbot_provider_attempt_duration_seconds",
			Help:    "Latency of single provider attempts in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),

		KnowledgeDocuments: factory.NewGauge(prometheus.GaugeOpts{
			Name: "campusbot_knowledge_documents",
			Help: "Number of documents loaded in the knowledge base",
		}),
	}
}

// RecordChatRequest records a chat request with its latency
func (m *Metrics) RecordChatRequest(latency time.Duration) {
	if m == nil {
		return
	}
	m.ChatRequests.Inc()
	m.ChatRequestLatency.Observe(latency.Seconds())
}

// RecordChatError records a chat error by type
func (m *Metrics) RecordChatError(errorType string) {
	if m == nil {
		return
	}
	m.ChatErrors.WithLabelValues(errorType).Inc()
}

// RecordAttempt records one provider attempt. outcome is "success" or an
// UpstreamError kind.
func (m *Metrics) RecordAttempt(provider providers.Kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProviderAttempts.WithLabelValues(string(provider), outcome).Inc()
	m.ProviderLatency.WithLabelValues(string(provider)).Observe(elapsed.Seconds())
}

// SetKnowledgeDocuments updates the loaded document gauge
func (m *Metrics) SetKnowledgeDocuments(n int) {
	if m == nil {
		return
	}
	m.KnowledgeDocuments.Set(float64(n))
}
