package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus metrics.
type Metrics struct {
	// Registry owns these metrics; the /metrics endpoint serves it.
	Registry *prometheus.Registry

	messagesSent         *prometheus.CounterVec
	documentsUploaded    *prometheus.CounterVec
	kycSubmissions       *prometheus.CounterVec
	notificationFailures prometheus.Counter
	bucketFallbacks      prometheus.Counter
}

// NewMetrics creates a dedicated registry. A private registry avoids
// "duplicate collector" panics when NewMetrics runs more than once
// (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		messagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nmhn_chat_messages_total",
				Help: "Chat messages persisted, by kind.",
			},
			[]string{"kind"},
		),
		documentsUploaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nmhn_kyc_documents_total",
				Help: "KYC documents uploaded, by doc type.",
			},
			[]string{"doc_type"},
		),
		kycSubmissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nmhn_kyc_submissions_total",
				Help: "KYC submission state transitions, by outcome.",
			},
			[]string{"outcome"},
		),
		notificationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nmhn_notification_failures_total",
				Help: "Best-effort notifications that failed to send.",
			},
		),
		bucketFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nmhn_storage_bucket_fallbacks_total",
				Help: "Uploads that landed on a fallback bucket.",
			},
		),
	}
}

func (m *Metrics) IncrMessage(kind string)      { m.messagesSent.WithLabelValues(kind).Inc() }
func (m *Metrics) IncrDocument(docType string)  { m.documentsUploaded.WithLabelValues(docType).Inc() }
func (m *Metrics) IncrSubmission(outcome string) { m.kycSubmissions.WithLabelValues(outcome).Inc() }
func (m *Metrics) IncrNotificationFailure()     { m.notificationFailures.Inc() }
func (m *Metrics) IncrBucketFallback()          { m.bucketFallbacks.Inc() }
