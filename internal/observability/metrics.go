// Package observability holds Prometheus collectors and OpenTelemetry setup.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClaimsSubmitted counts claims created through the API.
	ClaimsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fra_claims_submitted_total",
		Help: "Total number of claims submitted",
	}, []string{"claim_type"})

	// ClaimStatusChanges counts status updates by target status.
	ClaimStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fra_claim_status_changes_total",
		Help: "Total number of claim status updates by resulting status",
	}, []string{"status"})

	// AIExtractions counts OCR extraction attempts by provider and outcome.
	AIExtractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fra_ai_extractions_total",
		Help: "Total OCR extraction attempts by provider and outcome",
	}, []string{"provider", "outcome"})

	// AIExtractionLatency records upstream OCR latency.
	AIExtractionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fra_ai_extraction_latency_seconds",
		Help:    "Latency of upstream OCR calls in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"provider"})

	// EmailsSent counts status emails by outcome.
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fra_emails_sent_total",
		Help: "Total status notification emails by outcome",
	}, []string{"outcome"})

	// ExportsGenerated counts claim exports by format.
	ExportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fra_exports_generated_total",
		Help: "Total claim exports by format",
	}, []string{"format"})

	// DocumentsStored counts stored objects by bucket.
	DocumentsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fra_documents_stored_total",
		Help: "Total objects written to storage by bucket",
	}, []string{"bucket"})

	// WebSocketBackpressureDrops counts messages dropped for slow websocket clients.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fra_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)
