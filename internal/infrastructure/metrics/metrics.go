// Package metrics exposes Prometheus metrics for numbering and document
// lifecycle operations.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"docseq/internal/domain"
	"docseq/internal/domain/documents"
)

// Metrics implements the allocator and document service metric hooks.
type Metrics struct {
	allocations        *prometheus.CounterVec
	allocationAttempts *prometheus.HistogramVec
	conflicts          *prometheus.CounterVec
	created            *prometheus.CounterVec
	cancellations      *prometheus.CounterVec
	cascaded           *prometheus.CounterVec
	cancelled          *prometheus.CounterVec
}

// New creates the collectors and registers them with registerer
// (prometheus.DefaultRegisterer when nil).
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docseq_numbers_allocated_total",
			Help: "Document numbers issued by document type.",
		}, []string{"document_type"}),
		allocationAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docseq_allocation_attempts",
			Help:    "Optimistic attempts needed per issued number.",
			Buckets: []float64{1, 2, 3, 5, 8, 13},
		}, []string{"document_type"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docseq_allocation_conflicts_total",
			Help: "Allocations abandoned after exhausting retries.",
		}, []string{"document_type"}),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docseq_documents_created_total",
			Help: "Documents persisted by document type.",
		}, []string{"document_type"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docseq_cancellations_total",
			Help: "Cancellation requests that cancelled a root document.",
		}, []string{"document_type"}),
		cascaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docseq_cascade_cancelled_documents_total",
			Help: "Descendant documents cancelled together with their root.",
		}, []string{"document_type"}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docseq_documents_cancelled_total",
			Help: "Cancelled documents by their own document type, roots and descendants alike.",
		}, []string{"document_type"}),
	}

	registerer.MustRegister(
		m.allocations,
		m.allocationAttempts,
		m.conflicts,
		m.created,
		m.cancellations,
		m.cascaded,
		m.cancelled,
	)
	return m
}

// ObserveAllocation records an issued number.
func (m *Metrics) ObserveAllocation(docType string, attempts int) {
	m.allocations.WithLabelValues(docType).Inc()
	m.allocationAttempts.WithLabelValues(docType).Observe(float64(attempts))
}

// IncAllocationConflict records an allocation that gave up.
func (m *Metrics) IncAllocationConflict(docType string) {
	m.conflicts.WithLabelValues(docType).Inc()
}

// IncDocumentCreated records a persisted document.
func (m *Metrics) IncDocumentCreated(docType string) {
	m.created.WithLabelValues(docType).Inc()
}

// ObserveCancellation records a cancelled root and its cascade size.
func (m *Metrics) ObserveCancellation(docType string, cascaded int) {
	m.cancellations.WithLabelValues(docType).Inc()
	m.cascaded.WithLabelValues(docType).Add(float64(cascaded))
}

// RegisterDocumentHooks counts every document a cancellation touched under its
// own type. ObserveCancellation only sees the root.
func (m *Metrics) RegisterDocumentHooks(hooks *domain.HookRegistry[*documents.Document]) {
	hooks.On(domain.AfterCancel, func(_ context.Context, doc *documents.Document) error {
		m.cancelled.WithLabelValues(string(doc.DocumentType)).Inc()
		return nil
	})
}
