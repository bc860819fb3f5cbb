// Package documents provides the commercial document lifecycle: numbering,
// calculation, status transitions and cascade cancellation.
package documents

import (
	"time"

	"docseq/internal/core/apperror"
	"docseq/internal/core/entity"
	"docseq/internal/core/id"
	"docseq/internal/domain/pricing"
)

// Status is the lifecycle state of a document.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusIssued    Status = "issued"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates s.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDraft, StatusIssued, StatusPaid, StatusCancelled:
		return st, nil
	}
	return "", apperror.NewValidation("unknown document status").
		WithDetail("field", "status").
		WithDetail("value", s)
}

// Document is a numbered commercial document. It owns its lines and summary
// and refers to its parent by id only.
type Document struct {
	entity.BaseDocument

	DocumentType entity.DocumentType `json:"documentType"`
	Number       string              `json:"documentNumber"`
	Status       Status              `json:"status"`
	ParentID     *id.ID              `json:"parentDocumentId,omitempty"`
	IssueDate    time.Time           `json:"issueDate"`
	CancelledAt  *time.Time          `json:"cancelledAt,omitempty"`

	Lines   []pricing.Line  `json:"-"`
	Summary pricing.Summary `json:"-"`
}

// CanTransition checks the status state machine:
//
//	draft  -> issued -> paid
//	draft  -> paid              (receipts only, paid on issue)
//	any    -> cancelled         (except cancelled itself)
func (d *Document) CanTransition(to Status) error {
	from := d.Status
	allowed := false

	switch to {
	case StatusIssued:
		allowed = from == StatusDraft && !d.DocumentType.IsReceipt()
	case StatusPaid:
		if d.DocumentType.IsReceipt() {
			allowed = from == StatusDraft
		} else {
			allowed = from == StatusIssued
		}
	case StatusCancelled:
		allowed = from != StatusCancelled
	}

	if !allowed {
		return apperror.NewInvalidTransition(string(from), string(to)).
			WithDetail("document_id", d.ID.String()).
			WithDetail("document_type", string(d.DocumentType))
	}
	return nil
}

// IsEditable reports whether lines may still change.
func (d *Document) IsEditable() bool {
	return d.Status == StatusDraft
}

// issuedStatus is the status a document of docType takes when issued.
func issuedStatus(docType entity.DocumentType) Status {
	if docType.IsReceipt() {
		return StatusPaid
	}
	return StatusIssued
}
