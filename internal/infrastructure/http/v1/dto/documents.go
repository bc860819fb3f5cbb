package dto

import (
	"time"

	"docseq/internal/core/entity"
	"docseq/internal/domain/documents"
)

// CreateDocumentRequest creates a numbered document.
type CreateDocumentRequest struct {
	DocumentType     string            `json:"documentType" binding:"required"`
	IssueDate        string            `json:"issueDate"`
	ParentDocumentID *string           `json:"parentDocumentId"`
	Items            []LineItemRequest `json:"items"`
	Issue            bool              `json:"issue"`
}

// ToCreateRequest validates identifiers and dates.
func (r CreateDocumentRequest) ToCreateRequest() (documents.CreateRequest, error) {
	docType, err := entity.ParseDocumentType(r.DocumentType)
	if err != nil {
		return documents.CreateRequest{}, err
	}

	issueDate, err := ParseDate("issueDate", r.IssueDate)
	if err != nil {
		return documents.CreateRequest{}, err
	}

	req := documents.CreateRequest{
		DocumentType: docType,
		IssueDate:    issueDate,
		Items:        ToInputs(r.Items),
		Issue:        r.Issue,
	}

	if r.ParentDocumentID != nil && *r.ParentDocumentID != "" {
		parentID, err := ParseID("parentDocumentId", *r.ParentDocumentID)
		if err != nil {
			return documents.CreateRequest{}, err
		}
		req.ParentID = &parentID
	}
	return req, nil
}

// UpdateItemsRequest replaces the lines of a draft.
type UpdateItemsRequest struct {
	Items []LineItemRequest `json:"items"`
}

// ListDocumentsQuery holds list filters from the query string.
type ListDocumentsQuery struct {
	DocumentType string `form:"documentType"`
	Status       string `form:"status"`
	ParentID     string `form:"parentDocumentId"`
	OrderBy      string `form:"orderBy"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset       int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the query to a repository filter.
func (q ListDocumentsQuery) ToFilter() (documents.ListFilter, error) {
	var f documents.ListFilter
	f.OrderBy = q.OrderBy
	f.Limit = q.Limit
	f.Offset = q.Offset

	if q.DocumentType != "" {
		docType, err := entity.ParseDocumentType(q.DocumentType)
		if err != nil {
			return f, err
		}
		f.DocumentType = &docType
	}
	if q.Status != "" {
		status, err := documents.ParseStatus(q.Status)
		if err != nil {
			return f, err
		}
		f.Status = &status
	}
	if q.ParentID != "" {
		parentID, err := ParseID("parentDocumentId", q.ParentID)
		if err != nil {
			return f, err
		}
		f.ParentID = &parentID
	}
	return f, nil
}

// DocumentResponse is a document header with optional lines.
type DocumentResponse struct {
	ID               string          `json:"id"`
	DocumentType     string          `json:"documentType"`
	DocumentNumber   string          `json:"documentNumber"`
	Status           string          `json:"status"`
	ParentDocumentID *string         `json:"parentDocumentId"`
	IssueDate        string          `json:"issueDate"`
	CancelledAt      *time.Time      `json:"cancelledAt"`
	Items            []LineResponse  `json:"items,omitempty"`
	Summary          SummaryResponse `json:"summary"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// FromDocument converts a document. Lines are included when loaded.
func FromDocument(d *documents.Document) DocumentResponse {
	resp := DocumentResponse{
		ID:             d.ID.String(),
		DocumentType:   string(d.DocumentType),
		DocumentNumber: d.Number,
		Status:         string(d.Status),
		IssueDate:      FormatDate(d.IssueDate),
		CancelledAt:    d.CancelledAt,
		Summary:        FromSummary(d.Summary),
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.ParentID != nil {
		parent := d.ParentID.String()
		resp.ParentDocumentID = &parent
	}
	if len(d.Lines) > 0 {
		resp.Items = FromLines(d.Lines)
	}
	return resp
}

// FromDocuments converts a list of documents.
func FromDocuments(docs []*documents.Document) []DocumentResponse {
	out := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = FromDocument(d)
	}
	return out
}

// CancelResponse reports a cascade cancellation.
type CancelResponse struct {
	Document     DocumentResponse `json:"document"`
	CancelledIDs []string         `json:"cancelledIds"`
	CascadeCount int              `json:"cascadeCount"`
}

// FromCancelResult converts a cancellation result.
func FromCancelResult(r *documents.CancelResult) CancelResponse {
	ids := make([]string, len(r.Cancelled))
	for i, d := range r.Cancelled {
		ids[i] = d.ID.String()
	}
	return CancelResponse{
		Document:     FromDocument(r.Root),
		CancelledIDs: ids,
		CascadeCount: r.CascadeCount,
	}
}
