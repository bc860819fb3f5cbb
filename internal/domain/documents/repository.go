package documents

import (
	"context"

	"docseq/internal/core/entity"
	"docseq/internal/core/id"
	"docseq/internal/domain"
	"docseq/internal/domain/pricing"
)

// Repository persists documents. Every method honours the transaction
// carried in ctx.
type Repository interface {
	// Create inserts the document header. DUPLICATE_ENTRY if the number is taken.
	Create(ctx context.Context, doc *Document) error

	// GetByID returns the document with its lines. NOT_FOUND if absent.
	GetByID(ctx context.Context, docID id.ID) (*Document, error)

	// GetForUpdate returns the document header and row-locks it.
	GetForUpdate(ctx context.Context, docID id.ID) (*Document, error)

	// FindChildren returns and row-locks documents whose parent is parentID.
	FindChildren(ctx context.Context, parentID id.ID) ([]*Document, error)

	// Update writes status, summary and timestamps if doc.Version is still
	// current, then increments doc.Version. CONCURRENT_MODIFICATION otherwise.
	Update(ctx context.Context, doc *Document) error

	// SaveLines replaces all lines of a document.
	SaveLines(ctx context.Context, docID id.ID, lines []pricing.Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error)
}

// ListFilter for filtering documents.
type ListFilter struct {
	domain.ListFilter

	DocumentType *entity.DocumentType
	Status       *Status
	ParentID     *id.ID
}
