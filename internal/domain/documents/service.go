package documents

import (
	"context"
	"fmt"
	"time"

	"docseq/internal/core/apperror"
	"docseq/internal/core/entity"
	"docseq/internal/core/id"
	"docseq/internal/core/numerator"
	"docseq/internal/core/tx"
	"docseq/internal/domain"
	"docseq/internal/domain/audit"
	"docseq/internal/domain/pricing"
	"docseq/pkg/logger"
)

// CodeParentCancelled is returned when a document is created under a
// cancelled parent.
const CodeParentCancelled = "PARENT_DOCUMENT_CANCELLED"

// Metrics receives lifecycle outcomes. A nil Metrics is allowed.
type Metrics interface {
	IncDocumentCreated(docType string)
	ObserveCancellation(docType string, cascaded int)
}

// ServiceConfig configures the document service.
type ServiceConfig struct {
	Repo      Repository
	Numerator numerator.Generator
	TxManager tx.Manager
	Audit     audit.Recorder
	Metrics   Metrics
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service provides business operations for documents.
type Service struct {
	repo      Repository
	numerator numerator.Generator
	txManager tx.Manager
	audit     audit.Recorder
	metrics   Metrics
	now       func() time.Time
	hooks     *domain.HookRegistry[*Document]
}

// NewService creates a new document service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Audit == nil {
		cfg.Audit = audit.NopRecorder{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		repo:      cfg.Repo,
		numerator: cfg.Numerator,
		txManager: cfg.TxManager,
		audit:     cfg.Audit,
		metrics:   cfg.Metrics,
		now:       cfg.Clock,
		hooks:     domain.NewHookRegistry[*Document](),
	}
}

// Hooks returns the hook registry for registering callbacks.
// BeforeCreate hooks run before a number is allocated.
func (s *Service) Hooks() *domain.HookRegistry[*Document] {
	return s.hooks
}

// CreateRequest describes a new document.
type CreateRequest struct {
	DocumentType entity.DocumentType
	// IssueDate picks the numbering period. Zero means today.
	IssueDate time.Time
	ParentID  *id.ID
	Items     []pricing.LineInput
	// Issue creates the document already issued (paid for receipts).
	Issue bool
}

// CancelResult reports a cascade cancellation.
type CancelResult struct {
	Root *Document
	// Cancelled lists every document cancelled by this call, root first.
	Cancelled []*Document
	// CascadeCount is the number of descendants cancelled, not counting the root.
	CascadeCount int
}

// ComputeSummary calculates lines and totals without persisting anything.
func (s *Service) ComputeSummary(items []pricing.LineInput) ([]pricing.Line, pricing.Summary) {
	return pricing.Calculate(items)
}

// Create allocates a number, computes the lines and stores the document.
//
// The number is allocated before the document transaction starts and is not
// returned if that transaction fails: numbering may have gaps but a number
// is never issued twice.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Document, error) {
	if err := req.DocumentType.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	issueDate := req.IssueDate
	if issueDate.IsZero() {
		issueDate = now
	}

	// cheap check first so a doomed request does not burn a number
	if req.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if err := checkParent(parent); err != nil {
			return nil, err
		}
	}

	lines, summary := pricing.Calculate(req.Items)

	doc := &Document{
		BaseDocument: entity.NewBaseDocument(now),
		DocumentType: req.DocumentType,
		Status:       StatusDraft,
		ParentID:     req.ParentID,
		IssueDate:    issueDate,
		Lines:        lines,
		Summary:      summary,
	}
	if req.Issue {
		doc.Status = issuedStatus(req.DocumentType)
	}

	if err := s.hooks.Run(ctx, domain.BeforeCreate, doc); err != nil {
		return nil, err
	}

	alloc, err := s.numerator.Allocate(ctx, req.DocumentType, issueDate)
	if err != nil {
		return nil, fmt.Errorf("allocate number: %w", err)
	}
	doc.Number = alloc.Number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if doc.ParentID != nil {
			parent, err := s.repo.GetForUpdate(ctx, *doc.ParentID)
			if err != nil {
				return err
			}
			if err := checkParent(parent); err != nil {
				return err
			}
		}

		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.record(ctx, doc, audit.ActionCreate, map[string]any{
			"documentNumber": doc.Number,
			"status":         doc.Status,
			"total":          doc.Summary.Total.String(),
			"lines":          len(doc.Lines),
		})
	})
	if err != nil {
		logger.Warn(ctx, "document not saved, allocated number left unused",
			"document_type", doc.DocumentType,
			"number", doc.Number,
			"error", err)
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}
	if s.metrics != nil {
		s.metrics.IncDocumentCreated(string(doc.DocumentType))
	}

	logger.Info(ctx, "document created",
		"id", doc.ID,
		"document_type", doc.DocumentType,
		"number", doc.Number,
		"status", doc.Status)

	return doc, nil
}

// Get returns a document with its lines.
func (s *Service) Get(ctx context.Context, docID id.ID) (*Document, error) {
	return s.repo.GetByID(ctx, docID)
}

// List returns a page of documents.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error) {
	filter.Normalize()
	if filter.DocumentType != nil {
		if err := filter.DocumentType.Validate(); err != nil {
			return domain.ListResult[*Document]{}, err
		}
	}
	return s.repo.List(ctx, filter)
}

// UpdateDraft replaces the lines of a draft and recomputes its summary from
// scratch.
func (s *Service) UpdateDraft(ctx context.Context, docID id.ID, items []pricing.LineInput) (*Document, error) {
	var doc *Document
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if !doc.IsEditable() {
			return apperror.NewBusinessRule(apperror.CodeDocumentNotEditable,
				"Only draft documents can be edited").
				WithDetail("document_id", docID.String()).
				WithDetail("status", string(doc.Status))
		}

		oldTotal := doc.Summary.Total
		doc.Lines, doc.Summary = pricing.Calculate(items)
		doc.UpdatedAt = s.now().UTC()

		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.record(ctx, doc, audit.ActionUpdate, map[string]any{
			"total": map[string]any{"old": oldTotal.String(), "new": doc.Summary.Total.String()},
			"lines": len(doc.Lines),
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Issue moves a draft to issued, or straight to paid for receipts.
func (s *Service) Issue(ctx context.Context, docID id.ID) (*Document, error) {
	return s.transition(ctx, docID, func(d *Document) Status { return issuedStatus(d.DocumentType) }, audit.ActionIssue)
}

// MarkPaid records payment of an issued document.
func (s *Service) MarkPaid(ctx context.Context, docID id.ID) (*Document, error) {
	return s.transition(ctx, docID, func(*Document) Status { return StatusPaid }, audit.ActionPay)
}

func (s *Service) transition(ctx context.Context, docID id.ID, target func(*Document) Status, action audit.Action) (*Document, error) {
	var doc *Document
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}

		from, to := doc.Status, target(doc)
		if err := doc.CanTransition(to); err != nil {
			return err
		}
		doc.Status = to
		doc.UpdatedAt = s.now().UTC()

		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return s.record(ctx, doc, action, map[string]any{
			"status": map[string]any{"old": from, "new": to},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document status changed",
		"id", doc.ID,
		"number", doc.Number,
		"status", doc.Status)
	return doc, nil
}

// Cancel cancels a document and, in the same transaction, every document
// derived from it at any depth. Either all of them are cancelled or none.
// Cancelling an already cancelled document is a no-op.
func (s *Service) Cancel(ctx context.Context, docID id.ID) (*CancelResult, error) {
	var result *CancelResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		root, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		result = &CancelResult{Root: root}
		if root.Status == StatusCancelled {
			return nil
		}

		now := s.now().UTC()
		if err := s.cancelOne(ctx, root, nil, now); err != nil {
			return err
		}
		result.Cancelled = append(result.Cancelled, root)

		// breadth-first; visited guards against parent cycles in bad data
		visited := map[id.ID]bool{root.ID: true}
		queue := []id.ID{root.ID}
		for len(queue) > 0 {
			parentID := queue[0]
			queue = queue[1:]

			children, err := s.repo.FindChildren(ctx, parentID)
			if err != nil {
				return fmt.Errorf("find children of %s: %w", parentID, err)
			}
			for _, child := range children {
				if visited[child.ID] {
					continue
				}
				visited[child.ID] = true
				queue = append(queue, child.ID)

				if child.Status == StatusCancelled {
					continue
				}
				if err := s.cancelOne(ctx, child, &root.ID, now); err != nil {
					return err
				}
				result.Cancelled = append(result.Cancelled, child)
			}
		}

		result.CascadeCount = len(result.Cancelled) - 1
		return nil
	})
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, err
		}
		logger.Error(ctx, "cascade cancellation rolled back", "id", docID, "error", err)
		return nil, apperror.NewCascadeCancellationFailure(docID.String()).WithCause(err)
	}

	for _, doc := range result.Cancelled {
		if err := s.hooks.Run(ctx, domain.AfterCancel, doc); err != nil {
			logger.Warn(ctx, "after-cancel hook failed", "id", doc.ID, "error", err)
		}
	}
	if s.metrics != nil && len(result.Cancelled) > 0 {
		s.metrics.ObserveCancellation(string(result.Root.DocumentType), result.CascadeCount)
	}

	logger.Info(ctx, "document cancelled",
		"id", docID,
		"number", result.Root.Number,
		"cascade_count", result.CascadeCount)
	return result, nil
}

func (s *Service) cancelOne(ctx context.Context, doc *Document, cascadeFrom *id.ID, now time.Time) error {
	from := doc.Status
	if err := doc.CanTransition(StatusCancelled); err != nil {
		return err
	}
	doc.Status = StatusCancelled
	doc.CancelledAt = &now
	doc.UpdatedAt = now

	if err := s.repo.Update(ctx, doc); err != nil {
		return fmt.Errorf("cancel %s: %w", doc.Number, err)
	}

	changes := map[string]any{"status": map[string]any{"old": from, "new": StatusCancelled}}
	if cascadeFrom != nil {
		changes["cascadeFrom"] = cascadeFrom.String()
	}
	return s.record(ctx, doc, audit.ActionCancel, changes)
}

func (s *Service) record(ctx context.Context, doc *Document, action audit.Action, changes map[string]any) error {
	if err := s.audit.Record(ctx, audit.EntityDocument, doc.ID.String(), action, changes); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

func checkParent(parent *Document) error {
	if parent.Status == StatusCancelled {
		return apperror.NewBusinessRule(CodeParentCancelled,
			"Cannot create a document under a cancelled parent").
			WithDetail("parent_id", parent.ID.String()).
			WithDetail("parent_number", parent.Number)
	}
	return nil
}
