package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"docseq/internal/core/id"
	"docseq/internal/domain"
	"docseq/internal/domain/audit"
	"docseq/internal/domain/documents"
	"docseq/internal/domain/pricing"
	"docseq/internal/infrastructure/http/v1/dto"
	"docseq/internal/infrastructure/storage/postgres"
)

// DefaultHistoryLimit bounds the audit entries returned per document.
const DefaultHistoryLimit = 100

// DocumentService is the part of documents.Service used over HTTP.
type DocumentService interface {
	Create(ctx context.Context, req documents.CreateRequest) (*documents.Document, error)
	Get(ctx context.Context, docID id.ID) (*documents.Document, error)
	List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*documents.Document], error)
	UpdateDraft(ctx context.Context, docID id.ID, items []pricing.LineInput) (*documents.Document, error)
	Issue(ctx context.Context, docID id.ID) (*documents.Document, error)
	MarkPaid(ctx context.Context, docID id.ID) (*documents.Document, error)
	Cancel(ctx context.Context, docID id.ID) (*documents.CancelResult, error)
}

// AuditHistory reads the audit trail of an entity.
type AuditHistory interface {
	History(ctx context.Context, entityType, entityID string, limit int) ([]postgres.AuditEntry, error)
}

// DocumentHandler exposes the document lifecycle.
type DocumentHandler struct {
	*BaseHandler
	service DocumentService
	history AuditHistory
}

// NewDocumentHandler creates a document handler. history may be nil.
func NewDocumentHandler(base *BaseHandler, service DocumentService, history AuditHistory) *DocumentHandler {
	return &DocumentHandler{BaseHandler: base, service: service, history: history}
}

// RegisterRoutes mounts the document endpoints on rg.
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id/items", h.UpdateItems)
	rg.POST("/:id/issue", h.Issue)
	rg.POST("/:id/pay", h.Pay)
	rg.POST("/:id/cancel", h.Cancel)
	if h.history != nil {
		rg.GET("/:id/history", h.History)
	}
}

// Create handles POST /documents
func (h *DocumentHandler) Create(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	createReq, err := req.ToCreateRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.Create(c.Request.Context(), createReq)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromDocument(doc))
}

// List handles GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	var q dto.ListDocumentsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse[dto.DocumentResponse]{
		Items:      dto.FromDocuments(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}

	doc, err := h.service.Get(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// UpdateItems handles PUT /documents/:id/items
func (h *DocumentHandler) UpdateItems(c *gin.Context) {
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}

	var req dto.UpdateItemsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.UpdateDraft(c.Request.Context(), docID, dto.ToInputs(req.Items))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Issue handles POST /documents/:id/issue
func (h *DocumentHandler) Issue(c *gin.Context) {
	h.transition(c, h.service.Issue)
}

// Pay handles POST /documents/:id/pay
func (h *DocumentHandler) Pay(c *gin.Context) {
	h.transition(c, h.service.MarkPaid)
}

func (h *DocumentHandler) transition(c *gin.Context, fn func(context.Context, id.ID) (*documents.Document, error)) {
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}

	doc, err := fn(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Cancel handles POST /documents/:id/cancel
func (h *DocumentHandler) Cancel(c *gin.Context) {
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}

	result, err := h.service.Cancel(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCancelResult(result))
}

// History handles GET /documents/:id/history
func (h *DocumentHandler) History(c *gin.Context) {
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}

	entries, err := h.history.History(c.Request.Context(), audit.EntityDocument, docID.String(), DefaultHistoryLimit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": entries})
}
