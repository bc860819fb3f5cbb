package handlers

import (
	"github.com/gin-gonic/gin"

	"docseq/internal/core/numerator"
	"docseq/internal/infrastructure/http/v1/dto"
)

// DefaultPreviewCount is used when the count query parameter is absent.
const DefaultPreviewCount = 5

// NumberingHandler exposes numbering rules and allocation.
type NumberingHandler struct {
	*BaseHandler
	generator numerator.Generator
}

// NewNumberingHandler creates a numbering handler.
func NewNumberingHandler(base *BaseHandler, generator numerator.Generator) *NumberingHandler {
	return &NumberingHandler{BaseHandler: base, generator: generator}
}

// RegisterRoutes mounts the numbering endpoints on rg.
func (h *NumberingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:type", h.Get)
	rg.PUT("/:type", h.Configure)
	rg.GET("/:type/preview", h.Preview)
	rg.POST("/:type/allocate", h.Allocate)
}

// List handles GET /numbering
func (h *NumberingHandler) List(c *gin.Context) {
	rules, err := h.generator.Rules(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromRules(rules)})
}

// Get handles GET /numbering/:type
func (h *NumberingHandler) Get(c *gin.Context) {
	docType, ok := h.ParamDocumentType(c)
	if !ok {
		return
	}

	rule, err := h.generator.Rule(c.Request.Context(), docType)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRule(*rule))
}

// Configure handles PUT /numbering/:type
func (h *NumberingHandler) Configure(c *gin.Context) {
	docType, ok := h.ParamDocumentType(c)
	if !ok {
		return
	}

	var req dto.ConfigureRuleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	update, err := req.ToRuleUpdate()
	if err != nil {
		h.Error(c, err)
		return
	}

	rule, err := h.generator.ConfigureRule(c.Request.Context(), docType, update)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRule(*rule))
}

type previewQuery struct {
	Count int    `form:"count"`
	AsOf  string `form:"asOf"`
}

// Preview handles GET /numbering/:type/preview?count=&asOf=
func (h *NumberingHandler) Preview(c *gin.Context) {
	docType, ok := h.ParamDocumentType(c)
	if !ok {
		return
	}

	var q previewQuery
	if !h.BindQuery(c, &q) {
		return
	}
	if q.Count == 0 {
		q.Count = DefaultPreviewCount
	}
	asOf, err := dto.ParseDate("asOf", q.AsOf)
	if err != nil {
		h.Error(c, err)
		return
	}

	numbers, err := h.generator.Preview(c.Request.Context(), docType, asOf, q.Count)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.PreviewResponse{DocumentType: string(docType), Numbers: numbers})
}

// Allocate handles POST /numbering/:type/allocate
func (h *NumberingHandler) Allocate(c *gin.Context) {
	docType, ok := h.ParamDocumentType(c)
	if !ok {
		return
	}

	var req dto.AllocateRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	asOf, err := dto.ParseDate("asOf", req.AsOf)
	if err != nil {
		h.Error(c, err)
		return
	}

	alloc, err := h.generator.Allocate(c.Request.Context(), docType, asOf)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromAllocation(alloc))
}
