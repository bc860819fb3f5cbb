package handlers

import (
	"github.com/gin-gonic/gin"

	"docseq/internal/domain/pricing"
	"docseq/internal/infrastructure/http/v1/dto"
)

// SummaryHandler previews line and document totals.
type SummaryHandler struct {
	*BaseHandler
}

// NewSummaryHandler creates a summary handler.
func NewSummaryHandler(base *BaseHandler) *SummaryHandler {
	return &SummaryHandler{BaseHandler: base}
}

// Compute handles POST /summary. Nothing is persisted.
func (h *SummaryHandler) Compute(c *gin.Context) {
	var req dto.SummaryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lines, summary := pricing.Calculate(dto.ToInputs(req.Items))
	h.OK(c, dto.CalculationResponse{
		Lines:   dto.FromLines(lines),
		Summary: dto.FromSummary(summary),
	})
}
