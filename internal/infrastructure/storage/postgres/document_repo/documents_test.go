package document_repo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseq/internal/core/apperror"
	"docseq/internal/core/entity"
	"docseq/internal/core/id"
	"docseq/internal/domain"
	"docseq/internal/domain/documents"
	"docseq/internal/domain/pricing"
)

func TestParseOrderBy(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "created_at DESC", false},
		{"issue_date", "issue_date ASC", false},
		{"+document_number", "document_number ASC", false},
		{"-total", "total DESC", false},
		{"-", "", true},
		{"id; DROP TABLE documents", "", true},
		{"unit_price", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseOrderBy(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyFilter(t *testing.T) {
	docType := entity.DocumentTypeReceipt
	status := documents.StatusPaid
	parent := id.MustParse("01920000-0000-7000-8000-000000000001")

	q := applyFilter(selectDocuments(), documents.ListFilter{
		ListFilter:   domain.ListFilter{Limit: 10},
		DocumentType: &docType,
		Status:       &status,
		ParentID:     &parent,
	})

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM documents WHERE document_type = $1 AND status = $2 AND parent_id = $3")
	assert.Equal(t, []any{"receipt", "paid", parent}, args)
}

func TestUpdateQuery_ChecksVersion(t *testing.T) {
	doc := &documents.Document{Status: documents.StatusCancelled}
	doc.ID = id.New()
	doc.Version = 3

	sql, args, err := updateQuery(doc).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "version = version + 1")
	assert.Contains(t, sql, "WHERE id = $9 AND version = $10")
	assert.Equal(t, doc.ID, args[8])
	assert.Equal(t, 3, args[9])
}

func TestInsertLines_NumbersFromOne(t *testing.T) {
	rate := decimal.NewFromInt(3)
	lines, _ := pricing.Calculate([]pricing.LineInput{
		{Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100), PriceType: pricing.PriceExclusive, TaxRate: decimal.NewFromInt(7)},
		{Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50), PriceType: pricing.PriceNone, WithholdingRate: &rate},
	})
	docID := id.New()

	sql, args, err := insertLines(docID, lines).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT INTO document_lines (document_id,line_no,")
	require.Len(t, args, 2*len(lineCols))
	assert.Equal(t, 1, args[1])
	assert.Equal(t, 2, args[len(lineCols)+1])
}

func TestLineRowMapping(t *testing.T) {
	rate := decimal.NewFromInt(3)
	line := pricing.Compute(pricing.LineInput{
		Quantity:        decimal.NewFromInt(3),
		UnitPrice:       decimal.NewFromInt(107),
		PriceType:       pricing.PriceInclusive,
		DiscountType:    pricing.DiscountAmount,
		TaxRate:         decimal.NewFromInt(7),
		WithholdingRate: &rate,
	})

	row := toLineRow(id.New(), 1, line)
	assert.True(t, row.WithholdingRate.Valid)
	assert.True(t, row.toLine().Equal(line))

	line.WithholdingRate = nil
	row = toLineRow(id.New(), 1, line)
	assert.False(t, row.WithholdingRate.Valid)
	assert.Nil(t, row.toLine().WithholdingRate)
}

func TestDocumentRowMapping(t *testing.T) {
	parent := id.New()
	now := time.Date(2026, time.October, 15, 8, 0, 0, 0, time.UTC)
	doc := &documents.Document{
		BaseDocument: entity.NewBaseDocument(now),
		DocumentType: entity.DocumentTypeReceipt,
		Number:       "RC-2026-0001",
		Status:       documents.StatusPaid,
		ParentID:     &parent,
		IssueDate:    now,
		Summary: pricing.Summary{
			Subtotal: decimal.NewFromInt(100),
			Tax:      decimal.NewFromInt(7),
			Total:    decimal.NewFromInt(107),
		},
	}

	back := toRow(doc).toDocument()
	assert.Equal(t, doc.ID, back.ID)
	assert.Equal(t, doc.Number, back.Number)
	assert.Equal(t, doc.Status, back.Status)
	assert.Equal(t, &parent, back.ParentID)
	assert.True(t, doc.Summary.Equal(back.Summary))
	assert.Equal(t, 1, back.Version)
}
