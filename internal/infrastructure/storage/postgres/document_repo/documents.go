// Package document_repo provides the PostgreSQL document repository.
package document_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"docseq/internal/core/apperror"
	"docseq/internal/core/entity"
	"docseq/internal/core/id"
	"docseq/internal/domain"
	"docseq/internal/domain/documents"
	"docseq/internal/domain/pricing"
	"docseq/internal/infrastructure/storage/postgres"
)

const (
	documentsTable = "documents"
	linesTable     = "document_lines"
)

var _ documents.Repository = (*Repo)(nil)

// documentRow mirrors the documents table.
type documentRow struct {
	ID             id.ID           `db:"id"`
	DocumentType   string          `db:"document_type"`
	Number         string          `db:"document_number"`
	Status         string          `db:"status"`
	ParentID       *id.ID          `db:"parent_id"`
	IssueDate      time.Time       `db:"issue_date"`
	Subtotal       decimal.Decimal `db:"subtotal"`
	Discount       decimal.Decimal `db:"discount"`
	Tax            decimal.Decimal `db:"tax"`
	Total          decimal.Decimal `db:"total"`
	WithholdingTax decimal.Decimal `db:"withholding_tax"`
	CancelledAt    *time.Time      `db:"cancelled_at"`
	Version        int             `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// lineRow mirrors the document_lines table.
type lineRow struct {
	DocumentID        id.ID               `db:"document_id"`
	LineNo            int                 `db:"line_no"`
	Quantity          decimal.Decimal     `db:"quantity"`
	UnitPrice         decimal.Decimal     `db:"unit_price"`
	PriceType         string              `db:"price_type"`
	Discount          decimal.Decimal     `db:"discount"`
	DiscountType      string              `db:"discount_type"`
	TaxRate           decimal.Decimal     `db:"tax_rate"`
	WithholdingRate   decimal.NullDecimal `db:"withholding_rate"`
	UnitPriceExTax    decimal.Decimal     `db:"unit_price_ex_tax"`
	Subtotal          decimal.Decimal     `db:"subtotal"`
	DiscountAmount    decimal.Decimal     `db:"discount_amount"`
	AmountBeforeTax   decimal.Decimal     `db:"amount_before_tax"`
	TaxAmount         decimal.Decimal     `db:"tax_amount"`
	Amount            decimal.Decimal     `db:"amount"`
	WithholdingAmount decimal.Decimal     `db:"withholding_amount"`
}

var (
	documentCols = postgres.ExtractDBColumns[documentRow]()
	lineCols     = postgres.ExtractDBColumns[lineRow]()
)

// sortable lists the columns a caller may order by.
var sortable = map[string]struct{}{
	"document_number": {},
	"document_type":   {},
	"issue_date":      {},
	"status":          {},
	"total":           {},
	"created_at":      {},
	"updated_at":      {},
}

// Repo implements documents.Repository.
type Repo struct {
	db postgres.QuerierProvider
}

// NewRepo creates a document repository.
func NewRepo(db postgres.QuerierProvider) *Repo {
	return &Repo{db: db}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts the document header.
func (r *Repo) Create(ctx context.Context, doc *documents.Document) error {
	row := toRow(doc)
	query, args, err := builder().
		Insert(documentsTable).
		Columns(documentCols...).
		Values(postgres.StructValues(row)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert document: %w", err), "document")
	}
	return nil
}

// GetByID returns the document with its lines.
func (r *Repo) GetByID(ctx context.Context, docID id.ID) (*documents.Document, error) {
	doc, err := r.getOne(ctx, selectDocuments().Where(squirrel.Eq{"id": docID}), docID)
	if err != nil {
		return nil, err
	}

	doc.Lines, err = r.loadLines(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetForUpdate returns the header and locks the row until the transaction ends.
func (r *Repo) GetForUpdate(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return r.getOne(ctx, selectDocuments().Where(squirrel.Eq{"id": docID}).Suffix("FOR UPDATE"), docID)
}

func (r *Repo) getOne(ctx context.Context, q squirrel.SelectBuilder, docID id.ID) (*documents.Document, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row documentRow
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", docID.String())
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return row.toDocument(), nil
}

// FindChildren returns and locks the direct children of parentID.
func (r *Repo) FindChildren(ctx context.Context, parentID id.ID) ([]*documents.Document, error) {
	query, args, err := selectDocuments().
		Where(squirrel.Eq{"parent_id": parentID}).
		OrderBy("created_at", "id").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []documentRow
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find children: %w", err)
	}
	return toDocuments(rows), nil
}

// Update writes the mutable header columns with optimistic locking.
func (r *Repo) Update(ctx context.Context, doc *documents.Document) error {
	query, args, err := updateQuery(doc).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("document", doc.ID)
	}

	doc.Touch()
	return nil
}

func updateQuery(doc *documents.Document) squirrel.UpdateBuilder {
	s := doc.Summary
	return builder().
		Update(documentsTable).
		Set("status", string(doc.Status)).
		Set("cancelled_at", doc.CancelledAt).
		Set("subtotal", s.Subtotal).
		Set("discount", s.Discount).
		Set("tax", s.Tax).
		Set("total", s.Total).
		Set("withholding_tax", s.WithholdingTax).
		Set("updated_at", doc.UpdatedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": doc.ID, "version": doc.Version})
}

// SaveLines replaces all lines of a document.
func (r *Repo) SaveLines(ctx context.Context, docID id.ID, lines []pricing.Line) error {
	q := r.db.GetQuerier(ctx)

	query, args, err := builder().Delete(linesTable).Where(squirrel.Eq{"document_id": docID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	query, args, err = insertLines(docID, lines).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

func insertLines(docID id.ID, lines []pricing.Line) squirrel.InsertBuilder {
	ins := builder().Insert(linesTable).Columns(lineCols...)
	for i, l := range lines {
		ins = ins.Values(postgres.StructValues(toLineRow(docID, i+1, l))...)
	}
	return ins
}

func (r *Repo) loadLines(ctx context.Context, docID id.ID) ([]pricing.Line, error) {
	query, args, err := builder().
		Select(lineCols...).
		From(linesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []lineRow
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load lines: %w", err)
	}

	lines := make([]pricing.Line, len(rows))
	for i, row := range rows {
		lines[i] = row.toLine()
	}
	return lines, nil
}

// List returns document headers without lines.
func (r *Repo) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*documents.Document], error) {
	filter.Normalize()
	result := domain.ListResult[*documents.Document]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := applyFilter(selectDocuments(), filter)

	countSQL, countArgs, err := builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.db.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count documents: %w", err)
	}

	orderBy, err := parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}

	query, args, err := q.
		OrderBy(orderBy, "id").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	var rows []documentRow
	if err := pgxscan.Select(ctx, querier, &rows, query, args...); err != nil {
		return result, fmt.Errorf("list documents: %w", err)
	}
	result.Items = toDocuments(rows)
	return result, nil
}

func selectDocuments() squirrel.SelectBuilder {
	return builder().Select(documentCols...).From(documentsTable)
}

func applyFilter(q squirrel.SelectBuilder, f documents.ListFilter) squirrel.SelectBuilder {
	if f.DocumentType != nil {
		q = q.Where(squirrel.Eq{"document_type": string(*f.DocumentType)})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": string(*f.Status)})
	}
	if f.ParentID != nil {
		q = q.Where(squirrel.Eq{"parent_id": *f.ParentID})
	}
	return q
}

// parseOrderBy accepts "column", "+column" or "-column" for whitelisted columns.
func parseOrderBy(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "created_at DESC", nil
	}

	direction := "ASC"
	field := orderBy
	switch orderBy[0] {
	case '-':
		direction, field = "DESC", orderBy[1:]
	case '+':
		field = orderBy[1:]
	}

	if _, ok := sortable[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").
			WithDetail("orderBy", orderBy).
			WithDetail("field", field)
	}
	return field + " " + direction, nil
}

// --- row mapping ---

func toRow(doc *documents.Document) documentRow {
	return documentRow{
		ID:             doc.ID,
		DocumentType:   string(doc.DocumentType),
		Number:         doc.Number,
		Status:         string(doc.Status),
		ParentID:       doc.ParentID,
		IssueDate:      doc.IssueDate,
		Subtotal:       doc.Summary.Subtotal,
		Discount:       doc.Summary.Discount,
		Tax:            doc.Summary.Tax,
		Total:          doc.Summary.Total,
		WithholdingTax: doc.Summary.WithholdingTax,
		CancelledAt:    doc.CancelledAt,
		Version:        doc.Version,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

func (row documentRow) toDocument() *documents.Document {
	doc := &documents.Document{
		DocumentType: entity.DocumentType(row.DocumentType),
		Number:       row.Number,
		Status:       documents.Status(row.Status),
		ParentID:     row.ParentID,
		IssueDate:    row.IssueDate,
		CancelledAt:  row.CancelledAt,
		Summary: pricing.Summary{
			Subtotal:       row.Subtotal,
			Discount:       row.Discount,
			Tax:            row.Tax,
			Total:          row.Total,
			WithholdingTax: row.WithholdingTax,
		},
	}
	doc.ID = row.ID
	doc.Version = row.Version
	doc.CreatedAt = row.CreatedAt
	doc.UpdatedAt = row.UpdatedAt
	return doc
}

func toDocuments(rows []documentRow) []*documents.Document {
	docs := make([]*documents.Document, len(rows))
	for i, row := range rows {
		docs[i] = row.toDocument()
	}
	return docs
}

func toLineRow(docID id.ID, lineNo int, l pricing.Line) lineRow {
	row := lineRow{
		DocumentID:        docID,
		LineNo:            lineNo,
		Quantity:          l.Quantity,
		UnitPrice:         l.UnitPrice,
		PriceType:         string(l.PriceType),
		Discount:          l.Discount,
		DiscountType:      string(l.DiscountType),
		TaxRate:           l.TaxRate,
		UnitPriceExTax:    l.UnitPriceExTax,
		Subtotal:          l.Subtotal,
		DiscountAmount:    l.DiscountAmount,
		AmountBeforeTax:   l.AmountBeforeTax,
		TaxAmount:         l.TaxAmount,
		Amount:            l.Amount,
		WithholdingAmount: l.WithholdingAmount,
	}
	if l.WithholdingRate != nil {
		row.WithholdingRate = decimal.NewNullDecimal(*l.WithholdingRate)
	}
	return row
}

func (row lineRow) toLine() pricing.Line {
	l := pricing.Line{
		LineInput: pricing.LineInput{
			Quantity:     row.Quantity,
			UnitPrice:    row.UnitPrice,
			PriceType:    pricing.PriceType(row.PriceType),
			Discount:     row.Discount,
			DiscountType: pricing.DiscountType(row.DiscountType),
			TaxRate:      row.TaxRate,
		},
		UnitPriceExTax:    row.UnitPriceExTax,
		Subtotal:          row.Subtotal,
		DiscountAmount:    row.DiscountAmount,
		AmountBeforeTax:   row.AmountBeforeTax,
		TaxAmount:         row.TaxAmount,
		Amount:            row.Amount,
		WithholdingAmount: row.WithholdingAmount,
	}
	if row.WithholdingRate.Valid {
		rate := row.WithholdingRate.Decimal
		l.WithholdingRate = &rate
	}
	return l
}
