package documents

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseq/internal/core/apperror"
	"docseq/internal/core/entity"
	"docseq/internal/core/id"
	"docseq/internal/core/numerator"
	"docseq/internal/domain"
	"docseq/internal/domain/audit"
	"docseq/internal/domain/pricing"
)

// memRepo keeps documents in memory. Together with memTx it rolls back every
// write of a failed transaction.
type memRepo struct {
	mu       sync.Mutex
	docs     map[id.ID]Document
	lines    map[id.ID][]pricing.Line
	failOn   map[id.ID]error // Update fails for these ids
	failSave error
}

func newMemRepo() *memRepo {
	return &memRepo{
		docs:   make(map[id.ID]Document),
		lines:  make(map[id.ID][]pricing.Line),
		failOn: make(map[id.ID]error),
	}
}

func (r *memRepo) snapshot() (map[id.ID]Document, map[id.ID][]pricing.Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	docs := make(map[id.ID]Document, len(r.docs))
	for k, v := range r.docs {
		docs[k] = v
	}
	lines := make(map[id.ID][]pricing.Line, len(r.lines))
	for k, v := range r.lines {
		lines[k] = v
	}
	return docs, lines
}

func (r *memRepo) restore(docs map[id.ID]Document, lines map[id.ID][]pricing.Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs, r.lines = docs, lines
}

func (r *memRepo) Create(_ context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.Number == doc.Number {
			return apperror.NewDuplicate("document", "document_number", doc.Number)
		}
	}
	if r.failSave != nil {
		return r.failSave
	}
	stored := *doc
	stored.Lines = nil
	r.docs[doc.ID] = stored
	return nil
}

func (r *memRepo) get(docID id.ID) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("document", docID)
	}
	d.Lines = r.lines[docID]
	return &d, nil
}

func (r *memRepo) GetByID(_ context.Context, docID id.ID) (*Document, error) {
	return r.get(docID)
}

func (r *memRepo) GetForUpdate(_ context.Context, docID id.ID) (*Document, error) {
	return r.get(docID)
}

func (r *memRepo) FindChildren(_ context.Context, parentID id.ID) ([]*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Document
	for _, d := range r.docs {
		if d.ParentID != nil && *d.ParentID == parentID {
			d := d
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *memRepo) Update(_ context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[doc.ID]; err != nil {
		return err
	}
	stored, ok := r.docs[doc.ID]
	if !ok || stored.Version != doc.Version {
		return apperror.NewConcurrentModification("document", doc.ID)
	}
	doc.Touch()
	updated := *doc
	updated.Lines = nil
	r.docs[doc.ID] = updated
	return nil
}

func (r *memRepo) SaveLines(_ context.Context, docID id.ID, lines []pricing.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[docID] = append([]pricing.Line(nil), lines...)
	return nil
}

func (r *memRepo) List(_ context.Context, f ListFilter) (domain.ListResult[*Document], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*Document
	for _, d := range r.docs {
		if f.DocumentType != nil && d.DocumentType != *f.DocumentType {
			continue
		}
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		d := d
		items = append(items, &d)
	}
	return domain.ListResult[*Document]{Items: items, TotalCount: int64(len(items)), Limit: f.Limit, Offset: f.Offset}, nil
}

type memTx struct {
	repo *memRepo
}

func (m memTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	docs, lines := m.repo.snapshot()
	if err := fn(ctx); err != nil {
		m.repo.restore(docs, lines)
		return err
	}
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	actions []audit.Action
}

func (a *memAudit) Record(_ context.Context, _, _ string, action audit.Action, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return nil
}

type memMetrics struct {
	created  int
	cascaded []int
}

func (m *memMetrics) IncDocumentCreated(string) { m.created++ }

func (m *memMetrics) ObserveCancellation(_ string, cascaded int) {
	m.cascaded = append(m.cascaded, cascaded)
}

type fixture struct {
	svc     *Service
	repo    *memRepo
	gen     *numerator.MockGenerator
	audit   *memAudit
	metrics *memMetrics
}

var today = time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	repo := newMemRepo()
	f := &fixture{
		repo:    repo,
		gen:     &numerator.MockGenerator{},
		audit:   &memAudit{},
		metrics: &memMetrics{},
	}
	f.svc = NewService(ServiceConfig{
		Repo:      repo,
		Numerator: f.gen,
		TxManager: memTx{repo: repo},
		Audit:     f.audit,
		Metrics:   f.metrics,
		Clock:     func() time.Time { return today },
	})
	return f
}

func item(qty, price string) pricing.LineInput {
	return pricing.LineInput{
		Quantity:     decimal.RequireFromString(qty),
		UnitPrice:    decimal.RequireFromString(price),
		PriceType:    pricing.PriceExclusive,
		DiscountType: pricing.DiscountAmount,
		TaxRate:      decimal.NewFromInt(7),
	}
}

func (f *fixture) create(t *testing.T, docType entity.DocumentType, parent *Document, issue bool) *Document {
	t.Helper()
	req := CreateRequest{DocumentType: docType, Items: []pricing.LineInput{item("1", "100")}, Issue: issue}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	doc, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	return doc
}

func (f *fixture) status(t *testing.T, doc *Document) Status {
	t.Helper()
	got, err := f.repo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	return got.Status
}

func TestCreate(t *testing.T) {
	f := newFixture()

	doc, err := f.svc.Create(context.Background(), CreateRequest{
		DocumentType: entity.DocumentTypeInvoice,
		Items:        []pricing.LineInput{item("2", "100"), item("1", "50")},
	})
	require.NoError(t, err)

	assert.Equal(t, "MOCK-2026-0001", doc.Number)
	assert.Equal(t, StatusDraft, doc.Status)
	assert.Equal(t, today, doc.IssueDate)
	assert.True(t, doc.Summary.Total.Equal(decimal.RequireFromString("267.5")))

	stored, err := f.repo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
	assert.Equal(t, []audit.Action{audit.ActionCreate}, f.audit.actions)
	assert.Equal(t, 1, f.metrics.created)
}

func TestCreate_IssuedReceiptIsPaid(t *testing.T) {
	f := newFixture()

	receipt := f.create(t, entity.DocumentTypeReceipt, nil, true)
	invoice := f.create(t, entity.DocumentTypeInvoice, nil, true)

	assert.Equal(t, StatusPaid, receipt.Status)
	assert.Equal(t, StatusIssued, invoice.Status)
}

func TestCreate_FailedSaveDoesNotReuseNumber(t *testing.T) {
	f := newFixture()
	f.repo.failSave = errors.New("disk full")

	_, err := f.svc.Create(context.Background(), CreateRequest{DocumentType: entity.DocumentTypeInvoice})
	require.Error(t, err)
	assert.Empty(t, f.repo.docs)

	f.repo.failSave = nil
	doc := f.create(t, entity.DocumentTypeInvoice, nil, false)
	assert.Equal(t, "MOCK-2026-0002", doc.Number)
}

func TestCreate_AllocationConflictSurfaces(t *testing.T) {
	f := newFixture()
	f.gen.AllocateFunc = func(context.Context, entity.DocumentType, time.Time) (numerator.Allocation, error) {
		return numerator.Allocation{}, apperror.NewAllocationConflict("invoice", 5)
	}

	_, err := f.svc.Create(context.Background(), CreateRequest{DocumentType: entity.DocumentTypeInvoice})
	assert.True(t, apperror.HasCode(err, apperror.CodeAllocationConflict))
	assert.True(t, apperror.IsRetryable(err))
	assert.Empty(t, f.repo.docs)
}

func TestCreate_UnderCancelledParent(t *testing.T) {
	f := newFixture()
	invoice := f.create(t, entity.DocumentTypeInvoice, nil, true)
	_, err := f.svc.Cancel(context.Background(), invoice.ID)
	require.NoError(t, err)

	allocated := false
	f.gen.AllocateFunc = func(context.Context, entity.DocumentType, time.Time) (numerator.Allocation, error) {
		allocated = true
		return numerator.Allocation{}, nil
	}

	_, err = f.svc.Create(context.Background(), CreateRequest{
		DocumentType: entity.DocumentTypeReceipt,
		ParentID:     &invoice.ID,
	})
	assert.True(t, apperror.HasCode(err, CodeParentCancelled))
	assert.False(t, allocated, "no number should be burned for a rejected request")
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), CreateRequest{DocumentType: "memo"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	missing := id.New()
	_, err = f.svc.Create(context.Background(), CreateRequest{DocumentType: entity.DocumentTypeReceipt, ParentID: &missing})
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreate_BeforeCreateHookCanVeto(t *testing.T) {
	f := newFixture()
	veto := apperror.NewValidation("customer on hold")
	f.svc.Hooks().On(domain.BeforeCreate, func(context.Context, *Document) error { return veto })

	_, err := f.svc.Create(context.Background(), CreateRequest{DocumentType: entity.DocumentTypeInvoice})
	assert.ErrorIs(t, err, veto)
	assert.Empty(t, f.repo.docs)
}

func TestUpdateDraft_RecomputesSummary(t *testing.T) {
	f := newFixture()
	doc := f.create(t, entity.DocumentTypeQuotation, nil, false)

	updated, err := f.svc.UpdateDraft(context.Background(), doc.ID, []pricing.LineInput{item("3", "10")})
	require.NoError(t, err)
	assert.True(t, updated.Summary.Subtotal.Equal(decimal.NewFromInt(30)))
	assert.True(t, updated.Summary.Total.Equal(decimal.RequireFromString("32.1")))
	assert.Equal(t, 2, updated.Version)

	_, err = f.svc.Issue(context.Background(), doc.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateDraft(context.Background(), doc.ID, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentNotEditable))
}

func TestTransitions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	invoice := f.create(t, entity.DocumentTypeInvoice, nil, false)
	_, err := f.svc.MarkPaid(ctx, invoice.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition), "draft invoice cannot be paid")

	_, err = f.svc.Issue(ctx, invoice.ID)
	require.NoError(t, err)
	paid, err := f.svc.MarkPaid(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)

	receipt := f.create(t, entity.DocumentTypeReceipt, nil, false)
	issued, err := f.svc.Issue(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, issued.Status)

	_, err = f.svc.Issue(ctx, receipt.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		docType entity.DocumentType
		from    Status
		to      Status
		ok      bool
	}{
		{entity.DocumentTypeInvoice, StatusDraft, StatusIssued, true},
		{entity.DocumentTypeInvoice, StatusIssued, StatusPaid, true},
		{entity.DocumentTypeInvoice, StatusDraft, StatusPaid, false},
		{entity.DocumentTypeInvoice, StatusPaid, StatusIssued, false},
		{entity.DocumentTypeInvoice, StatusPaid, StatusCancelled, true},
		{entity.DocumentTypeInvoice, StatusCancelled, StatusCancelled, false},
		{entity.DocumentTypeInvoice, StatusCancelled, StatusDraft, false},
		{entity.DocumentTypeReceipt, StatusDraft, StatusPaid, true},
		{entity.DocumentTypeReceipt, StatusDraft, StatusIssued, false},
		{entity.DocumentTypeReceipt, StatusPaid, StatusCancelled, true},
	}

	for _, tt := range tests {
		d := &Document{DocumentType: tt.docType, Status: tt.from}
		err := d.CanTransition(tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s %s->%s", tt.docType, tt.from, tt.to)
		} else {
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition), "%s %s->%s", tt.docType, tt.from, tt.to)
		}
	}
}

func TestCancel_InvoiceWithTwoReceipts(t *testing.T) {
	f := newFixture()
	invoice := f.create(t, entity.DocumentTypeInvoice, nil, true)
	r1 := f.create(t, entity.DocumentTypeReceipt, invoice, true)
	r2 := f.create(t, entity.DocumentTypeReceipt, invoice, true)
	unrelated := f.create(t, entity.DocumentTypeReceipt, nil, true)

	res, err := f.svc.Cancel(context.Background(), invoice.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, res.CascadeCount)
	assert.Len(t, res.Cancelled, 3)
	assert.Equal(t, invoice.ID, res.Cancelled[0].ID)
	for _, d := range []*Document{invoice, r1, r2} {
		assert.Equal(t, StatusCancelled, f.status(t, d))
	}
	assert.Equal(t, StatusPaid, f.status(t, unrelated))
	assert.Equal(t, []int{2}, f.metrics.cascaded)
}

func TestCancel_Recursive(t *testing.T) {
	f := newFixture()
	quotation := f.create(t, entity.DocumentTypeQuotation, nil, true)
	invoice := f.create(t, entity.DocumentTypeInvoice, quotation, true)
	receipt := f.create(t, entity.DocumentTypeReceipt, invoice, true)
	credit := f.create(t, entity.DocumentTypeCreditNote, invoice, false)

	res, err := f.svc.Cancel(context.Background(), quotation.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.CascadeCount)
	for _, d := range []*Document{quotation, invoice, receipt, credit} {
		assert.Equal(t, StatusCancelled, f.status(t, d))
	}
}

func TestCancel_ChildDoesNotTouchParent(t *testing.T) {
	f := newFixture()
	invoice := f.create(t, entity.DocumentTypeInvoice, nil, true)
	receipt := f.create(t, entity.DocumentTypeReceipt, invoice, true)

	res, err := f.svc.Cancel(context.Background(), receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CascadeCount)
	assert.Equal(t, StatusIssued, f.status(t, invoice))
}

func TestCancel_AlreadyCancelledIsNoop(t *testing.T) {
	f := newFixture()
	invoice := f.create(t, entity.DocumentTypeInvoice, nil, true)
	receipt := f.create(t, entity.DocumentTypeReceipt, invoice, true)

	_, err := f.svc.Cancel(context.Background(), invoice.ID)
	require.NoError(t, err)
	auditCount := len(f.audit.actions)

	for _, d := range []*Document{receipt, invoice} {
		res, err := f.svc.Cancel(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, res.CascadeCount)
		assert.Empty(t, res.Cancelled)
	}
	assert.Len(t, f.audit.actions, auditCount)
}

func TestCancel_SkipsCancelledChildren(t *testing.T) {
	f := newFixture()
	invoice := f.create(t, entity.DocumentTypeInvoice, nil, true)
	r1 := f.create(t, entity.DocumentTypeReceipt, invoice, true)
	f.create(t, entity.DocumentTypeReceipt, invoice, true)

	_, err := f.svc.Cancel(context.Background(), r1.ID)
	require.NoError(t, err)

	res, err := f.svc.Cancel(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CascadeCount)
}

func TestCancel_FailureRollsBackEverything(t *testing.T) {
	f := newFixture()
	invoice := f.create(t, entity.DocumentTypeInvoice, nil, true)
	r1 := f.create(t, entity.DocumentTypeReceipt, invoice, true)
	r2 := f.create(t, entity.DocumentTypeReceipt, invoice, true)

	cause := errors.New("connection reset")
	f.repo.failOn[r2.ID] = cause

	_, err := f.svc.Cancel(context.Background(), invoice.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeCascadeCancellation))
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, StatusIssued, f.status(t, invoice))
	assert.Equal(t, StatusPaid, f.status(t, r1))
	assert.Equal(t, StatusPaid, f.status(t, r2))
}

func TestCancel_CycleInParentLinks(t *testing.T) {
	f := newFixture()
	a := f.create(t, entity.DocumentTypeInvoice, nil, true)
	b := f.create(t, entity.DocumentTypeReceipt, a, true)

	// corrupt data: a points back at b
	stored := f.repo.docs[a.ID]
	stored.ParentID = &b.ID
	f.repo.docs[a.ID] = stored

	res, err := f.svc.Cancel(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CascadeCount)
}

func TestCancel_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Cancel(context.Background(), id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestList_NormalizesAndValidates(t *testing.T) {
	f := newFixture()
	f.create(t, entity.DocumentTypeInvoice, nil, false)
	f.create(t, entity.DocumentTypeQuotation, nil, false)

	invoice := entity.DocumentTypeInvoice
	res, err := f.svc.List(context.Background(), ListFilter{DocumentType: &invoice})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, domain.DefaultLimit, res.Limit)

	bogus := entity.DocumentType("memo")
	_, err = f.svc.List(context.Background(), ListFilter{DocumentType: &bogus})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
