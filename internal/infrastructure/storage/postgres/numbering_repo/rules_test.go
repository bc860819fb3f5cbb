package numbering_repo

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseq/internal/core/entity"
	"docseq/internal/core/numerator"
	"docseq/internal/infrastructure/storage/postgres"
)

type execCall struct {
	sql  string
	args []any
}

// stubQuerier records Exec calls and reports a fixed command tag.
type stubQuerier struct {
	tag   string
	calls []execCall
}

func (q *stubQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.calls = append(q.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag(q.tag), nil
}

func (q *stubQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not used")
}

func (q *stubQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not used")
}

type stubProvider struct{ q *stubQuerier }

func (p stubProvider) GetQuerier(context.Context) postgres.Querier { return p.q }

var fixedNow = time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)

func newTestRepo(tag string) (*Repo, *stubQuerier) {
	q := &stubQuerier{tag: tag}
	r := NewRepo(stubProvider{q: q})
	r.now = func() time.Time { return fixedNow }
	return r, q
}

func TestNewRepo_SelectsColumns(t *testing.T) {
	r, _ := newTestRepo("")
	assert.Equal(t,
		[]string{"document_type", "pattern", "current_number", "period_key", "version", "updated_at"},
		r.selectCols)
	assert.Equal(t,
		[]string{"document_type", "period_key", "current_number", "updated_at"},
		r.periodCols)
}

func TestAdvanceRule(t *testing.T) {
	advance := numerator.Advance{
		DocumentType:    entity.DocumentTypeInvoice,
		ExpectedVersion: 4,
		PeriodKey:       "2026",
		RunningNumber:   12,
		Current:         true,
	}

	t.Run("won", func(t *testing.T) {
		r, q := newTestRepo("INSERT 0 1")
		ok, err := r.AdvanceRule(context.Background(), advance)
		require.NoError(t, err)
		assert.True(t, ok)

		require.Len(t, q.calls, 1)
		assert.Equal(t, advanceSQL, q.calls[0].sql)
		assert.Equal(t, []any{entity.DocumentTypeInvoice, 4, "2026", int64(12), true, fixedNow}, q.calls[0].args)
	})

	t.Run("lost", func(t *testing.T) {
		r, _ := newTestRepo("INSERT 0 0")
		ok, err := r.AdvanceRule(context.Background(), advance)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestAdvanceSQL_GuardsPeriodWithRuleVersion(t *testing.T) {
	assert.Contains(t, advanceSQL, "WHERE document_type = $1 AND version = $2")
	assert.Contains(t, advanceSQL, "FROM advanced")
	assert.Contains(t, advanceSQL, "ON CONFLICT (document_type, period_key)")
}

func TestSetPeriod(t *testing.T) {
	r, q := newTestRepo("INSERT 0 1")
	require.NoError(t, r.SetPeriod(context.Background(), entity.DocumentTypeQuotation, "2026", 99))

	require.Len(t, q.calls, 1)
	assert.Equal(t,
		"INSERT INTO numbering_periods (document_type,period_key,current_number,updated_at) VALUES ($1,$2,$3,$4) "+
			"ON CONFLICT (document_type, period_key) "+
			"DO UPDATE SET current_number = EXCLUDED.current_number, updated_at = EXCLUDED.updated_at",
		q.calls[0].sql)
	assert.Equal(t, []any{entity.DocumentTypeQuotation, "2026", int64(99), fixedNow}, q.calls[0].args)
}

func TestSaveRule(t *testing.T) {
	t.Run("creates missing rule", func(t *testing.T) {
		r, q := newTestRepo("INSERT 0 1")
		rule := &numerator.Rule{DocumentType: entity.DocumentTypeCreditNote, Pattern: "CN-YYYY-XXXX"}

		ok, err := r.SaveRule(context.Background(), rule, 0)
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, q.calls, 1)
		assert.Contains(t, q.calls[0].sql, "INSERT INTO numbering_rules")
		assert.Contains(t, q.calls[0].sql, "ON CONFLICT (document_type) DO NOTHING")
		assert.Equal(t, fixedNow, rule.UpdatedAt)
	})

	t.Run("update checks version", func(t *testing.T) {
		r, q := newTestRepo("UPDATE 1")
		rule := &numerator.Rule{DocumentType: entity.DocumentTypeInvoice, Pattern: "IV-YY-XXXXX", CurrentNumber: 7}

		ok, err := r.SaveRule(context.Background(), rule, 3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Contains(t, q.calls[0].sql, "WHERE document_type = $5 AND version = $6")
	})

	t.Run("stale version", func(t *testing.T) {
		r, _ := newTestRepo("UPDATE 0")
		rule := &numerator.Rule{DocumentType: entity.DocumentTypeInvoice, Pattern: "IV-YY-XXXXX"}

		ok, err := r.SaveRule(context.Background(), rule, 3)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, rule.UpdatedAt.IsZero())
	})
}

func TestNumbersQuery_UsesRegexOperator(t *testing.T) {
	p := numerator.MustCompile("QT-YYYY-XXXX")
	expr := p.PeriodExpression(fixedNow)

	sql, args, err := numbersQuery(entity.DocumentTypeQuotation, expr).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT document_number FROM documents WHERE document_type = $1 AND document_number ~ $2",
		sql)
	assert.Equal(t, []any{entity.DocumentTypeQuotation, `^QT-2026-(\d{4,})$`}, args)
}
