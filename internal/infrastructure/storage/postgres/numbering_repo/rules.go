// Package numbering_repo provides the PostgreSQL numbering rule store.
package numbering_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docseq/internal/core/apperror"
	"docseq/internal/core/entity"
	"docseq/internal/core/numerator"
	"docseq/internal/infrastructure/storage/postgres"
)

const (
	rulesTable     = "numbering_rules"
	periodsTable   = "numbering_periods"
	documentsTable = "documents"
)

// advanceSQL bumps the rule version and records the period counter in one
// statement. The period row is written only when the version check matched,
// so the command tag reports 1 for a won race and 0 for a lost one.
const advanceSQL = `WITH advanced AS (
    UPDATE numbering_rules
    SET current_number = CASE WHEN $5 THEN $4 ELSE current_number END,
        period_key     = CASE WHEN $5 THEN $3 ELSE period_key END,
        version        = version + 1,
        updated_at     = $6
    WHERE document_type = $1 AND version = $2
    RETURNING document_type
)
INSERT INTO numbering_periods (document_type, period_key, current_number, updated_at)
SELECT document_type, $3, $4, $6 FROM advanced
ON CONFLICT (document_type, period_key)
DO UPDATE SET current_number = EXCLUDED.current_number, updated_at = EXCLUDED.updated_at`

var (
	_ numerator.RuleStore     = (*Repo)(nil)
	_ numerator.NumberScanner = (*Repo)(nil)
)

// Repo stores numbering rules and scans issued document numbers.
type Repo struct {
	db         postgres.QuerierProvider
	selectCols []string
	periodCols []string
	now        func() time.Time
}

// NewRepo creates a rule repository.
func NewRepo(db postgres.QuerierProvider) *Repo {
	return &Repo{
		db:         db,
		selectCols: postgres.ExtractDBColumns[numerator.Rule](),
		periodCols: postgres.ExtractDBColumns[numerator.PeriodCounter](),
		now:        time.Now,
	}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// GetRule implements numerator.RuleStore.
func (r *Repo) GetRule(ctx context.Context, docType entity.DocumentType) (*numerator.Rule, error) {
	query, args, err := builder().
		Select(r.selectCols...).
		From(rulesTable).
		Where(squirrel.Eq{"document_type": docType}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rule numerator.Rule
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &rule, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("numbering_rule", string(docType))
		}
		return nil, fmt.Errorf("get numbering rule: %w", err)
	}
	return &rule, nil
}

// ListRules implements numerator.RuleStore.
func (r *Repo) ListRules(ctx context.Context) ([]numerator.Rule, error) {
	query, args, err := builder().
		Select(r.selectCols...).
		From(rulesTable).
		OrderBy("document_type").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rules []numerator.Rule
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &rules, query, args...); err != nil {
		return nil, fmt.Errorf("list numbering rules: %w", err)
	}
	return rules, nil
}

// AdvanceRule implements numerator.RuleStore.
func (r *Repo) AdvanceRule(ctx context.Context, a numerator.Advance) (bool, error) {
	tag, err := r.db.GetQuerier(ctx).Exec(ctx, advanceSQL, advanceArgs(a, r.now().UTC())...)
	if err != nil {
		return false, fmt.Errorf("advance numbering rule: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func advanceArgs(a numerator.Advance, now time.Time) []any {
	return []any{a.DocumentType, a.ExpectedVersion, a.PeriodKey, a.RunningNumber, a.Current, now}
}

// GetPeriod implements numerator.RuleStore.
func (r *Repo) GetPeriod(ctx context.Context, docType entity.DocumentType, periodKey string) (*numerator.PeriodCounter, error) {
	query, args, err := builder().
		Select(r.periodCols...).
		From(periodsTable).
		Where(squirrel.Eq{"document_type": docType, "period_key": periodKey}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var period numerator.PeriodCounter
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &period, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("numbering_period", string(docType)+"/"+periodKey)
		}
		return nil, fmt.Errorf("get numbering period: %w", err)
	}
	return &period, nil
}

// SetPeriod implements numerator.RuleStore.
func (r *Repo) SetPeriod(ctx context.Context, docType entity.DocumentType, periodKey string, current int64) error {
	query, args, err := setPeriodQuery(docType, periodKey, current, r.now().UTC()).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("set numbering period: %w", err)
	}
	return nil
}

func setPeriodQuery(docType entity.DocumentType, periodKey string, current int64, now time.Time) squirrel.InsertBuilder {
	return builder().
		Insert(periodsTable).
		Columns("document_type", "period_key", "current_number", "updated_at").
		Values(docType, periodKey, current, now).
		Suffix("ON CONFLICT (document_type, period_key) " +
			"DO UPDATE SET current_number = EXCLUDED.current_number, updated_at = EXCLUDED.updated_at")
}

// SaveRule implements numerator.RuleStore.
func (r *Repo) SaveRule(ctx context.Context, rule *numerator.Rule, expectedVersion int) (bool, error) {
	now := r.now().UTC()

	var q squirrel.Sqlizer
	if expectedVersion == 0 {
		q = builder().
			Insert(rulesTable).
			Columns("document_type", "pattern", "current_number", "period_key", "version", "updated_at").
			Values(rule.DocumentType, rule.Pattern, rule.CurrentNumber, rule.PeriodKey, 1, now).
			Suffix("ON CONFLICT (document_type) DO NOTHING")
	} else {
		q = builder().
			Update(rulesTable).
			Set("pattern", rule.Pattern).
			Set("current_number", rule.CurrentNumber).
			Set("period_key", rule.PeriodKey).
			Set("version", squirrel.Expr("version + 1")).
			Set("updated_at", now).
			Where(squirrel.Eq{"document_type": rule.DocumentType, "version": expectedVersion})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build save: %w", err)
	}

	tag, err := r.db.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("save numbering rule: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	rule.UpdatedAt = now
	return true, nil
}

// ListNumbers implements numerator.NumberScanner. expr is evaluated by
// PostgreSQL's POSIX regular expression operator.
func (r *Repo) ListNumbers(ctx context.Context, docType entity.DocumentType, expr string) ([]string, error) {
	query, args, err := numbersQuery(docType, expr).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scan: %w", err)
	}

	var numbers []string
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &numbers, query, args...); err != nil {
		return nil, fmt.Errorf("scan document numbers: %w", err)
	}
	return numbers, nil
}

func numbersQuery(docType entity.DocumentType, expr string) squirrel.SelectBuilder {
	return builder().
		Select("document_number").
		From(documentsTable).
		Where(squirrel.Eq{"document_type": docType}).
		Where(squirrel.Expr("document_number ~ ?", expr))
}
