package numerator

import (
	"context"
	"time"

	"docseq/internal/core/entity"
)

// Rule is the numbering configuration of one document type.
type Rule struct {
	DocumentType entity.DocumentType `db:"document_type" json:"documentType"`
	Pattern      string              `db:"pattern" json:"pattern"`
	// CurrentNumber is the last running number issued within PeriodKey.
	CurrentNumber int64 `db:"current_number" json:"currentNumber"`
	// PeriodKey is Pattern.PeriodKey of the last allocation.
	PeriodKey string    `db:"period_key" json:"periodKey"`
	Version   int       `db:"version" json:"version"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// PeriodCounter is the last running number issued for a document type within
// one period. Every period keeps its own row, so allocating into an earlier
// period never disturbs the counter of a later one.
type PeriodCounter struct {
	DocumentType  entity.DocumentType `db:"document_type" json:"documentType"`
	PeriodKey     string              `db:"period_key" json:"periodKey"`
	CurrentNumber int64               `db:"current_number" json:"currentNumber"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updatedAt"`
}

// Advance is one allocation as written by RuleStore.AdvanceRule.
type Advance struct {
	DocumentType    entity.DocumentType
	ExpectedVersion int
	PeriodKey       string
	RunningNumber   int64
	// Current also moves the rule's CurrentNumber and PeriodKey. It is unset
	// for allocations backdated into an earlier period.
	Current bool
}

// RuleStore persists numbering rules. Every method honours the transaction
// carried in ctx.
type RuleStore interface {
	// GetRule reads a rule without locking it. NOT_FOUND if absent.
	GetRule(ctx context.Context, docType entity.DocumentType) (*Rule, error)

	// ListRules returns every configured rule ordered by document type.
	ListRules(ctx context.Context) ([]Rule, error)

	// AdvanceRule records a.RunningNumber as the counter of a.PeriodKey if the
	// stored rule version still equals a.ExpectedVersion, bumping the version.
	// Rule and period counter change together or not at all. It returns false
	// when another writer got there first.
	AdvanceRule(ctx context.Context, a Advance) (bool, error)

	// GetPeriod reads the counter of one period. NOT_FOUND if nothing was
	// allocated in that period yet.
	GetPeriod(ctx context.Context, docType entity.DocumentType, periodKey string) (*PeriodCounter, error)

	// SetPeriod overwrites the counter of one period regardless of its
	// current value. Used when an operator resets numbering.
	SetPeriod(ctx context.Context, docType entity.DocumentType, periodKey string, current int64) error

	// SaveRule upserts pattern, counter and period key with the same
	// version check. expectedVersion 0 creates a missing rule.
	SaveRule(ctx context.Context, rule *Rule, expectedVersion int) (bool, error)
}

// NumberScanner lists document numbers already persisted for a type that
// match a regular expression. Used to reconcile the rule counter.
type NumberScanner interface {
	ListNumbers(ctx context.Context, docType entity.DocumentType, expr string) ([]string, error)
}
