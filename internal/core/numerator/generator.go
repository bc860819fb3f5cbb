// Package numerator provides domain contracts for document auto-numbering.
// Implementations live in infrastructure layer.
package numerator

import (
	"context"
	"time"

	"docseq/internal/core/entity"
)

// Allocation is one issued document number.
type Allocation struct {
	DocumentType  entity.DocumentType `json:"documentType"`
	Number        string              `json:"number"`
	RunningNumber int64               `json:"runningNumber"`
	PeriodKey     string              `json:"periodKey"`
	// Attempts is how many optimistic rounds the allocation took.
	Attempts int `json:"attempts"`
}

// RuleUpdate changes the numbering configuration of a type.
type RuleUpdate struct {
	Pattern string
	// CurrentNumber resets the counter when set. The period key is moved to
	// the period of AsOf.
	CurrentNumber *int64
	AsOf          time.Time
}

// Generator allocates sequential document numbers.
// This is the domain contract - implementations live in infrastructure layer.
type Generator interface {
	// Allocate issues the next number for docType in the period of asOf.
	// It commits on its own: a number is never handed out twice and never
	// reclaimed, even if the caller later fails.
	Allocate(ctx context.Context, docType entity.DocumentType, asOf time.Time) (Allocation, error)

	// Preview renders the next count numbers without advancing the counter.
	Preview(ctx context.Context, docType entity.DocumentType, asOf time.Time, count int) ([]string, error)

	// Rule returns the current rule for display.
	Rule(ctx context.Context, docType entity.DocumentType) (*Rule, error)

	// Rules returns every configured rule.
	Rules(ctx context.Context) ([]Rule, error)

	// ConfigureRule validates and stores a new pattern for docType.
	ConfigureRule(ctx context.Context, docType entity.DocumentType, update RuleUpdate) (*Rule, error)
}
