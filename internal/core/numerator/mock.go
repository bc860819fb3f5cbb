package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docseq/internal/core/entity"
)

// MockGenerator is a test implementation of Generator.
// Use in unit tests to avoid database dependencies.
type MockGenerator struct {
	AllocateFunc      func(ctx context.Context, docType entity.DocumentType, asOf time.Time) (Allocation, error)
	PreviewFunc       func(ctx context.Context, docType entity.DocumentType, asOf time.Time, count int) ([]string, error)
	RuleFunc          func(ctx context.Context, docType entity.DocumentType) (*Rule, error)
	RulesFunc         func(ctx context.Context) ([]Rule, error)
	ConfigureRuleFunc func(ctx context.Context, docType entity.DocumentType, update RuleUpdate) (*Rule, error)

	mu    sync.Mutex
	calls int64
}

// Allocate implements Generator.
func (m *MockGenerator) Allocate(ctx context.Context, docType entity.DocumentType, asOf time.Time) (Allocation, error) {
	if m.AllocateFunc != nil {
		return m.AllocateFunc(ctx, docType, asOf)
	}
	// Default: predictable per-mock sequence
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()
	return Allocation{
		DocumentType:  docType,
		Number:        fmt.Sprintf("MOCK-%d-%04d", asOf.Year(), n),
		RunningNumber: n,
		PeriodKey:     fmt.Sprintf("%d", asOf.Year()),
		Attempts:      1,
	}, nil
}

// Preview implements Generator.
func (m *MockGenerator) Preview(ctx context.Context, docType entity.DocumentType, asOf time.Time, count int) ([]string, error) {
	if m.PreviewFunc != nil {
		return m.PreviewFunc(ctx, docType, asOf, count)
	}
	return nil, nil
}

// Rule implements Generator.
func (m *MockGenerator) Rule(ctx context.Context, docType entity.DocumentType) (*Rule, error) {
	if m.RuleFunc != nil {
		return m.RuleFunc(ctx, docType)
	}
	return &Rule{DocumentType: docType, Pattern: "MOCK-YYYY-XXXX", Version: 1}, nil
}

// Rules implements Generator.
func (m *MockGenerator) Rules(ctx context.Context) ([]Rule, error) {
	if m.RulesFunc != nil {
		return m.RulesFunc(ctx)
	}
	return nil, nil
}

// ConfigureRule implements Generator.
func (m *MockGenerator) ConfigureRule(ctx context.Context, docType entity.DocumentType, update RuleUpdate) (*Rule, error) {
	if m.ConfigureRuleFunc != nil {
		return m.ConfigureRuleFunc(ctx, docType, update)
	}
	return &Rule{DocumentType: docType, Pattern: update.Pattern, Version: 1}, nil
}

// Ensure compile-time interface compliance.
var _ Generator = (*MockGenerator)(nil)
