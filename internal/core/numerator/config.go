// Package numerator provides domain contracts for document auto-numbering.
package numerator

import (
	"fmt"
	"time"
)

// Strategy defines how the allocator derives the next running number.
type Strategy int

const (
	// StrategyReconcile scans existing document numbers of the current period
	// on every allocation and takes max(counter, observed) + 1.
	// Survives manual edits of documents or of the rule counter.
	StrategyReconcile Strategy = iota

	// StrategyCounter trusts the rule counter and scans existing numbers only
	// when the period changes.
	StrategyCounter
)

// ParseStrategy converts a configuration value into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "reconcile":
		return StrategyReconcile, nil
	case "counter":
		return StrategyCounter, nil
	}
	return StrategyReconcile, fmt.Errorf("unknown numbering strategy %q", s)
}

func (s Strategy) String() string {
	if s == StrategyCounter {
		return "counter"
	}
	return "reconcile"
}

// Options configure number allocation.
type Options struct {
	Strategy Strategy
	// MaxAttempts bounds the optimistic retries of one allocation.
	// Default is 5.
	MaxAttempts int
	// Backoff is the base delay between attempts, multiplied by the attempt
	// number and jittered. Zero disables waiting.
	Backoff time.Duration
}

// DefaultOptions returns standard options (Reconcile, 5 attempts).
func DefaultOptions() Options {
	return Options{
		Strategy:    StrategyReconcile,
		MaxAttempts: 5,
		Backoff:     5 * time.Millisecond,
	}
}

// DefaultPatterns are the rules seeded for a fresh database.
var DefaultPatterns = map[string]string{
	"quotation":      "QT-YYYY-XXXX",
	"invoice":        "INV-YYYY-XXXX",
	"receipt":        "RC-YYYY-XXXX",
	"tax_invoice":    "TAX-YYYYMM-XXXX",
	"credit_note":    "CN-YYYY-XXXX",
	"purchase_order": "PO-YYYY-XXXX",
	"billing_note":   "BN-YYYY-XXXX",
}
