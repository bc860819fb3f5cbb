// Package numerator implements document number allocation on top of a
// numbering rule store. It implements core/numerator.Generator.
package numerator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docseq/internal/core/apperror"
	"docseq/internal/core/entity"
	corenumerator "docseq/internal/core/numerator"
	"docseq/internal/core/tx"
	"docseq/internal/domain/audit"
	"docseq/pkg/logger"
)

var tracer = otel.Tracer("docseq/numerator")

// MaxPreviewCount bounds Preview.
const MaxPreviewCount = 100

// Metrics receives allocation outcomes. A nil Metrics is allowed.
type Metrics interface {
	ObserveAllocation(docType string, attempts int)
	IncAllocationConflict(docType string)
}

// ServiceConfig holds dependencies for Service.
type ServiceConfig struct {
	Rules     corenumerator.RuleStore
	Scanner   corenumerator.NumberScanner
	TxManager tx.Manager
	Audit     audit.Recorder
	Metrics   Metrics
	Options   corenumerator.Options
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service allocates document numbers with an optimistic version check on the
// numbering rule row. Conflicting writers re-read the rule and try again.
//
// Each attempt commits its own transaction, detached from any transaction in
// ctx when the manager supports it, so the counter advance is durable before
// the caller uses the number.
type Service struct {
	rules   corenumerator.RuleStore
	scanner corenumerator.NumberScanner
	txm     tx.Manager
	audit   audit.Recorder
	metrics Metrics
	opts    corenumerator.Options
	now     func() time.Time
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// NewService creates a numbering service.
func NewService(cfg ServiceConfig) *Service {
	opts := cfg.Options
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = corenumerator.DefaultOptions().MaxAttempts
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NopRecorder{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		rules:   cfg.Rules,
		scanner: cfg.Scanner,
		txm:     cfg.TxManager,
		audit:   cfg.Audit,
		metrics: cfg.Metrics,
		opts:    opts,
		now:     cfg.Clock,
	}
}

// Allocate issues the next number for docType in the period of asOf.
// A zero asOf means now.
func (s *Service) Allocate(ctx context.Context, docType entity.DocumentType, asOf time.Time) (corenumerator.Allocation, error) {
	if err := docType.Validate(); err != nil {
		return corenumerator.Allocation{}, err
	}
	if asOf.IsZero() {
		asOf = s.now().UTC()
	}

	ctx, span := tracer.Start(ctx, "numerator.allocate",
		trace.WithAttributes(attribute.String("document.type", string(docType))))
	defer span.End()

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		var (
			alloc    corenumerator.Allocation
			advanced bool
		)

		err := s.independent(ctx, func(ctx context.Context) error {
			rule, pattern, err := s.loadRule(ctx, docType)
			if err != nil {
				return err
			}

			periodKey := pattern.PeriodKey(asOf)
			period, err := s.loadPeriod(ctx, docType, periodKey)
			if err != nil {
				return err
			}

			next, err := s.nextRunningNumber(ctx, rule, pattern, period, asOf)
			if err != nil {
				return err
			}

			advanced, err = s.rules.AdvanceRule(ctx, corenumerator.Advance{
				DocumentType:    docType,
				ExpectedVersion: rule.Version,
				PeriodKey:       periodKey,
				RunningNumber:   next,
				Current:         notEarlierPeriod(periodKey, rule.PeriodKey),
			})
			if err != nil {
				return fmt.Errorf("advance numbering rule: %w", err)
			}

			alloc = corenumerator.Allocation{
				DocumentType:  docType,
				Number:        pattern.Render(next, asOf),
				RunningNumber: next,
				PeriodKey:     periodKey,
			}
			return nil
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "allocation failed")
			return corenumerator.Allocation{}, err
		}

		if advanced {
			alloc.Attempts = attempt
			if s.metrics != nil {
				s.metrics.ObserveAllocation(string(docType), attempt)
			}
			span.SetAttributes(
				attribute.String("document.number", alloc.Number),
				attribute.Int("numerator.attempts", attempt),
			)
			logger.Debug(ctx, "document number allocated",
				"document_type", docType,
				"number", alloc.Number,
				"attempts", attempt,
			)
			return alloc, nil
		}

		logger.Warn(ctx, "numbering rule changed concurrently, retrying",
			"document_type", docType,
			"attempt", attempt,
		)
		if attempt < s.opts.MaxAttempts {
			if err := s.backoff(ctx, attempt); err != nil {
				return corenumerator.Allocation{}, err
			}
		}
	}

	if s.metrics != nil {
		s.metrics.IncAllocationConflict(string(docType))
	}
	logger.Error(ctx, "document number allocation gave up",
		"document_type", docType,
		"attempts", s.opts.MaxAttempts,
	)
	err := apperror.NewAllocationConflict(string(docType), s.opts.MaxAttempts)
	span.SetStatus(codes.Error, err.Code)
	return corenumerator.Allocation{}, err
}

// Preview renders the next count numbers without advancing the counter.
// Concurrent allocations may claim them first.
func (s *Service) Preview(ctx context.Context, docType entity.DocumentType, asOf time.Time, count int) ([]string, error) {
	if err := docType.Validate(); err != nil {
		return nil, err
	}
	if count < 1 || count > MaxPreviewCount {
		return nil, apperror.NewValidation(fmt.Sprintf("count must be between 1 and %d", MaxPreviewCount)).
			WithDetail("field", "count")
	}
	if asOf.IsZero() {
		asOf = s.now().UTC()
	}

	var numbers []string
	err := s.readOnly(ctx, func(ctx context.Context) error {
		rule, pattern, err := s.loadRule(ctx, docType)
		if err != nil {
			return err
		}
		period, err := s.loadPeriod(ctx, docType, pattern.PeriodKey(asOf))
		if err != nil {
			return err
		}
		next, err := s.nextRunningNumber(ctx, rule, pattern, period, asOf)
		if err != nil {
			return err
		}
		numbers = make([]string, 0, count)
		for i := 0; i < count; i++ {
			numbers = append(numbers, pattern.Render(next+int64(i), asOf))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

// Rule returns the rule of docType without locking it.
func (s *Service) Rule(ctx context.Context, docType entity.DocumentType) (*corenumerator.Rule, error) {
	if err := docType.Validate(); err != nil {
		return nil, err
	}
	return s.rules.GetRule(ctx, docType)
}

// Rules lists every configured rule.
func (s *Service) Rules(ctx context.Context) ([]corenumerator.Rule, error) {
	return s.rules.ListRules(ctx)
}

// ConfigureRule validates update.Pattern and stores it. An invalid pattern is
// rejected; the previous rule stays in place.
func (s *Service) ConfigureRule(ctx context.Context, docType entity.DocumentType, update corenumerator.RuleUpdate) (*corenumerator.Rule, error) {
	if err := docType.Validate(); err != nil {
		return nil, err
	}
	pattern, err := corenumerator.Compile(update.Pattern)
	if err != nil {
		return nil, err
	}
	if update.CurrentNumber != nil && *update.CurrentNumber < 0 {
		return nil, apperror.NewValidation("current number must not be negative").
			WithDetail("field", "currentNumber")
	}
	asOf := update.AsOf
	if asOf.IsZero() {
		asOf = s.now().UTC()
	}

	var saved *corenumerator.Rule
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.rules.GetRule(ctx, docType)
		expectedVersion := 0
		switch {
		case err == nil:
			expectedVersion = current.Version
		case apperror.IsNotFound(err):
			current = &corenumerator.Rule{DocumentType: docType}
		default:
			return err
		}

		next := *current
		next.Pattern = pattern.String()
		if update.CurrentNumber != nil {
			next.CurrentNumber = *update.CurrentNumber
			next.PeriodKey = pattern.PeriodKey(asOf)
		}
		next.UpdatedAt = s.now().UTC()

		ok, err := s.rules.SaveRule(ctx, &next, expectedVersion)
		if err != nil {
			return fmt.Errorf("save numbering rule: %w", err)
		}
		if !ok {
			return apperror.NewConcurrentModification(audit.EntityNumberingRule, string(docType))
		}
		next.Version = expectedVersion + 1

		if update.CurrentNumber != nil {
			if err := s.rules.SetPeriod(ctx, docType, next.PeriodKey, next.CurrentNumber); err != nil {
				return fmt.Errorf("reset numbering period: %w", err)
			}
		}

		if err := s.audit.Record(ctx, audit.EntityNumberingRule, string(docType), audit.ActionConfigure, map[string]any{
			"pattern":       map[string]any{"old": current.Pattern, "new": next.Pattern},
			"currentNumber": map[string]any{"old": current.CurrentNumber, "new": next.CurrentNumber},
		}); err != nil {
			return fmt.Errorf("audit numbering rule: %w", err)
		}

		saved = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "numbering rule configured",
		"document_type", docType,
		"pattern", saved.Pattern,
		"current_number", saved.CurrentNumber,
	)
	return saved, nil
}

func (s *Service) loadRule(ctx context.Context, docType entity.DocumentType) (*corenumerator.Rule, *corenumerator.Pattern, error) {
	rule, err := s.rules.GetRule(ctx, docType)
	if err != nil {
		return nil, nil, err
	}
	pattern, err := corenumerator.Compile(rule.Pattern)
	if err != nil {
		// a stored pattern that no longer compiles is never replaced by a default
		return nil, nil, err
	}
	return rule, pattern, nil
}

func (s *Service) loadPeriod(ctx context.Context, docType entity.DocumentType, periodKey string) (*corenumerator.PeriodCounter, error) {
	period, err := s.rules.GetPeriod(ctx, docType, periodKey)
	if apperror.IsNotFound(err) {
		return &corenumerator.PeriodCounter{DocumentType: docType, PeriodKey: periodKey}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get numbering period: %w", err)
	}
	return period, nil
}

// nextRunningNumber returns max(counter, observed) + 1 for the period of asOf.
//
// The counter is the period's own row. The rule's counter only adds to it when
// the rule still points at the same period, which covers rules reset by an
// operator and rules written before periods were tracked. The scan matches
// only numbers of that period.
func (s *Service) nextRunningNumber(ctx context.Context, rule *corenumerator.Rule, pattern *corenumerator.Pattern, period *corenumerator.PeriodCounter, asOf time.Time) (int64, error) {
	base := period.CurrentNumber
	known := !period.UpdatedAt.IsZero()
	if rule.PeriodKey == period.PeriodKey {
		known = true
		base = max(base, rule.CurrentNumber)
	}

	if s.opts.Strategy == corenumerator.StrategyReconcile || !known {
		observed, err := s.observedMax(ctx, rule.DocumentType, pattern, asOf)
		if err != nil {
			return 0, err
		}
		if observed > base {
			if known {
				logger.Warn(ctx, "numbering counter behind existing documents, reconciling",
					"document_type", rule.DocumentType,
					"period", period.PeriodKey,
					"counter", base,
					"observed", observed,
				)
			}
			base = observed
		}
	}

	return base + 1, nil
}

// notEarlierPeriod reports whether key is the rule's current period or a
// later one. Keys of one pattern have the same length and sort by date; a
// key of another shape means the pattern changed, and the new key wins.
func notEarlierPeriod(key, current string) bool {
	return len(key) != len(current) || key >= current
}

func (s *Service) observedMax(ctx context.Context, docType entity.DocumentType, pattern *corenumerator.Pattern, asOf time.Time) (int64, error) {
	if s.scanner == nil {
		return 0, nil
	}
	numbers, err := s.scanner.ListNumbers(ctx, docType, pattern.PeriodExpression(asOf))
	if err != nil {
		return 0, fmt.Errorf("scan document numbers: %w", err)
	}

	matcher := pattern.PeriodMatcher(asOf)
	var highest int64
	for _, number := range numbers {
		m := matcher.FindStringSubmatch(number)
		if len(m) != 2 {
			continue
		}
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}

func (s *Service) independent(ctx context.Context, fn func(ctx context.Context) error) error {
	if im, ok := s.txm.(tx.IndependentManager); ok {
		return im.RunInNewTransaction(ctx, fn)
	}
	return s.txm.RunInTransaction(ctx, fn)
}

func (s *Service) readOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if ro, ok := s.txm.(tx.ReadOnlyManager); ok {
		return ro.ReadOnly(ctx, fn)
	}
	return s.txm.RunInTransaction(ctx, fn)
}

// backoff waits attempt*Backoff plus up to one Backoff of jitter.
func (s *Service) backoff(ctx context.Context, attempt int) error {
	if s.opts.Backoff <= 0 {
		return ctx.Err()
	}
	delay := time.Duration(attempt)*s.opts.Backoff + time.Duration(rand.Int64N(int64(s.opts.Backoff)))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
