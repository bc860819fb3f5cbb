package dto

import (
	"time"

	"docseq/internal/core/numerator"
)

// AllocateRequest asks for the next number. AsOf defaults to today.
type AllocateRequest struct {
	AsOf string `json:"asOf"`
}

// AllocationResponse is an issued number.
type AllocationResponse struct {
	DocumentType  string `json:"documentType"`
	Number        string `json:"documentNumber"`
	RunningNumber int64  `json:"runningNumber"`
	PeriodKey     string `json:"periodKey"`
}

// FromAllocation converts an allocation.
func FromAllocation(a numerator.Allocation) AllocationResponse {
	return AllocationResponse{
		DocumentType:  string(a.DocumentType),
		Number:        a.Number,
		RunningNumber: a.RunningNumber,
		PeriodKey:     a.PeriodKey,
	}
}

// ConfigureRuleRequest replaces the pattern of a rule.
type ConfigureRuleRequest struct {
	Pattern       string `json:"pattern" binding:"required"`
	CurrentNumber *int64 `json:"currentNumber"`
	AsOf          string `json:"asOf"`
}

// ToRuleUpdate validates the request.
func (r ConfigureRuleRequest) ToRuleUpdate() (numerator.RuleUpdate, error) {
	asOf, err := ParseDate("asOf", r.AsOf)
	if err != nil {
		return numerator.RuleUpdate{}, err
	}
	return numerator.RuleUpdate{
		Pattern:       r.Pattern,
		CurrentNumber: r.CurrentNumber,
		AsOf:          asOf,
	}, nil
}

// RuleResponse is a numbering rule.
type RuleResponse struct {
	DocumentType  string    `json:"documentType"`
	Pattern       string    `json:"pattern"`
	CurrentNumber int64     `json:"currentNumber"`
	PeriodKey     string    `json:"periodKey"`
	Version       int       `json:"version"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// FromRule converts a rule.
func FromRule(r numerator.Rule) RuleResponse {
	return RuleResponse{
		DocumentType:  string(r.DocumentType),
		Pattern:       r.Pattern,
		CurrentNumber: r.CurrentNumber,
		PeriodKey:     r.PeriodKey,
		Version:       r.Version,
		UpdatedAt:     r.UpdatedAt,
	}
}

// FromRules converts a list of rules.
func FromRules(rules []numerator.Rule) []RuleResponse {
	out := make([]RuleResponse, len(rules))
	for i, r := range rules {
		out[i] = FromRule(r)
	}
	return out
}

// PreviewResponse lists the numbers the next allocations would produce.
type PreviewResponse struct {
	DocumentType string   `json:"documentType"`
	Numbers      []string `json:"numbers"`
}
