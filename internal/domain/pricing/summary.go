package pricing

import (
	"github.com/shopspring/decimal"
)

// Summary holds the document-level totals.
type Summary struct {
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal
	WithholdingTax decimal.Decimal
}

// Aggregate folds computed lines into a summary. It always starts from zero;
// summaries are never patched incrementally.
func Aggregate(lines []Line) Summary {
	s := Summary{
		Subtotal:       decimal.Zero,
		Discount:       decimal.Zero,
		Tax:            decimal.Zero,
		Total:          decimal.Zero,
		WithholdingTax: decimal.Zero,
	}
	for _, l := range lines {
		s.Subtotal = s.Subtotal.Add(l.Subtotal)
		s.Discount = s.Discount.Add(l.DiscountAmount)
		s.Tax = s.Tax.Add(l.TaxAmount)
		s.Total = s.Total.Add(l.AmountBeforeTax.Add(l.TaxAmount))
		s.WithholdingTax = s.WithholdingTax.Add(l.WithholdingAmount)
	}
	return s
}

// NetPayable is the amount the customer actually transfers.
func (s Summary) NetPayable() decimal.Decimal {
	return s.Total.Sub(s.WithholdingTax)
}

// Equal compares two summaries by value.
func (s Summary) Equal(other Summary) bool {
	return s.Subtotal.Equal(other.Subtotal) &&
		s.Discount.Equal(other.Discount) &&
		s.Tax.Equal(other.Tax) &&
		s.Total.Equal(other.Total) &&
		s.WithholdingTax.Equal(other.WithholdingTax)
}

// Calculate computes every line and the summary in one pass.
func Calculate(inputs []LineInput) ([]Line, Summary) {
	lines := make([]Line, len(inputs))
	for i, in := range inputs {
		lines[i] = Compute(in)
	}
	return lines, Aggregate(lines)
}
