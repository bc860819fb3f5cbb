// Package pricing computes line amounts and document summaries.
//
// Every calculation is a total function of its inputs: malformed numbers are
// sanitized to zero before the algorithm runs, nothing is rounded until the
// value is displayed, and no state is kept between calls. The same functions
// serve previews and persistence.
package pricing

import (
	"github.com/shopspring/decimal"
)

// PriceType tells whether a unit price already contains tax.
type PriceType string

const (
	PriceExclusive PriceType = "exclusive"
	PriceInclusive PriceType = "inclusive"
	// PriceNone marks a line that carries no tax at all.
	PriceNone PriceType = "none"
)

// DiscountType selects how LineInput.Discount is applied.
type DiscountType string

const (
	// DiscountAmount is a fixed amount per unit (THB per unit).
	DiscountAmount DiscountType = "thb"
	// DiscountPercentage is a percentage of the line subtotal.
	DiscountPercentage DiscountType = "percentage"
)

var hundred = decimal.NewFromInt(100)

// LineInput holds the operator-entered values of one line. Rates are
// percentages (7 means 7%).
type LineInput struct {
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	PriceType    PriceType
	Discount     decimal.Decimal
	DiscountType DiscountType
	TaxRate      decimal.Decimal
	// WithholdingRate is nil when withholding is not specified.
	WithholdingRate *decimal.Decimal
}

// Line is a computed line: the sanitized input plus derived amounts.
type Line struct {
	LineInput

	UnitPriceExTax    decimal.Decimal
	Subtotal          decimal.Decimal
	DiscountAmount    decimal.Decimal
	AmountBeforeTax   decimal.Decimal
	TaxAmount         decimal.Decimal
	Amount            decimal.Decimal
	WithholdingAmount decimal.Decimal
}

// Sanitize clamps negative numbers to zero and normalizes the enums:
// unknown price types become exclusive, unknown discount types become a
// per-unit amount, and a line priced as none has no tax rate.
func Sanitize(in LineInput) LineInput {
	out := LineInput{
		Quantity:     nonNegative(in.Quantity),
		UnitPrice:    nonNegative(in.UnitPrice),
		PriceType:    in.PriceType,
		Discount:     nonNegative(in.Discount),
		DiscountType: in.DiscountType,
		TaxRate:      nonNegative(in.TaxRate),
	}

	switch out.PriceType {
	case PriceInclusive, PriceExclusive:
	case PriceNone:
		out.TaxRate = decimal.Zero
	default:
		out.PriceType = PriceExclusive
	}

	if out.DiscountType != DiscountPercentage {
		out.DiscountType = DiscountAmount
	}

	if in.WithholdingRate != nil {
		rate := nonNegative(*in.WithholdingRate)
		out.WithholdingRate = &rate
	}
	return out
}

// Compute derives the amounts of one line. The steps run in a fixed order.
func Compute(in LineInput) Line {
	in = Sanitize(in)
	line := Line{LineInput: in}

	rate := in.TaxRate.Div(hundred)

	line.UnitPriceExTax = in.UnitPrice
	if in.PriceType == PriceInclusive && rate.IsPositive() {
		line.UnitPriceExTax = in.UnitPrice.Div(decimal.NewFromInt(1).Add(rate))
	}

	line.Subtotal = in.Quantity.Mul(line.UnitPriceExTax)

	// a percentage applies to the line subtotal, an amount applies per unit
	if in.DiscountType == DiscountPercentage {
		line.DiscountAmount = line.Subtotal.Mul(in.Discount).Div(hundred)
	} else {
		line.DiscountAmount = in.Discount.Mul(in.Quantity)
	}

	// not clamped: an oversized discount shows up as a negative line
	line.AmountBeforeTax = line.Subtotal.Sub(line.DiscountAmount)

	line.TaxAmount = decimal.Zero
	if in.PriceType != PriceNone {
		line.TaxAmount = line.AmountBeforeTax.Mul(rate)
	}

	line.Amount = line.AmountBeforeTax.Add(line.TaxAmount)

	line.WithholdingAmount = decimal.Zero
	if in.WithholdingRate != nil {
		base := in.Quantity.Mul(in.UnitPrice).Sub(line.DiscountAmount)
		line.WithholdingAmount = base.Mul(*in.WithholdingRate).Div(hundred)
	}

	return line
}

// Input returns a copy of the sanitized input the line was computed from.
// Compute(l.Input()) equals l.
func (l Line) Input() LineInput {
	in := l.LineInput
	if in.WithholdingRate != nil {
		rate := *in.WithholdingRate
		in.WithholdingRate = &rate
	}
	return in
}

// Equal compares inputs and derived amounts by value.
func (l Line) Equal(other Line) bool {
	if !sameRate(l.WithholdingRate, other.WithholdingRate) {
		return false
	}
	return l.PriceType == other.PriceType &&
		l.DiscountType == other.DiscountType &&
		l.Quantity.Equal(other.Quantity) &&
		l.UnitPrice.Equal(other.UnitPrice) &&
		l.Discount.Equal(other.Discount) &&
		l.TaxRate.Equal(other.TaxRate) &&
		l.UnitPriceExTax.Equal(other.UnitPriceExTax) &&
		l.Subtotal.Equal(other.Subtotal) &&
		l.DiscountAmount.Equal(other.DiscountAmount) &&
		l.AmountBeforeTax.Equal(other.AmountBeforeTax) &&
		l.TaxAmount.Equal(other.TaxAmount) &&
		l.Amount.Equal(other.Amount) &&
		l.WithholdingAmount.Equal(other.WithholdingAmount)
}

func sameRate(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
