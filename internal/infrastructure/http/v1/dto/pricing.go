package dto

import (
	"docseq/internal/core/types"
	"docseq/internal/domain/pricing"
)

// LineItemRequest is one operator-entered line. Numbers may arrive as JSON
// numbers or strings; unparsable values count as zero.
type LineItemRequest struct {
	Quantity        types.LenientDecimal  `json:"quantity"`
	UnitPrice       types.LenientDecimal  `json:"unitPrice"`
	PriceType       string                `json:"priceType"`
	Discount        types.LenientDecimal  `json:"discount"`
	DiscountType    string                `json:"discountType"`
	TaxRate         types.LenientDecimal  `json:"taxRate"`
	WithholdingRate types.OptionalDecimal `json:"withholdingTaxRate"`
}

// ToInput converts the request to a calculator input.
func (r LineItemRequest) ToInput() pricing.LineInput {
	return pricing.LineInput{
		Quantity:        r.Quantity.Decimal,
		UnitPrice:       r.UnitPrice.Decimal,
		PriceType:       pricing.PriceType(r.PriceType),
		Discount:        r.Discount.Decimal,
		DiscountType:    pricing.DiscountType(r.DiscountType),
		TaxRate:         r.TaxRate.Decimal,
		WithholdingRate: r.WithholdingRate.Ptr(),
	}
}

// ToInputs converts a list of line requests.
func ToInputs(items []LineItemRequest) []pricing.LineInput {
	inputs := make([]pricing.LineInput, len(items))
	for i, item := range items {
		inputs[i] = item.ToInput()
	}
	return inputs
}

// SummaryRequest asks for a calculation preview.
type SummaryRequest struct {
	Items []LineItemRequest `json:"items"`
}

// LineResponse is a computed line. Amounts are rounded for display only.
type LineResponse struct {
	Quantity           string  `json:"quantity"`
	UnitPrice          string  `json:"unitPrice"`
	PriceType          string  `json:"priceType"`
	Discount           string  `json:"discount"`
	DiscountType       string  `json:"discountType"`
	TaxRate            string  `json:"taxRate"`
	WithholdingTaxRate *string `json:"withholdingTaxRate"`

	UnitPriceExTax    string `json:"unitPriceExTax"`
	Subtotal          string `json:"subtotal"`
	DiscountAmount    string `json:"discountAmount"`
	AmountBeforeTax   string `json:"amountBeforeTax"`
	TaxAmount         string `json:"taxAmount"`
	Amount            string `json:"amount"`
	WithholdingAmount string `json:"withholdingTaxAmount"`
}

// SummaryResponse holds document totals.
type SummaryResponse struct {
	Subtotal       string `json:"subtotal"`
	Discount       string `json:"discount"`
	Tax            string `json:"tax"`
	Total          string `json:"total"`
	WithholdingTax string `json:"withholdingTax"`
	NetPayable     string `json:"netPayable"`
}

// CalculationResponse is returned by the summary preview.
type CalculationResponse struct {
	Lines   []LineResponse  `json:"lines"`
	Summary SummaryResponse `json:"summary"`
}

// FromLine converts a computed line.
func FromLine(l pricing.Line) LineResponse {
	resp := LineResponse{
		Quantity:          l.Quantity.String(),
		UnitPrice:         l.UnitPrice.String(),
		PriceType:         string(l.PriceType),
		Discount:          l.Discount.String(),
		DiscountType:      string(l.DiscountType),
		TaxRate:           l.TaxRate.String(),
		UnitPriceExTax:    Money(l.UnitPriceExTax),
		Subtotal:          Money(l.Subtotal),
		DiscountAmount:    Money(l.DiscountAmount),
		AmountBeforeTax:   Money(l.AmountBeforeTax),
		TaxAmount:         Money(l.TaxAmount),
		Amount:            Money(l.Amount),
		WithholdingAmount: Money(l.WithholdingAmount),
	}
	if l.WithholdingRate != nil {
		rate := l.WithholdingRate.String()
		resp.WithholdingTaxRate = &rate
	}
	return resp
}

// FromLines converts computed lines.
func FromLines(lines []pricing.Line) []LineResponse {
	out := make([]LineResponse, len(lines))
	for i, l := range lines {
		out[i] = FromLine(l)
	}
	return out
}

// FromSummary converts document totals.
func FromSummary(s pricing.Summary) SummaryResponse {
	return SummaryResponse{
		Subtotal:       Money(s.Subtotal),
		Discount:       Money(s.Discount),
		Tax:            Money(s.Tax),
		Total:          Money(s.Total),
		WithholdingTax: Money(s.WithholdingTax),
		NetPayable:     Money(s.NetPayable()),
	}
}
