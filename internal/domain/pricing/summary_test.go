package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_ExampleLines(t *testing.T) {
	_, s := Calculate([]LineInput{exclusiveLine(), inclusiveLine()})

	assertDecimal(t, "300", s.Subtotal, "subtotal")
	assertDecimal(t, "20", s.Discount, "discount")
	assertDecimal(t, "19.6", s.Tax, "tax")
	assertDecimal(t, "299.6", s.Total, "total")
	assertDecimal(t, "0", s.WithholdingTax, "withholdingTax")
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil)

	for name, v := range map[string]string{
		"subtotal": s.Subtotal.String(),
		"discount": s.Discount.String(),
		"tax":      s.Tax.String(),
		"total":    s.Total.String(),
		"wht":      s.WithholdingTax.String(),
	} {
		assert.Equal(t, "0", v, name)
	}
}

func TestAggregate_SumsLineFields(t *testing.T) {
	withWHT := exclusiveLine()
	withWHT.WithholdingRate = rate("3")
	lines, s := Calculate([]LineInput{withWHT, inclusiveLine(), withWHT})

	total := lines[0].Amount.Add(lines[1].Amount).Add(lines[2].Amount)
	assert.True(t, s.Total.Equal(total))
	assertDecimal(t, "10.8", s.WithholdingTax, "withholdingTax")
	assertDecimal(t, "481.4", s.NetPayable(), "netPayable")
}

func TestAggregate_RecomputesFromScratch(t *testing.T) {
	lines, before := Calculate([]LineInput{exclusiveLine(), inclusiveLine()})

	edited := lines[0].Input()
	edited.Quantity = d("1")
	lines[0] = Compute(edited)

	after := Aggregate(lines)
	assert.False(t, before.Equal(after))
	assert.True(t, after.Equal(Aggregate(lines)))
	assertDecimal(t, "200", after.Subtotal, "subtotal")
}
