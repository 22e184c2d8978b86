package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLineTotals(t *testing.T) {
	line := Line{
		Quantity:    2,
		UnitPrice:   dec("1000"),
		DiscountPct: decimal.Zero,
		TaxRate:     dec("19"),
	}

	excl, tax, total := LineTotals(line)
	assert.True(t, excl.Equal(dec("2000")), "totalExcl = %s", excl)
	assert.True(t, tax.Equal(dec("380")), "taxAmount = %s", tax)
	assert.True(t, total.Equal(dec("2380")), "total = %s", total)
}

func TestLineTotalsWithDiscount(t *testing.T) {
	line := Line{
		Quantity:    3,
		UnitPrice:   dec("150.50"),
		DiscountPct: dec("10"),
		TaxRate:     dec("19"),
	}

	excl, tax, total := LineTotals(line)
	// 3 * 150.50 = 451.50, minus 10% = 406.35
	assert.True(t, excl.Equal(dec("406.35")), "totalExcl = %s", excl)
	assert.True(t, total.Equal(excl.Add(tax)), "total must equal excl + tax exactly")
}

func TestLineTotalsExactness(t *testing.T) {
	// Values chosen to drift under float64 accumulation.
	line := Line{
		Quantity:    7,
		UnitPrice:   dec("19.99"),
		DiscountPct: dec("3.5"),
		TaxRate:     dec("19"),
	}
	excl, tax, total := LineTotals(line)
	require.True(t, total.Equal(excl.Add(tax)))
	assert.True(t, excl.Equal(dec("139.93").Sub(dec("139.93").Mul(dec("0.035")))))
}

func TestLineValidate(t *testing.T) {
	cases := []struct {
		name string
		line Line
		ok   bool
	}{
		{"valid", Line{Quantity: 1, UnitPrice: dec("10"), TaxRate: dec("19")}, true},
		{"zero quantity", Line{Quantity: 0, UnitPrice: dec("10")}, false},
		{"negative quantity", Line{Quantity: -2, UnitPrice: dec("10")}, false},
		{"negative price", Line{Quantity: 1, UnitPrice: dec("-1")}, false},
		{"negative discount", Line{Quantity: 1, UnitPrice: dec("10"), DiscountPct: dec("-5")}, false},
		{"discount above 100", Line{Quantity: 1, UnitPrice: dec("10"), DiscountPct: dec("101")}, false},
		{"negative tax", Line{Quantity: 1, UnitPrice: dec("10"), TaxRate: dec("-19")}, false},
		{"full discount", Line{Quantity: 1, UnitPrice: dec("10"), DiscountPct: dec("100")}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.line.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestStampDutyTiers(t *testing.T) {
	cases := []struct {
		name     string
		subtotal string
		payment  PaymentType
		want     string
	}{
		{"at floor", "300", PaymentCash, "0"},
		{"just above floor", "300.01", PaymentCash, "3.0001"},
		{"mid tier upper bound", "30000", PaymentCash, "300"},
		{"just above mid bound", "30000.01", PaymentCash, "450.00015"},
		{"high tier bound", "100000", PaymentCash, "1500"},
		{"just above high bound", "100000.01", PaymentCash, "2000.0002"},
		{"non cash is exempt", "500000", PaymentTransfer, "0"},
		{"cheque is exempt", "5000", PaymentCheque, "0"},
		{"zero subtotal", "0", PaymentCash, "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := StampDuty(dec(tc.subtotal), tc.payment)
			assert.True(t, got.Equal(dec(tc.want)), "StampDuty(%s) = %s, want %s", tc.subtotal, got, tc.want)
		})
	}
}

func TestDocumentTotalsCashScenario(t *testing.T) {
	// One line, qty=2 at 1000 with 19% tax, settled in cash: the subtotal of
	// 2000 lands in the 1% stamp tier.
	lines := []Line{{Quantity: 2, UnitPrice: dec("1000"), TaxRate: dec("19")}}

	subtotal, taxTotal := DocumentTotals(lines)
	require.True(t, subtotal.Equal(dec("2000")))
	require.True(t, taxTotal.Equal(dec("380")))

	stamp := StampDuty(subtotal, PaymentCash)
	assert.True(t, stamp.Equal(dec("20")), "stamp = %s", stamp)

	total := GrandTotal(subtotal, taxTotal, stamp)
	assert.True(t, total.Equal(dec("2400")), "total = %s", total)
}

func TestGrandTotalNonCash(t *testing.T) {
	lines := []Line{
		{Quantity: 2, UnitPrice: dec("1000"), TaxRate: dec("19")},
		{Quantity: 1, UnitPrice: dec("500"), DiscountPct: dec("20"), TaxRate: dec("9")},
	}
	subtotal, taxTotal := DocumentTotals(lines)
	stamp := StampDuty(subtotal, PaymentTransfer)
	require.True(t, stamp.IsZero())

	total := GrandTotal(subtotal, taxTotal, stamp)
	assert.True(t, total.Equal(subtotal.Add(taxTotal)))
}

func TestPaymentTypeIsValid(t *testing.T) {
	assert.True(t, PaymentCash.IsValid())
	assert.True(t, PaymentCard.IsValid())
	assert.False(t, PaymentType("BARTER").IsValid())
}

func TestRound2(t *testing.T) {
	assert.Equal(t, "450.00", Round2(dec("450.00015")).StringFixed(2))
	assert.Equal(t, "3.00", Round2(dec("3.0001")).StringFixed(2))
}
