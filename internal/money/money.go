// Package money implements line and document level monetary calculations.
// All arithmetic runs on shopspring decimals; rounding happens only at the
// presentation boundary via Round2, never mid-calculation.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fakturo/fakturo/internal/platform/httpx"
)

// PaymentType enumerates how a document is settled.
type PaymentType string

const (
	PaymentCash     PaymentType = "CASH"
	PaymentCheque   PaymentType = "CHEQUE"
	PaymentTransfer PaymentType = "TRANSFER"
	PaymentCard     PaymentType = "CARD"
)

// IsValid reports whether the payment type is one of the known values.
func (p PaymentType) IsValid() bool {
	switch p {
	case PaymentCash, PaymentCheque, PaymentTransfer, PaymentCard:
		return true
	default:
		return false
	}
}

// Line carries the inputs of a single document line.
type Line struct {
	Quantity    int64
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
	TaxRate     decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Validate rejects out-of-range line inputs. Values are never clamped.
func (l Line) Validate() error {
	if l.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1, got %d", httpx.ErrValidation, l.Quantity)
	}
	if l.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price must not be negative", httpx.ErrValidation)
	}
	if l.DiscountPct.IsNegative() || l.DiscountPct.GreaterThan(hundred) {
		return fmt.Errorf("%w: discount must be between 0 and 100", httpx.ErrValidation)
	}
	if l.TaxRate.IsNegative() {
		return fmt.Errorf("%w: tax rate must not be negative", httpx.ErrValidation)
	}
	return nil
}

// LineTotals computes the derived amounts of a line:
//
//	totalExcl = quantity * unitPrice * (1 - discount/100)
//	taxAmount = totalExcl * taxRate/100
//	total     = totalExcl + taxAmount
func LineTotals(l Line) (totalExcl, taxAmount, total decimal.Decimal) {
	gross := decimal.NewFromInt(l.Quantity).Mul(l.UnitPrice)
	totalExcl = gross.Sub(gross.Mul(l.DiscountPct.Div(hundred)))
	taxAmount = totalExcl.Mul(l.TaxRate.Div(hundred))
	total = totalExcl.Add(taxAmount)
	return totalExcl, taxAmount, total
}

// DocumentTotals sums per-line amounts into the document subtotal and tax total.
func DocumentTotals(lines []Line) (subtotal, taxTotal decimal.Decimal) {
	for _, l := range lines {
		excl, tax, _ := LineTotals(l)
		subtotal = subtotal.Add(excl)
		taxTotal = taxTotal.Add(tax)
	}
	return subtotal, taxTotal
}

// Stamp duty tiers on the subtotal of cash-settled documents.
// Lower bounds are strict (a subtotal of exactly 300 pays nothing).
var (
	stampFloor = decimal.NewFromInt(300)
	stampMid   = decimal.NewFromInt(30000)
	stampHigh  = decimal.NewFromInt(100000)

	stampRateLow  = decimal.RequireFromString("0.01")
	stampRateMid  = decimal.RequireFromString("0.015")
	stampRateHigh = decimal.RequireFromString("0.02")
)

// StampDuty returns the tiered stamp duty for the given subtotal. Only cash
// settled documents are subject to the duty.
func StampDuty(subtotal decimal.Decimal, payment PaymentType) decimal.Decimal {
	if payment != PaymentCash {
		return decimal.Zero
	}
	switch {
	case subtotal.GreaterThan(stampHigh):
		return subtotal.Mul(stampRateHigh)
	case subtotal.GreaterThan(stampMid):
		return subtotal.Mul(stampRateMid)
	case subtotal.GreaterThan(stampFloor):
		return subtotal.Mul(stampRateLow)
	default:
		return decimal.Zero
	}
}

// GrandTotal combines the document aggregates into the payable amount.
func GrandTotal(subtotal, taxTotal, stampDuty decimal.Decimal) decimal.Decimal {
	return subtotal.Add(taxTotal).Add(stampDuty)
}

// Round2 rounds an exact amount to two places for display or export.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
