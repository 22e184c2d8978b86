package db

import (
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NumericFromDecimal converts a decimal into a pgtype.Numeric for query
// parameters. Amounts travel as exact strings, never through float64.
func NumericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}

// DecimalFromNumeric converts a scanned pgtype.Numeric back into a decimal.
// NULL columns map to zero.
func DecimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(new(big.Int).Set(n.Int), n.Exp)
}
