package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog entry. Unit price and tax rate are snapshotted
// into document lines at creation time, never referenced live.
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Code        string          `json:"code" db:"code"`
	Name        string          `json:"name" db:"name"`
	Description *string         `json:"description,omitempty" db:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	Stock       int64           `json:"stock" db:"stock"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}
