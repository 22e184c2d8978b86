package products

import "github.com/shopspring/decimal"

// ProductForm carries product create/update input.
type ProductForm struct {
	Code        string          `json:"code" validate:"required,max=40"`
	Name        string          `json:"name" validate:"required,max=160"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=500"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Stock       int64           `json:"stock" validate:"gte=0"`
}

// ListProductsRequest filters product listings.
type ListProductsRequest struct {
	Search string `json:"search" validate:"omitempty,max=160"`
	Limit  int    `json:"limit" validate:"gte=0,lte=1000"`
	Offset int    `json:"offset" validate:"gte=0"`
}
