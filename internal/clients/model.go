package clients

import "time"

// Client represents a billable customer.
type Client struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Address   *string   `json:"address,omitempty" db:"address"`
	TaxID     *string   `json:"tax_id,omitempty" db:"tax_id"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Email     *string   `json:"email,omitempty" db:"email"`
	Country   *string   `json:"country,omitempty" db:"country"`
	City      *string   `json:"city,omitempty" db:"city"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
