package clients

// ClientForm carries client create/update input.
type ClientForm struct {
	Name    string  `json:"name" validate:"required,max=160"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=240"`
	TaxID   *string `json:"tax_id,omitempty" validate:"omitempty,max=40"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Country *string `json:"country,omitempty" validate:"omitempty,max=80"`
	City    *string `json:"city,omitempty" validate:"omitempty,max=80"`
}

// ListClientsRequest filters client listings.
type ListClientsRequest struct {
	Search string `json:"search" validate:"omitempty,max=160"`
	Limit  int    `json:"limit" validate:"gte=0,lte=1000"`
	Offset int    `json:"offset" validate:"gte=0"`
}
