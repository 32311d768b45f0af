package inventory

type CreateItemDTO struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Price       int64  `json:"price" validate:"gt=0"`
	Quantity    int64  `json:"quantity" validate:"gte=0"`
	SKU         string `json:"sku" validate:"required,max=64"`
}

// UpdateItemDTO is a partial update; nil fields are left unchanged.
type UpdateItemDTO struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Price       *int64  `json:"price" validate:"omitempty,gt=0"`
	Quantity    *int64  `json:"quantity" validate:"omitempty,gte=0"`
	SKU         *string `json:"sku" validate:"omitempty,min=1,max=64"`
}

type ListFilter struct {
	Search string
	Limit  int
	Offset int
}

type ItemsResponse struct {
	Items []*Item `json:"items"`
}
